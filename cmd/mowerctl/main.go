// mowerctl is the operator CLI: it dials mowers directly to dispatch
// start/stop/home/ackerror/reset-blade-time actions and list the
// configured device registry.
package main

import "github.com/fieldforge/mowerlink/cmd/mowerctl/commands"

func main() {
	commands.Execute()
}
