package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldforge/mowerlink/internal/action"
)

// actionNames lists the action subcommands in display order.
var actionNames = []action.Name{
	action.Start,
	action.Stop,
	action.Home,
	action.AckError,
	action.ResetBladeTime,
}

// actionCmd groups the per-action subcommands, each dispatching to a
// single device by ID.
func actionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action",
		Short: "Dispatch an operator action to a device",
	}
	for _, name := range actionNames {
		cmd.AddCommand(newActionSubcommand(name))
	}
	return cmd
}

func newActionSubcommand(name action.Name) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s <device-id>", name),
		Short: fmt.Sprintf("Dispatch the %s action", name),
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			deviceID := args[0]
			reply, err := dispatcher.DispatchAction(context.Background(), deviceID, name)
			if err != nil {
				return fmt.Errorf("dispatch %s to %s: %w", name, deviceID, err)
			}
			return printActionReply(deviceID, name, reply)
		},
	}
}
