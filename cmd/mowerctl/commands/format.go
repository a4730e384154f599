package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fieldforge/mowerlink/internal/action"
	"github.com/fieldforge/mowerlink/internal/registry"
	"github.com/fieldforge/mowerlink/internal/wire"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when --format names anything other
// than table or json.
var errUnsupportedFormat = errors.New("unsupported output format")

// deviceView is the JSON projection of a registry.Device.
type deviceView struct {
	ID    string `json:"id"`
	Port  int    `json:"port"`
	State string `json:"state"`
}

// printDevices renders a device list to stdout in outputFormat.
func printDevices(devices []registry.Device) error {
	switch outputFormat {
	case formatJSON:
		views := make([]deviceView, len(devices))
		for i, d := range devices {
			views[i] = deviceView{ID: d.ID, Port: d.Port, State: d.State.String()}
		}
		return printJSON(views)
	case formatTable, "":
		return printDevicesTable(devices)
	default:
		return fmt.Errorf("%w: %q", errUnsupportedFormat, outputFormat)
	}
}

func printDevicesTable(devices []registry.Device) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPORT\tSTATE")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%d\t%s\n", d.ID, d.Port, d.State)
	}
	return w.Flush()
}

// actionReplyView is the JSON projection of a dispatched action's reply.
type actionReplyView struct {
	DeviceID string `json:"device_id"`
	Action   string `json:"action"`
	Command  int    `json:"reply_command"`
	BodyHex  string `json:"reply_body_hex"`
}

// printActionReply renders the wire.Application reply from a dispatched
// action to stdout in outputFormat.
func printActionReply(deviceID string, name action.Name, reply wire.Application) error {
	switch outputFormat {
	case formatJSON:
		return printJSON(actionReplyView{
			DeviceID: deviceID,
			Action:   string(name),
			Command:  int(reply.Command),
			BodyHex:  hexBody(reply.Body),
		})
	case formatTable, "":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Device:\t%s\n", deviceID)
		fmt.Fprintf(w, "Action:\t%s\n", name)
		fmt.Fprintf(w, "Reply Command:\t%#02x\n", reply.Command)
		fmt.Fprintf(w, "Reply Body:\t%s\n", hexBody(reply.Body))
		return w.Flush()
	default:
		return fmt.Errorf("%w: %q", errUnsupportedFormat, outputFormat)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func hexBody(body []byte) string {
	if len(body) == 0 {
		return "-"
	}
	parts := make([]string, len(body))
	for i, b := range body {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}
