package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// deviceCmd lists the devices configured in the device registry file.
func deviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Inspect the configured device registry",
	}
	cmd.AddCommand(deviceListCmd())
	return cmd
}

func deviceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the devices configured in the registry file",
		RunE: func(_ *cobra.Command, _ []string) error {
			devices, err := deviceRegistry.Devices(context.Background())
			if err != nil {
				return fmt.Errorf("list devices: %w", err)
			}
			return printDevices(devices)
		},
	}
}
