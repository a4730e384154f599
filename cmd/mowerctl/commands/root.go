// Package commands implements the mowerctl CLI commands.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldforge/mowerlink/internal/action"
	"github.com/fieldforge/mowerlink/internal/config"
	"github.com/fieldforge/mowerlink/internal/dispatch"
	"github.com/fieldforge/mowerlink/internal/registry"
)

var (
	// dispatcher sends operator actions to devices, initialized in PersistentPreRunE.
	dispatcher *action.Dispatcher

	// deviceRegistry holds the devices loaded from configPath.
	deviceRegistry registry.DeviceRegistry

	// configPath is the YAML device registry file (the same format mowerd reads).
	configPath string

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string
)

// rootCmd is the top-level cobra command for mowerctl.
var rootCmd = &cobra.Command{
	Use:   "mowerctl",
	Short: "CLI client for the mowerlink fleet",
	Long:  "mowerctl dials mowers directly to dispatch operator actions and inspect the configured fleet.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load device registry from %s: %w", configPath, err)
		}

		devices := make([]registry.Device, len(cfg.Devices))
		for i, dc := range cfg.Devices {
			devices[i] = registry.Device{ID: dc.ID, Port: dc.Port}
		}
		deviceRegistry = registry.NewStaticRegistry(devices)

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		transport := dispatch.NewDispatcher(logger)
		dispatcher = action.NewDispatcher(deviceRegistry, transport, resolveDeviceAddr, nil, logger)

		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// resolveDeviceAddr maps a registered device to its dialable TCP address.
// Devices are addressed on localhost by device port, matching the port
// mowerd's fleet.Supervisor listens on for that device.
func resolveDeviceAddr(dev registry.Device) string {
	return fmt.Sprintf("localhost:%d", dev.Port)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "mowerd.yml",
		"path to the device registry configuration file")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(deviceCmd())
	rootCmd.AddCommand(actionCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
