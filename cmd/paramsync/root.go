package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/paramsync/internal/infrastructure/config"
)

// configEnvVar names a config file when --config is not given.
const configEnvVar = "PARAMSYNC_CONFIG"

// bridgeFlags are shared by the root command and the bridge and relay
// subcommands.
type bridgeFlags struct {
	serialPort    string
	baudRate      int
	websocketPort int
	noSerial      bool
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		flags      bridgeFlags
	)

	root := &cobra.Command{
		Use:   "paramsync",
		Short: "Synchronise audio parameters between an ESP32 controller and WebSocket peers",
		Long: `paramsync bridges an ESP32 rotary-encoder controller on a serial port to
WebSocket peers. Peers relay parameter changes to each other; the bridge
mirrors every change onto the controller's LED rings.

Without a subcommand paramsync runs the bridge.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bridgeConfig(cmd, configPath, flags)
			if err != nil {
				return err
			}
			return runBridge(cmd.Context(), cfg, false)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default: $"+configEnvVar+", else built-in defaults)")
	addBridgeFlags(root, &flags)

	root.AddCommand(
		newBridgeCmd(&configPath),
		newRelayCmd(&configPath),
		newClientCmd(&configPath),
		newStatusCmd(&configPath),
	)
	return root
}

func addBridgeFlags(cmd *cobra.Command, f *bridgeFlags) {
	cmd.Flags().StringVar(&f.serialPort, "serial-port", "", "serial device (default: auto-detect)")
	cmd.Flags().IntVar(&f.baudRate, "baud-rate", config.Default().Serial.BaudRate, "serial baud rate")
	cmd.Flags().IntVar(&f.websocketPort, "websocket-port", config.Default().Server.Port, "WebSocket/HTTP listen port")
	cmd.Flags().BoolVar(&f.noSerial, "no-serial", false, "run without the serial device")
}

// applyBridgeFlags copies explicitly set flags over the loaded config.
func applyBridgeFlags(cmd *cobra.Command, cfg *config.Config, f bridgeFlags) {
	flags := cmd.Flags()
	if flags.Changed("serial-port") {
		cfg.Serial.Port = f.serialPort
	}
	if flags.Changed("baud-rate") {
		cfg.Serial.BaudRate = f.baudRate
	}
	if flags.Changed("websocket-port") {
		cfg.Server.Port = f.websocketPort
		cfg.Client.Port = f.websocketPort
	}
	if flags.Changed("no-serial") && f.noSerial {
		cfg.Serial.Enabled = false
	}
}

// getConfigPath returns the --config value, then $PARAMSYNC_CONFIG.
// Empty means built-in defaults.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(configEnvVar)
}

func loadConfig(flagValue string) (*config.Config, error) {
	cfg, err := config.Load(getConfigPath(flagValue))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// bridgeConfig loads the config and applies the bridge flags on top.
func bridgeConfig(cmd *cobra.Command, configPath string, f bridgeFlags) (*config.Config, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	applyBridgeFlags(cmd, cfg, f)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
