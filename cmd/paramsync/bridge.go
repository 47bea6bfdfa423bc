package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/paramsync/internal/api"
	"github.com/nerrad567/paramsync/internal/bridge"
	"github.com/nerrad567/paramsync/internal/bridges/esp32"
	"github.com/nerrad567/paramsync/internal/infrastructure/config"
	"github.com/nerrad567/paramsync/internal/infrastructure/logging"
	"github.com/nerrad567/paramsync/internal/infrastructure/mqtt"
)

func newBridgeCmd(configPath *string) *cobra.Command {
	var flags bridgeFlags
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Run the serial bridge and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bridgeConfig(cmd, *configPath, flags)
			if err != nil {
				return err
			}
			return runBridge(cmd.Context(), cfg, false)
		},
	}
	addBridgeFlags(cmd, &flags)
	return cmd
}

func newRelayCmd(configPath *string) *cobra.Command {
	var flags bridgeFlags
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the WebSocket server without a serial device",
		Long: `relay accepts WebSocket peers and forwards every message between them.
Commands addressed to the device are dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bridgeConfig(cmd, *configPath, flags)
			if err != nil {
				return err
			}
			return runBridge(cmd.Context(), cfg, true)
		},
	}
	addBridgeFlags(cmd, &flags)
	return cmd
}

// runBridge starts the bridge, the HTTP server and the optional MQTT mirror,
// and blocks until ctx is cancelled. Only a listener bind failure is fatal
// once the config has loaded.
func runBridge(ctx context.Context, cfg *config.Config, relay bool) error {
	log := logging.New(cfg.Logging, version)
	serialEnabled := cfg.Serial.Enabled && !relay
	log.Info("starting paramsync",
		"version", version,
		"commit", commit,
		"addr", cfg.Addr(),
		"serial", serialEnabled,
	)

	opts := bridge.Options{
		WebSocket:     cfg.WebSocket,
		SerialEnabled: serialEnabled,
		Serial: esp32.Options{
			PortName: cfg.Serial.Port,
			BaudRate: cfg.Serial.BaudRate,
			Backoff:  cfg.GetReconnectDelay(),
			Logger:   log.With("component", "esp32"),
		},
		Topics: mqtt.NewTopics(cfg.MQTT.TopicPrefix),
		Logger: log,
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("mqtt unavailable, state mirror disabled", "error", err)
		} else {
			mqttClient = client
			mqttClient.SetLogger(log.With("component", "mqtt"))
			defer func() {
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing mqtt", "error", closeErr)
				}
			}()
			opts.Broker = mqttClient
			opts.Topics = mqttClient.Topics()
			log.Info("connected to mqtt broker",
				"host", cfg.MQTT.Broker.Host,
				"port", cfg.MQTT.Broker.Port,
			)
		}
	}

	b := bridge.New(opts)
	if m := b.Mirror(); m != nil && mqttClient != nil {
		mqttClient.SetOnConnect(m.Resync)
	}

	srv, err := api.New(api.Deps{
		Config:    cfg.Server,
		WebSocket: cfg.WebSocket,
		Metrics:   cfg.Metrics,
		Logger:    log,
		Bridge:    b,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing api server", "error", closeErr)
		}
	}()

	log.Info("paramsync started", "addr", srv.Addr())

	if err := b.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("bridge: %w", err)
	}

	log.Info("shutting down paramsync")
	return nil
}
