package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nerrad567/paramsync/internal/infrastructure/config"
	"github.com/nerrad567/paramsync/internal/infrastructure/logging"
	"github.com/nerrad567/paramsync/internal/parameter"
	"github.com/nerrad567/paramsync/internal/peer"
	"github.com/nerrad567/paramsync/internal/protocol"
	"github.com/nerrad567/paramsync/internal/router"
)

func newClientCmd(configPath *string) *cobra.Command {
	var (
		url  string
		mock bool
	)
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Run a headless peer that discovers and follows a bridge",
		Long: `client connects to a bridge or relay, found by discovery unless --url or
WEBSOCKET_URL names one, and keeps a local copy of every parameter. It
starts from the demo parameter set and publishes it on connect unless
--mock=false is given, in which case it waits for the bridge's structure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if url != "" {
				cfg.Client.URL = url
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			return runClient(cmd.Context(), cfg, mock)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "bridge URL (default: discovery)")
	cmd.Flags().BoolVar(&mock, "mock", true, "start with the demo parameter set")
	return cmd
}

// runClient follows a bridge until ctx is cancelled, reconnecting through
// discovery whenever the connection drops.
func runClient(ctx context.Context, cfg *config.Config, mock bool) error {
	log := logging.New(cfg.Logging, version).With("role", "client")

	reg := parameter.NewRegistry()
	if mock {
		reg.LoadMock()
	}

	var client *peer.Client
	rt := router.New(reg, router.Options{
		Publish: func(msg protocol.Message) {
			if err := client.Send(msg); err != nil {
				log.Warn("send failed", "type", msg.MessageType(), "error", err)
			}
		},
		Logger: log,
	})

	client = peer.NewClient(peer.ClientOptions{
		DialTimeout:    cfg.GetDialTimeout(),
		WriteTimeout:   cfg.GetClientWriteTimeout(),
		MaxMessageSize: int64(cfg.WebSocket.MaxMessageSize),
		OnMessage: func(msg protocol.Message) {
			if status, ok := msg.(protocol.BridgeStatus); ok {
				log.Debug("bridge status", "esp32_connected", status.ESP32Connected,
					"peers", status.Stats.ConnectedPeers)
				return
			}
			rt.HandlePeer(msg, func(reply protocol.Message) {
				if err := client.Send(reply); err != nil {
					log.Warn("reply failed", "type", reply.MessageType(), "error", err)
				}
			})
		},
		OnConnect: func(url string) {
			log.Info("connected", "url", url)
			if reg.Len() > 0 {
				rt.PublishStructure()
			}
		},
		Logger: log,
	})

	events, unsubscribe := rt.Subscribe(64)
	defer unsubscribe()
	go logEvents(ctx, log, events)

	client.RunLoop(ctx, cfg.GetRetryDelay(), func() []string {
		return peer.Discover(cfg.Client.URL, cfg.Client.Port, log)
	})

	stats := client.Stats()
	log.Info("client stopped",
		"received", stats.MessagesReceived,
		"sent", stats.MessagesSent,
		"connects", stats.Connects,
	)
	return nil
}

func logEvents(ctx context.Context, log *logging.Logger, events <-chan router.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind == router.EventStructureReplaced {
				log.Info("structure replaced", "source", ev.Source, "parameters", ev.Count)
				continue
			}
			log.Info("parameter changed",
				"source", ev.Source,
				"kind", ev.Kind,
				"id", ev.Parameter.ID,
				"value", ev.Parameter.Value,
				"text", ev.Parameter.Text,
			)
		}
	}
}
