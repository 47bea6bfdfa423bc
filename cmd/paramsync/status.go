package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerrad567/paramsync/internal/infrastructure/config"
	"github.com/nerrad567/paramsync/internal/infrastructure/logging"
	"github.com/nerrad567/paramsync/internal/peer"
	"github.com/nerrad567/paramsync/internal/protocol"
)

// ErrNoStatus is returned when the bridge does not answer get_status in time.
var ErrNoStatus = errors.New("no status received")

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	yellow = color.New(color.FgYellow)
)

func newStatusCmd(configPath *string) *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if url != "" {
				cfg.Client.URL = url
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			log := logging.NewWithWriter(cfg.Logging, version, cmd.ErrOrStderr())
			status, activeURL, err := fetchStatus(ctx, cfg, log)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), activeURL, status)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "bridge URL (default: discovery)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "how long to wait for an answer")
	return cmd
}

// fetchStatus connects to the first reachable bridge, sends get_status and
// waits for the detailed reply.
func fetchStatus(ctx context.Context, cfg *config.Config, log *logging.Logger) (protocol.BridgeStatus, string, error) {
	replies := make(chan protocol.BridgeStatus, 1)

	var client *peer.Client
	client = peer.NewClient(peer.ClientOptions{
		Candidates:     peer.Discover(cfg.Client.URL, cfg.Client.Port, log),
		DialTimeout:    cfg.GetDialTimeout(),
		WriteTimeout:   cfg.GetClientWriteTimeout(),
		MaxMessageSize: int64(cfg.WebSocket.MaxMessageSize),
		OnConnect: func(url string) {
			cmd := protocol.BridgeCommand{Timestamp: protocol.Now(), Command: "get_status"}
			if err := client.Send(cmd); err != nil {
				log.Warn("send failed", "type", cmd.MessageType(), "url", url, "error", err)
			}
		},
		OnMessage: func(msg protocol.Message) {
			status, ok := msg.(protocol.BridgeStatus)
			if !ok || status.ParameterCount == nil {
				return
			}
			select {
			case replies <- status:
			default:
			}
		},
		Logger: log,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- client.Run(runCtx) }()

	select {
	case status := <-replies:
		url := client.ActiveURL()
		cancel()
		<-done
		return status, url, nil
	case err := <-done:
		if err == nil {
			err = ErrNoStatus
		}
		return protocol.BridgeStatus{}, "", err
	case <-ctx.Done():
		cancel()
		<-done
		return protocol.BridgeStatus{}, "", fmt.Errorf("%w: %w", ErrNoStatus, ctx.Err())
	}
}

func printStatus(w io.Writer, url string, s protocol.BridgeStatus) {
	cyan.Fprintf(w, "Bridge %s\n", url)

	if s.ESP32Connected {
		green.Fprintln(w, "  ESP32:       connected")
	} else {
		red.Fprintln(w, "  ESP32:       disconnected")
	}

	if s.ParameterCount != nil {
		fmt.Fprintf(w, "  Parameters:  %d\n", *s.ParameterCount)
	}
	if s.StructureHash != "" {
		fmt.Fprintf(w, "  Structure:   %s\n", s.StructureHash)
	}

	st := s.Stats
	fmt.Fprintf(w, "  Uptime:      %s\n", time.Since(st.BridgeStartTime.Time()).Round(time.Second))
	fmt.Fprintf(w, "  Peers:       %d (%d total connections)\n", st.ConnectedPeers, st.WebSocketConnections)
	fmt.Fprintf(w, "  Serial:      %d received, %d sent, %d dropped, %d connection attempts\n",
		st.ESP32MessagesReceived, st.ESP32MessagesSent, st.ESP32MessagesDropped, st.ESP32ConnectionAttempts)
	fmt.Fprintf(w, "  WebSocket:   %d received, %d sent\n",
		st.WebSocketMessagesReceived, st.WebSocketMessagesSent)

	if st.MalformedMessages > 0 {
		yellow.Fprintf(w, "  Malformed:   %d\n", st.MalformedMessages)
	}
	if st.LastESP32Heartbeat != nil {
		fmt.Fprintf(w, "  Heartbeat:   %s ago\n", time.Since(st.LastESP32Heartbeat.Time()).Round(time.Second))
	} else {
		yellow.Fprintln(w, "  Heartbeat:   none")
	}
}
