// paramsync synchronises a bank of bounded audio parameters between an
// ESP32 encoder controller on a serial port and any number of WebSocket
// peers.
//
// Subcommands:
//
//	paramsync [bridge]   serial device + WebSocket server (default)
//	paramsync relay      WebSocket server without a device
//	paramsync client     headless UI peer with discovery
//	paramsync status     query a running bridge
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
