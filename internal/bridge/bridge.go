package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/paramsync/internal/bridges/esp32"
	"github.com/nerrad567/paramsync/internal/infrastructure/config"
	"github.com/nerrad567/paramsync/internal/infrastructure/mqtt"
	"github.com/nerrad567/paramsync/internal/parameter"
	"github.com/nerrad567/paramsync/internal/peer"
	"github.com/nerrad567/paramsync/internal/protocol"
	"github.com/nerrad567/paramsync/internal/router"
)

// DefaultPollInterval bounds how long the forwarder waits for a device
// message before re-checking the running flag.
const DefaultPollInterval = time.Second

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Bridge.
type Options struct {
	// Registry is shared with the caller. Nil creates an empty registry.
	Registry *parameter.Registry

	WebSocket config.WebSocketConfig

	// SerialEnabled starts the serial transport. When false the bridge acts
	// as a plain relay and device-bound messages are dropped.
	SerialEnabled bool
	Serial        esp32.Options

	// Broker enables the MQTT mirror when non-nil.
	Broker Broker
	Topics mqtt.Topics

	PollInterval time.Duration
	Logger       Logger
}

// Bridge wires the serial device, the peer hub and the router together.
type Bridge struct {
	logger Logger
	poll   time.Duration

	reg    *parameter.Registry
	router *router.Router
	hub    *peer.Hub
	device *esp32.Transport // nil when serial is disabled
	queue  *queue
	mirror *Mirror // nil without a broker

	startTime time.Time
	running   atomic.Bool
	forwarded atomic.Uint64

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// New assembles a bridge from opts.
//
// It creates the peer hub and router, and the serial transport when
// opts.SerialEnabled is set, wiring device messages into the forward queue
// and peer messages into the router. Nothing runs until Run is called.
//
// Parameters:
//   - opts: Registry, WebSocket and serial settings, optional MQTT broker
//
// Returns:
//   - *Bridge: Bridge ready to Run
func New(opts Options) *Bridge {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Registry == nil {
		opts.Registry = parameter.NewRegistry()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	b := &Bridge{
		logger:    opts.Logger,
		poll:      opts.PollInterval,
		reg:       opts.Registry,
		hub:       peer.NewHub(opts.WebSocket, opts.Logger),
		queue:     newQueue(),
		startTime: time.Now(),
	}

	routerOpts := router.Options{
		ParameterForEncoder: esp32.ParameterForEncoder,
		Publish:             func(msg protocol.Message) { b.hub.Publish(msg) },
		Logger:              opts.Logger,
	}

	if opts.SerialEnabled {
		serialOpts := opts.Serial
		serialOpts.OnMessage = b.queue.Push
		if serialOpts.Logger == nil {
			serialOpts.Logger = opts.Logger
		}
		b.device = esp32.New(serialOpts)
		routerOpts.Device = b.device
	}

	b.router = router.New(b.reg, routerOpts)
	b.hub.SetHandler(b.handlePeer)
	b.hub.SetOnConnect(func(p *peer.Peer) {
		b.hub.SendTo(p, b.Status(false))
	})

	if opts.Broker != nil {
		b.mirror = NewMirror(opts.Broker, opts.Topics, b.router, opts.Logger)
	}

	return b
}

// Registry returns the bridge's parameter registry.
func (b *Bridge) Registry() *parameter.Registry { return b.reg }

// Router returns the bridge's router.
func (b *Bridge) Router() *router.Router { return b.router }

// Hub returns the peer hub. Mount it on an HTTP server to accept peers.
func (b *Bridge) Hub() *peer.Hub { return b.hub }

// Mirror returns the MQTT mirror, or nil when none is configured.
func (b *Bridge) Mirror() *Mirror { return b.mirror }

// Running reports whether Run is active.
func (b *Bridge) Running() bool { return b.running.Load() }

// Run starts the hub, the serial loop, the forwarder and the mirror, and
// blocks until ctx is cancelled or Stop is called. Peers are disconnected
// and the serial port is closed before it returns.
func (b *Bridge) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer b.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.cancelMu.Lock()
	b.cancel = cancel
	b.cancelMu.Unlock()

	b.logger.Info("bridge started", "serial", b.device != nil, "mqtt", b.mirror != nil)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.hub.Run(gctx)
		return nil
	})
	if b.device != nil {
		g.Go(func() error { return b.device.Run(gctx) })
	}
	g.Go(func() error {
		b.forward(gctx)
		return nil
	})
	if b.mirror != nil {
		g.Go(func() error { return b.mirror.Run(gctx) })
	}

	err := g.Wait()
	b.logger.Info("bridge stopped", "forwarded", b.forwarded.Load())
	return err
}

// Stop clears the running flag and cancels Run.
func (b *Bridge) Stop() {
	b.running.Store(false)

	b.cancelMu.Lock()
	cancel := b.cancel
	b.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// forward drains device messages to peers and the router until ctx is done.
func (b *Bridge) forward(ctx context.Context) {
	for b.running.Load() && ctx.Err() == nil {
		msg, ok := b.queue.Pop(ctx, b.poll)
		if !ok {
			continue
		}
		b.handleDevice(msg)
	}
}

func (b *Bridge) handleDevice(msg protocol.Message) {
	b.forwarded.Add(1)
	b.hub.Publish(msg)
	b.router.HandleDevice(msg)
	if b.mirror != nil {
		b.mirror.PublishDevice(msg)
	}
}

// handlePeer runs after the hub has relayed any sync message.
func (b *Bridge) handlePeer(p *peer.Peer, _ []byte, msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.BridgeCommand:
		b.handleCommand(p, m)
	case protocol.SystemCommand, protocol.LEDUpdate:
		if err := b.sendDevice(msg); err != nil {
			b.logger.Debug("device passthrough dropped", "type", msg.MessageType(), "error", err)
		}
	case protocol.BridgeStatus:
		// Status flows from the bridge outwards only.
	default:
		b.router.HandlePeer(msg, func(reply protocol.Message) {
			b.hub.SendTo(p, reply)
		})
	}
}

func (b *Bridge) handleCommand(p *peer.Peer, cmd protocol.BridgeCommand) {
	switch cmd.Command {
	case protocol.CommandGetStatus:
		b.hub.SendTo(p, b.Status(true))
	case protocol.CommandRestartESP32:
		if b.device == nil {
			b.logger.Warn("restart requested without a serial device", "peer_id", p.ID)
			return
		}
		b.device.Restart()
	default:
		b.logger.Warn("unknown bridge command", "command", cmd.Command, "peer_id", p.ID)
	}
}

func (b *Bridge) sendDevice(msg protocol.Message) error {
	if b.device == nil {
		return ErrNoDevice
	}
	return b.device.Send(msg)
}

// DeviceConnected reports whether the serial port is open.
func (b *Bridge) DeviceConnected() bool {
	return b.device != nil && b.device.IsConnected()
}

// DeviceStats returns serial transport counters. The zero value is
// returned when serial is disabled.
func (b *Bridge) DeviceStats() esp32.Stats {
	if b.device == nil {
		return esp32.Stats{}
	}
	return b.device.Stats()
}

// QueueLen returns the number of device messages waiting to be forwarded.
func (b *Bridge) QueueLen() int {
	return b.queue.Len()
}

// Status builds a bridge_status message. withDetails adds the parameter
// count and structure hash, as sent in reply to get_status.
func (b *Bridge) Status(withDetails bool) protocol.BridgeStatus {
	status := protocol.BridgeStatus{
		Timestamp:      protocol.Now(),
		ESP32Connected: b.DeviceConnected(),
		Stats:          b.Stats(),
	}
	if withDetails {
		count := b.reg.Len()
		status.ParameterCount = &count
		status.StructureHash = b.reg.StructureHash()
		if status.StructureHash == "" {
			status.StructureHash = b.reg.Fingerprint()
		}
	}
	return status
}

// Stats merges serial and hub counters into the wire statistics block.
func (b *Bridge) Stats() protocol.BridgeStats {
	dev := b.DeviceStats()
	hub := b.hub.Stats()

	stats := protocol.BridgeStats{
		ESP32MessagesReceived:     dev.MessagesReceived,
		ESP32MessagesSent:         dev.MessagesSent,
		ESP32MessagesDropped:      dev.MessagesDropped,
		WebSocketMessagesReceived: hub.MessagesReceived,
		WebSocketMessagesSent:     hub.MessagesSent,
		MalformedMessages:         hub.MessagesMalformed,
		ESP32ConnectionAttempts:   dev.ConnectionAttempts,
		WebSocketConnections:      hub.Connections,
		ConnectedPeers:            hub.Peers,
		BridgeStartTime:           protocol.Millis(b.startTime.UnixMilli()),
	}
	if !dev.LastHeartbeat.IsZero() {
		hb := protocol.Millis(dev.LastHeartbeat.UnixMilli())
		stats.LastESP32Heartbeat = &hb
	}
	return stats
}
