package esp32

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/paramsync/internal/protocol"
)

// Transport defaults.
const (
	DefaultBaudRate = 115200
	DefaultBackoff  = 5 * time.Second
	readBufferSize  = 1024
)

// State is the connection state of the transport.
type State int32

// Connection states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Logger defines the logging interface used by the transport.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Transport.
type Options struct {
	// PortName is the serial device. Empty means auto-detect on every
	// connection attempt.
	PortName string

	// BaudRate defaults to 115200.
	BaudRate int

	// Backoff is the wait between failed connection attempts. Defaults to 5s.
	Backoff time.Duration

	// Open opens the port. Defaults to OpenSerial.
	Open Opener

	// Detect picks a port when PortName is empty. Defaults to DetectPort.
	Detect func() string

	// OnMessage receives every decoded device message on the read goroutine.
	OnMessage func(protocol.Message)

	// Logger is optional.
	Logger Logger
}

// Stats holds operational counters for the transport.
type Stats struct {
	MessagesReceived   uint64
	MessagesSent       uint64
	MessagesDropped    uint64
	LinesDiscarded     uint64
	ConnectionAttempts uint64
	LastHeartbeat      time.Time // zero if none seen
	State              State
	PortName           string
}

// Transport owns the serial connection to the device.
type Transport struct {
	opts Options

	portMu   sync.Mutex // Protects port and portName; serialises writes
	port     Port
	portName string

	state atomic.Int32

	received      atomic.Uint64
	sent          atomic.Uint64
	dropped       atomic.Uint64
	discarded     atomic.Uint64
	attempts      atomic.Uint64
	lastHeartbeat atomic.Int64 // Unix milliseconds, 0 if none
}

// New creates a transport. Call Run to start connecting.
func New(opts Options) *Transport {
	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Open == nil {
		opts.Open = OpenSerial
	}
	if opts.Detect == nil {
		opts.Detect = DetectPort
	}
	return &Transport{opts: opts}
}

// Run connects to the device and reads from it until ctx is cancelled,
// reconnecting after the backoff whenever the port fails. It always returns
// nil once ctx is done.
func (t *Transport) Run(ctx context.Context) error {
	defer t.closePort()

	for {
		if ctx.Err() != nil {
			return nil
		}

		port, name, err := t.connect()
		if err != nil {
			t.logWarn("serial connection failed, retrying",
				"port", name, "backoff", t.opts.Backoff, "error", err)
			if !t.wait(ctx) {
				return nil
			}
			continue
		}

		t.logInfo("serial connected", "port", name, "baud_rate", t.opts.BaudRate)

		err = t.readLoop(ctx, port)
		t.closePort()

		if ctx.Err() != nil {
			return nil
		}
		t.logWarn("serial connection lost, reconnecting",
			"port", name, "backoff", t.opts.Backoff, "error", err)
		if !t.wait(ctx) {
			return nil
		}
	}
}

func (t *Transport) connect() (Port, string, error) {
	t.state.Store(int32(StateConnecting))
	t.attempts.Add(1)

	name := t.opts.PortName
	if name == "" {
		name = t.opts.Detect()
	}

	port, err := t.opts.Open(name, t.opts.BaudRate)
	if err != nil {
		t.state.Store(int32(StateDisconnected))
		return nil, name, err
	}

	t.portMu.Lock()
	t.port = port
	t.portName = name
	t.portMu.Unlock()

	t.state.Store(int32(StateConnected))
	return port, name, nil
}

// readLoop reads lines until the port fails or ctx is cancelled.
func (t *Transport) readLoop(ctx context.Context, port Port) error {
	var lines lineBuffer
	buf := make([]byte, readBufferSize)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, err := port.Read(buf)
		if n > 0 {
			complete, dropped := lines.Feed(buf[:n])
			if dropped {
				t.discarded.Add(1)
				t.logWarn("discarding oversized device line", "error", ErrLineTooLong)
			}
			for _, line := range complete {
				t.handleLine(line)
			}
		}
		if err != nil {
			return err
		}
	}
}

func (t *Transport) handleLine(line string) {
	msg, ok := protocol.DecodeDeviceLine(line)
	if !ok {
		return
	}

	t.received.Add(1)
	if msg.MessageType() == protocol.TypeHeartbeat {
		t.lastHeartbeat.Store(time.Now().UnixMilli())
	}

	if t.opts.OnMessage != nil {
		t.opts.OnMessage(msg)
	}
}

// Send writes msg as a single JSON line. When the port is not open the
// message is dropped and ErrNotConnected is returned.
func (t *Transport) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		t.dropped.Add(1)
		return err
	}
	data = append(data, '\n')

	t.portMu.Lock()
	defer t.portMu.Unlock()

	if t.port == nil {
		t.dropped.Add(1)
		return ErrNotConnected
	}

	if _, err := t.port.Write(data); err != nil {
		t.dropped.Add(1)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if d, ok := t.port.(drainer); ok {
		if err := d.Drain(); err != nil {
			t.logDebug("serial drain failed", "error", err)
		}
	}

	t.sent.Add(1)
	return nil
}

// Restart closes the current port. Run reconnects after the backoff.
func (t *Transport) Restart() {
	t.logInfo("serial restart requested")
	t.closePort()
}

func (t *Transport) closePort() {
	t.portMu.Lock()
	port := t.port
	t.port = nil
	t.portMu.Unlock()

	t.state.Store(int32(StateDisconnected))
	if port == nil {
		return
	}
	if err := port.Close(); err != nil {
		t.logDebug("serial close failed", "error", err)
	}
}

// wait sleeps for the backoff. Returns false if ctx was cancelled.
func (t *Transport) wait(ctx context.Context) bool {
	timer := time.NewTimer(t.opts.Backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// EncoderID returns the encoder for a parameter, falling back to 0 with a
// warning for unknown IDs.
func (t *Transport) EncoderID(parameterID string) int {
	enc, ok := EncoderFor(parameterID)
	if !ok {
		t.logWarn("no encoder mapped for parameter, using encoder 0", "parameter_id", parameterID)
		return 0
	}
	return enc
}

// IsConnected reports whether the port is open.
func (t *Transport) IsConnected() bool {
	return t.State() == StateConnected
}

// State returns the current connection state.
func (t *Transport) State() State {
	return State(t.state.Load())
}

// Stats returns current operational statistics.
func (t *Transport) Stats() Stats {
	t.portMu.Lock()
	name := t.portName
	t.portMu.Unlock()

	var hb time.Time
	if ms := t.lastHeartbeat.Load(); ms > 0 {
		hb = time.UnixMilli(ms)
	}

	return Stats{
		MessagesReceived:   t.received.Load(),
		MessagesSent:       t.sent.Load(),
		MessagesDropped:    t.dropped.Load(),
		LinesDiscarded:     t.discarded.Load(),
		ConnectionAttempts: t.attempts.Load(),
		LastHeartbeat:      hb,
		State:              t.State(),
		PortName:           name,
	}
}

func (t *Transport) logDebug(msg string, keysAndValues ...any) {
	if t.opts.Logger != nil {
		t.opts.Logger.Debug(msg, keysAndValues...)
	}
}

func (t *Transport) logInfo(msg string, keysAndValues ...any) {
	if t.opts.Logger != nil {
		t.opts.Logger.Info(msg, keysAndValues...)
	}
}

func (t *Transport) logWarn(msg string, keysAndValues ...any) {
	if t.opts.Logger != nil {
		t.opts.Logger.Warn(msg, keysAndValues...)
	}
}
