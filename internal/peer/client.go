package peer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/paramsync/internal/protocol"
)

// Client defaults.
const (
	DefaultDialTimeout  = 3 * time.Second
	DefaultWriteTimeout = 100 * time.Millisecond
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// Candidates are tried in order on every Run.
	Candidates []string

	// DialTimeout bounds each candidate attempt. Defaults to 3s.
	DialTimeout time.Duration

	// WriteTimeout bounds a send before it falls back to the queue.
	// Defaults to 100ms.
	WriteTimeout time.Duration

	// MaxMessageSize limits inbound frames. Zero means no limit.
	MaxMessageSize int64

	// OnMessage receives each decoded inbound message on the read goroutine.
	OnMessage func(protocol.Message)

	// OnConnect runs after the state request and queue flush.
	OnConnect func(url string)

	Logger Logger
}

// ClientStats holds client counters.
type ClientStats struct {
	MessagesReceived  uint64
	MessagesSent      uint64
	MessagesQueued    uint64
	MessagesMalformed uint64
	Connects          uint64
	QueueLen          int
	ActiveURL         string
}

// Client is the client role of the WebSocket endpoint: a single upstream
// connection chosen by discovery.
type Client struct {
	opts   ClientOptions
	logger Logger
	dialer websocket.Dialer

	// mu guards conn, activeURL and queue, and serialises writes so that
	// a flush and concurrent sends cannot reorder.
	mu        sync.Mutex
	conn      *websocket.Conn
	activeURL string
	queue     [][]byte

	received  atomic.Uint64
	sent      atomic.Uint64
	queued    atomic.Uint64
	malformed atomic.Uint64
	connects  atomic.Uint64
}

// NewClient creates a client. It does not connect until Run.
func NewClient(opts ClientOptions) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Client{
		opts:   opts,
		logger: logger,
		dialer: websocket.Dialer{HandshakeTimeout: opts.DialTimeout},
	}
}

// SetCandidates replaces the candidate list used by the next Run.
func (c *Client) SetCandidates(urls []string) {
	c.mu.Lock()
	c.opts.Candidates = append([]string(nil), urls...)
	c.mu.Unlock()
}

// Run connects to the first reachable candidate and reads from it until the
// connection ends or ctx is cancelled.
//
// It returns nil after cancellation, ErrNoReachableServer if no candidate
// answered, and ErrConnectionClosed when an established connection ends.
func (c *Client) Run(ctx context.Context) error {
	conn, url, err := c.dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	c.connects.Add(1)
	c.logger.Info("connected to server", "url", url)
	c.attach(conn, url)

	if c.opts.OnConnect != nil {
		c.opts.OnConnect(url)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	readErr := c.readLoop(conn)
	c.detach(conn)

	if ctx.Err() != nil {
		return nil
	}
	c.logger.Warn("server connection lost", "url", url, "error", readErr)
	return fmt.Errorf("%w: %s: %w", ErrConnectionClosed, url, readErr)
}

// dial tries each candidate in order.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, string, error) {
	c.mu.Lock()
	candidates := append([]string(nil), c.opts.Candidates...)
	c.mu.Unlock()

	if len(candidates) == 0 {
		return nil, "", ErrNoCandidates
	}

	var lastErr error
	for _, url := range candidates {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}

		dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
		conn, resp, err := c.dialer.DialContext(dialCtx, url, nil)
		cancel()
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			c.logger.Debug("candidate unreachable", "url", url, "error", err)
			lastErr = err
			continue
		}

		if c.opts.MaxMessageSize > 0 {
			conn.SetReadLimit(c.opts.MaxMessageSize)
		}
		return conn, url, nil
	}

	return nil, "", fmt.Errorf("%w: tried %d candidates: %w", ErrNoReachableServer, len(candidates), lastErr)
}

// attach makes conn active, requests the current state and flushes the
// queue in FIFO order.
func (c *Client) attach(conn *websocket.Conn, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn = conn
	c.activeURL = url

	req, err := protocol.Encode(protocol.RequestParameterState{Timestamp: protocol.Now()})
	if err == nil {
		if err := c.writeLocked(req); err != nil {
			c.logger.Warn("state request failed", "url", url, "error", err)
			return
		}
	}

	flushed := 0
	for len(c.queue) > 0 {
		if err := c.writeLocked(c.queue[0]); err != nil {
			c.logger.Warn("queue flush interrupted", "remaining", len(c.queue), "error", err)
			return
		}
		c.queue[0] = nil
		c.queue = c.queue[1:]
		flushed++
	}
	if flushed > 0 {
		c.logger.Info("flushed queued messages", "count", flushed)
	}
}

func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.activeURL = ""
	}
	c.mu.Unlock()
	conn.Close()
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.received.Add(1)

		msg, err := protocol.Decode(data)
		if err != nil {
			c.malformed.Add(1)
			c.logger.Debug("dropping malformed server message", "error", err)
			continue
		}
		if c.opts.OnMessage != nil {
			c.opts.OnMessage(msg)
		}
	}
}

// Send transmits msg, or queues it when there is no connection or the write
// does not complete within the write timeout. It never blocks for longer
// than the write timeout. The only error is an encoding failure.
func (c *Client) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		c.enqueueLocked(data)
		return nil
	}

	if err := c.writeLocked(data); err != nil {
		c.logger.Debug("send failed, queueing", "type", msg.MessageType(), "error", err)
		c.enqueueLocked(data)
		// A failed write leaves the connection unusable.
		c.conn.Close()
	}
	return nil
}

func (c *Client) writeLocked(data []byte) error {
	//nolint:errcheck // Best-effort deadline; write error caught below
	c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.sent.Add(1)
	return nil
}

func (c *Client) enqueueLocked(data []byte) {
	c.queue = append(c.queue, data)
	c.queued.Add(1)
}

// Connected reports whether there is an active connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// ActiveURL returns the URL of the active connection, or "".
func (c *Client) ActiveURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeURL
}

// QueueLen returns the number of messages waiting for a connection.
func (c *Client) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Stats returns current client counters.
func (c *Client) Stats() ClientStats {
	c.mu.Lock()
	qlen, url := len(c.queue), c.activeURL
	c.mu.Unlock()

	return ClientStats{
		MessagesReceived:  c.received.Load(),
		MessagesSent:      c.sent.Load(),
		MessagesQueued:    c.queued.Load(),
		MessagesMalformed: c.malformed.Load(),
		Connects:          c.connects.Load(),
		QueueLen:          qlen,
		ActiveURL:         url,
	}
}

// RunLoop calls Run until ctx is cancelled, pausing retryDelay between
// attempts. refresh, when non-nil, rebuilds the candidate list before each
// attempt.
func (c *Client) RunLoop(ctx context.Context, retryDelay time.Duration, refresh func() []string) {
	for {
		if refresh != nil {
			c.SetCandidates(refresh())
		}

		err := c.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrNoReachableServer) || errors.Is(err, ErrNoCandidates) {
			c.logger.Warn("no server found, retrying", "delay", retryDelay, "error", err)
		}

		timer := time.NewTimer(retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
