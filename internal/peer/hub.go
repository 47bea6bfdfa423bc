package peer

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/paramsync/internal/infrastructure/config"
	"github.com/nerrad567/paramsync/internal/protocol"
)

// Defaults applied by NewHub to unset WebSocketConfig fields.
const (
	defaultSendBufferSize = 256
	defaultMaxMessageSize = 65536
	defaultPingInterval   = 30 // seconds
	defaultPongTimeout    = 10 // seconds
)

// Handler receives every well-formed message read from a peer, after any
// relay has been queued. data is the frame exactly as received.
type Handler func(p *Peer, data []byte, msg protocol.Message)

// HubStats holds hub counters.
type HubStats struct {
	Connections       uint64 // total accepted since start
	MessagesReceived  uint64
	MessagesSent      uint64 // frames queued to peers
	MessagesDropped   uint64 // frames skipped because a peer's buffer was full
	MessagesMalformed uint64
	Relayed           uint64
	Peers             int
}

// Hub is the server role of the WebSocket endpoint.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   Logger
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	peers     map[*Peer]struct{}
	closed    bool
	handler   Handler
	onConnect func(*Peer)

	connections atomic.Uint64
	received    atomic.Uint64
	sent        atomic.Uint64
	dropped     atomic.Uint64
	malformed   atomic.Uint64
	relayed     atomic.Uint64
}

// Peer is one connection accepted by a Hub.
type Peer struct {
	ID         string
	RemoteAddr string

	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	connectedAt time.Time

	// done is closed once when the peer leaves the hub. send is never
	// closed, so senders racing a disconnect see done instead.
	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates a hub. A nil logger discards output.
func NewHub(cfg config.WebSocketConfig, logger Logger) *Hub {
	if logger == nil {
		logger = noopLogger{}
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultPongTimeout
	}
	return &Hub{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				// Peers are unauthenticated; any origin may connect.
				return true
			},
		},
		peers: make(map[*Peer]struct{}),
	}
}

// SetHandler sets the callback for inbound messages.
func (h *Hub) SetHandler(fn Handler) {
	h.mu.Lock()
	h.handler = fn
	h.mu.Unlock()
}

// SetOnConnect sets a callback run after each peer registers.
func (h *Hub) SetOnConnect(fn func(*Peer)) {
	h.mu.Lock()
	h.onConnect = fn
	h.mu.Unlock()
}

// Run blocks until ctx is cancelled, then disconnects every peer.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.Close()
}

// Close disconnects all peers. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for p := range h.peers {
		p.shutdown()
		p.conn.Close()
		delete(h.peers, p)
	}
}

// ServeHTTP upgrades the request and starts serving the new peer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	p := &Peer{
		ID:          uuid.NewString(),
		RemoteAddr:  r.RemoteAddr,
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, h.cfg.SendBufferSize),
		connectedAt: time.Now(),
		done:        make(chan struct{}),
	}

	if err := h.Register(p); err != nil {
		h.logger.Debug("rejecting peer", "remote", r.RemoteAddr, "error", err)
		conn.Close()
		return
	}

	go p.writePump()
	go p.readPump()

	h.mu.RLock()
	onConnect := h.onConnect
	h.mu.RUnlock()
	if onConnect != nil {
		onConnect(p)
	}
}

// Register adds a peer to the hub.
func (h *Hub) Register(p *Peer) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.peers[p] = struct{}{}
	count := len(h.peers)
	h.mu.Unlock()

	h.connections.Add(1)
	h.logger.Info("peer connected", "peer_id", p.ID, "remote", p.RemoteAddr, "peers", count)
	return nil
}

// Unregister removes a peer from the hub.
func (h *Hub) Unregister(p *Peer) {
	h.mu.Lock()
	_, existed := h.peers[p]
	delete(h.peers, p)
	count := len(h.peers)
	h.mu.Unlock()

	if existed {
		p.shutdown()
		h.logger.Info("peer disconnected", "peer_id", p.ID, "remote", p.RemoteAddr, "peers", count,
			"connected_for", time.Since(p.connectedAt).Round(time.Second))
	}
}

// Publish encodes msg and sends it to every peer.
func (h *Hub) Publish(msg protocol.Message) int {
	data, err := protocol.Encode(msg)
	if err != nil {
		h.logger.Error("failed to encode broadcast message", "type", msg.MessageType(), "error", err)
		return 0
	}
	return h.Broadcast(data)
}

// Broadcast sends data to every peer and returns the number queued.
func (h *Hub) Broadcast(data []byte) int {
	return h.BroadcastExcept(data, nil)
}

// BroadcastExcept sends data to every peer other than except.
// The peer set is snapshotted under the hub lock and sends happen after it
// is released.
func (h *Hub) BroadcastExcept(data []byte, except *Peer) int {
	h.mu.RLock()
	peers := make([]*Peer, 0, len(h.peers))
	for p := range h.peers {
		if p != except {
			peers = append(peers, p)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, p := range peers {
		if p.trySend(data) {
			sent++
		}
	}
	return sent
}

// SendTo encodes msg and queues it for a single peer.
func (h *Hub) SendTo(p *Peer, msg protocol.Message) bool {
	data, err := protocol.Encode(msg)
	if err != nil {
		h.logger.Error("failed to encode message", "type", msg.MessageType(), "error", err)
		return false
	}
	return p.trySend(data)
}

// PeerCount returns the number of connected peers.
func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Stats returns current hub counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Connections:       h.connections.Load(),
		MessagesReceived:  h.received.Load(),
		MessagesSent:      h.sent.Load(),
		MessagesDropped:   h.dropped.Load(),
		MessagesMalformed: h.malformed.Load(),
		Relayed:           h.relayed.Load(),
		Peers:             h.PeerCount(),
	}
}

// dispatch relays sync messages and hands the message to the handler.
func (h *Hub) dispatch(p *Peer, data []byte) {
	h.received.Add(1)

	msg, err := protocol.Decode(data)
	if err != nil {
		h.malformed.Add(1)
		h.logger.Debug("dropping malformed peer message", "peer_id", p.ID, "error", err)
		return
	}

	if protocol.IsSyncClass(msg.MessageType()) {
		n := h.BroadcastExcept(data, p)
		h.relayed.Add(uint64(n))
		h.logger.Debug("relayed sync message", "type", msg.MessageType(), "from", p.ID, "recipients", n)
	}

	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()
	if handler != nil {
		handler(p, data, msg)
	}
}

// readPump reads frames from the connection until it fails.
func (p *Peer) readPump() {
	defer func() {
		p.hub.Unregister(p)
		p.conn.Close()
	}()

	cfg := p.hub.cfg
	p.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	p.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.hub.logger.Warn("peer read error", "peer_id", p.ID, "error", err)
			} else {
				p.hub.logger.Debug("peer closed", "peer_id", p.ID, "error", err)
			}
			return
		}
		// Any frame counts as liveness, for peers that ignore pings.
		//nolint:errcheck // Best-effort deadline reset
		p.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		p.hub.dispatch(p, data)
	}
}

// writePump writes queued frames and keepalive pings.
func (p *Peer) writePump() {
	pingInterval := time.Duration(p.hub.cfg.PingInterval) * time.Second
	pongWait := time.Duration(p.hub.cfg.PongTimeout) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case <-p.done:
			//nolint:errcheck // Best-effort close message
			p.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case data := <-p.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			p.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			p.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues data without blocking. It returns false if the peer has
// gone or its buffer is full.
func (p *Peer) trySend(data []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case <-p.done:
		return false
	case p.send <- data:
		p.hub.sent.Add(1)
		return true
	default:
		p.hub.dropped.Add(1)
		return false
	}
}

// shutdown marks the peer as gone and stops its writePump.
func (p *Peer) shutdown() {
	p.closeOnce.Do(func() { close(p.done) })
}
