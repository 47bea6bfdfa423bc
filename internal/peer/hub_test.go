package peer

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/paramsync/internal/infrastructure/config"
	"github.com/nerrad567/paramsync/internal/protocol"
)

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		Path:           "/",
		MaxMessageSize: 65536,
		PingInterval:   30,
		PongTimeout:    10,
		SendBufferSize: 16,
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialPeer(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(testWSConfig(), nil)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func TestHub_RelaysSyncToOthersOnly(t *testing.T) {
	hub, srv := startHub(t)

	var (
		mu      sync.Mutex
		handled []protocol.Type
	)
	hub.SetHandler(func(_ *Peer, _ []byte, msg protocol.Message) {
		mu.Lock()
		handled = append(handled, msg.MessageType())
		mu.Unlock()
	})

	a := dialPeer(t, wsURL(srv))
	b := dialPeer(t, wsURL(srv))
	c := dialPeer(t, wsURL(srv))
	require.Eventually(t, func() bool { return hub.PeerCount() == 3 }, time.Second, 5*time.Millisecond)

	// Deliberately odd spacing: the relay must not re-encode.
	frame := []byte(`{"type":"parameter_structure_sync",  "timestamp":1,"structure_hash":"abc","parameters":[{"id":"drive","name":"Drive"}]}`)
	require.NoError(t, a.WriteMessage(websocket.TextMessage, frame))

	for _, conn := range []*websocket.Conn{b, c} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, got, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, frame, got)
	}

	require.NoError(t, a.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := a.ReadMessage()
	assert.Error(t, err, "sender must not receive its own sync message")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 1 && handled[0] == protocol.TypeStructureSync
	}, time.Second, 5*time.Millisecond)

	stats := hub.Stats()
	assert.Equal(t, uint64(3), stats.Connections)
	assert.Equal(t, uint64(2), stats.Relayed)
}

func TestHub_NonSyncIsNotRelayed(t *testing.T) {
	hub, srv := startHub(t)

	got := make(chan protocol.Message, 1)
	hub.SetHandler(func(_ *Peer, _ []byte, msg protocol.Message) { got <- msg })

	a := dialPeer(t, wsURL(srv))
	b := dialPeer(t, wsURL(srv))
	require.Eventually(t, func() bool { return hub.PeerCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"bridge_command","command":"get_status"}`)))

	select {
	case msg := <-got:
		assert.Equal(t, protocol.TypeBridgeCommand, msg.MessageType())
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}

	require.NoError(t, b.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := b.ReadMessage()
	assert.Error(t, err)
}

func TestHub_MalformedIsCountedAndConnectionStays(t *testing.T) {
	hub, srv := startHub(t)
	a := dialPeer(t, wsURL(srv))
	b := dialPeer(t, wsURL(srv))
	require.Eventually(t, func() bool { return hub.PeerCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{{nope`)))
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"request_parameter_state"}`)))

	require.NoError(t, b.SetReadDeadline(time.Now().Add(time.Second)))
	_, got, err := b.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(got), "request_parameter_state")
	assert.Equal(t, uint64(1), hub.Stats().MessagesMalformed)
}

func TestHub_OnConnectAndPublish(t *testing.T) {
	hub, srv := startHub(t)
	hub.SetOnConnect(func(p *Peer) {
		hub.SendTo(p, protocol.BridgeCommand{Command: "hello"})
	})

	a := dialPeer(t, wsURL(srv))
	require.NoError(t, a.SetReadDeadline(time.Now().Add(time.Second)))
	_, got, err := a.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(got), `"command":"hello"`)

	assert.Equal(t, 1, hub.Publish(protocol.RequestParameterState{}))
	_, got, err = a.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(got), "request_parameter_state")
}

func TestHub_DisconnectRemovesPeer(t *testing.T) {
	hub, srv := startHub(t)
	a := dialPeer(t, wsURL(srv))
	require.Eventually(t, func() bool { return hub.PeerCount() == 1 }, time.Second, 5*time.Millisecond)

	a.Close()
	require.Eventually(t, func() bool { return hub.PeerCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, hub.Broadcast([]byte(`{"type":"x"}`)))
}

func TestHub_RunClosesPeers(t *testing.T) {
	hub, srv := startHub(t)
	a := dialPeer(t, wsURL(srv))
	require.Eventually(t, func() bool { return hub.PeerCount() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	require.NoError(t, a.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := a.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.PeerCount())
}

func TestHub_CloseWhileBroadcasting(t *testing.T) {
	hub := NewHub(testWSConfig(), nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	for i := 0; i < 3; i++ {
		dialPeer(t, wsURL(srv))
	}
	require.Eventually(t, func() bool { return hub.PeerCount() == 3 }, time.Second, 5*time.Millisecond)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Broadcast([]byte(`{"type":"parameter_value_sync","timestamp":1,"updates":[]}`))
				}
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	hub.Close()
	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()

	assert.Equal(t, 0, hub.PeerCount())
	assert.Equal(t, 0, hub.Broadcast([]byte(`{"type":"x"}`)))
}

func TestHub_SendToAfterDisconnect(t *testing.T) {
	hub, srv := startHub(t)

	var (
		mu   sync.Mutex
		last *Peer
	)
	hub.SetOnConnect(func(p *Peer) {
		mu.Lock()
		last = p
		mu.Unlock()
	})

	a := dialPeer(t, wsURL(srv))
	require.Eventually(t, func() bool { return hub.PeerCount() == 1 }, time.Second, 5*time.Millisecond)
	a.Close()
	require.Eventually(t, func() bool { return hub.PeerCount() == 0 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	p := last
	mu.Unlock()
	require.NotNil(t, p)
	assert.False(t, hub.SendTo(p, protocol.BridgeCommand{Command: "get_status"}))
}

func TestHub_ZeroConfigUsesDefaults(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, nil)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	a := dialPeer(t, wsURL(srv))
	b := dialPeer(t, wsURL(srv))
	require.Eventually(t, func() bool { return hub.PeerCount() == 2 }, time.Second, 5*time.Millisecond)

	frame := []byte(`{"type":"parameter_value_sync","timestamp":1,"updates":[{"id":"drive","value":0.4}]}`)
	require.NoError(t, a.WriteMessage(websocket.TextMessage, frame))

	require.NoError(t, b.SetReadDeadline(time.Now().Add(time.Second)))
	_, got, err := b.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, frame, got)
	assert.Equal(t, 2, hub.PeerCount())
}
