package router

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/paramsync/internal/bridges/esp32"
	"github.com/nerrad567/paramsync/internal/parameter"
	"github.com/nerrad567/paramsync/internal/protocol"
)

// mockDevice records device-bound messages.
type mockDevice struct {
	mu      sync.Mutex
	sent    []protocol.Message
	sendErr error
}

func (d *mockDevice) Send(msg protocol.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sendErr != nil {
		return d.sendErr
	}
	d.sent = append(d.sent, msg)
	return nil
}

func (d *mockDevice) EncoderID(id string) int {
	enc, ok := esp32.EncoderFor(id)
	if !ok {
		return 0
	}
	return enc
}

func (d *mockDevice) LEDUpdates() []protocol.LEDUpdate {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []protocol.LEDUpdate
	for _, m := range d.sent {
		if led, ok := m.(protocol.LEDUpdate); ok {
			out = append(out, led)
		}
	}
	return out
}

// mockPublisher records peer-bound messages.
type mockPublisher struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (p *mockPublisher) Publish(msg protocol.Message) {
	p.mu.Lock()
	p.msgs = append(p.msgs, msg)
	p.mu.Unlock()
}

func (p *mockPublisher) Messages() []protocol.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]protocol.Message(nil), p.msgs...)
}

func newTestRouter(t *testing.T) (*Router, *mockDevice, *mockPublisher) {
	t.Helper()
	reg := parameter.NewRegistry()
	reg.LoadMock()

	dev := &mockDevice{}
	pub := &mockPublisher{}
	r := New(reg, Options{
		Device:              dev,
		ParameterForEncoder: esp32.ParameterForEncoder,
		Publish:             pub.Publish,
	})
	return r, dev, pub
}

func TestHandlePeer_ValueSyncDoesNotRebroadcast(t *testing.T) {
	r, dev, pub := newTestRouter(t)

	r.HandlePeer(protocol.ValueSync{Updates: []protocol.ValueUpdate{
		{ID: "threshold", Value: parameter.Float(0.25)},
	}}, nil)

	p, ok := r.Registry().Find("threshold")
	require.True(t, ok)
	assert.Equal(t, 0.25, p.Value)
	assert.Equal(t, "-12dB", p.Text)

	assert.Empty(t, pub.Messages(), "inbound value must not be published again")

	leds := dev.LEDUpdates()
	require.Len(t, leds, 1)
	assert.Equal(t, 7, leds[0].EncoderID)
	assert.Equal(t, 0.25, leds[0].Value)
	assert.Equal(t, protocol.PatternRingFill, leds[0].Pattern)
	assert.Equal(t, p.RGB, leds[0].Color)
}

func TestHandlePeer_ValueSyncWithColor(t *testing.T) {
	r, dev, pub := newTestRouter(t)

	rgb := parameter.RGB{R: 0, G: 188, B: 212}
	r.HandlePeer(protocol.ValueSync{Updates: []protocol.ValueUpdate{
		{ID: "drive", Value: parameter.Float(0.55), RGB: &rgb},
		{ID: "nope", Value: parameter.Float(0.1)},
	}}, nil)

	p, _ := r.Registry().Find("drive")
	assert.Equal(t, "55%", p.Text)
	assert.Equal(t, "#00bcd4", p.Color)

	assert.Empty(t, pub.Messages())
	leds := dev.LEDUpdates()
	require.Len(t, leds, 2)
	assert.Equal(t, rgb, leds[0].Color)
	assert.Equal(t, 0, leds[1].EncoderID, "unmapped ids fall back to encoder 0")
	assert.Equal(t, uint64(1), r.Stats().UnknownParameters)

	_, ok := r.Registry().Find("nope")
	assert.False(t, ok, "unknown ids are not added to the registry")
}

func TestHandlePeer_ValueSyncEmptyRegistryStillDraws(t *testing.T) {
	dev := &mockDevice{}
	r := New(parameter.NewRegistry(), Options{Device: dev})

	rgb := parameter.RGB{R: 1, G: 2, B: 3}
	r.HandlePeer(protocol.ValueSync{Updates: []protocol.ValueUpdate{
		{ID: "drive", Value: parameter.Float(0.7)},
		{ID: "tone", Value: parameter.Float(1.4), RGB: &rgb},
		{ID: "unmapped", Value: parameter.Float(0.2)},
	}}, nil)

	leds := dev.LEDUpdates()
	require.Len(t, leds, 3)

	assert.Equal(t, 1, leds[0].EncoderID)
	assert.Equal(t, 0.7, leds[0].Value)
	assert.Equal(t, parameter.RGB{R: 255, G: 128, B: 0}, leds[0].Color)
	assert.Equal(t, protocol.PatternRingFill, leds[0].Pattern)

	assert.Equal(t, 2, leds[1].EncoderID)
	assert.Equal(t, 1.0, leds[1].Value, "value is clamped")
	assert.Equal(t, rgb, leds[1].Color)

	assert.Equal(t, 0, leds[2].EncoderID)

	assert.Equal(t, 0, r.Registry().Len())
	assert.Equal(t, uint64(3), r.Stats().UnknownParameters)
	assert.Equal(t, uint64(3), r.Stats().LEDUpdatesSent)
}

func TestHandlePeer_ColorSync(t *testing.T) {
	r, dev, pub := newTestRouter(t)

	rgb := parameter.RGB{R: 1, G: 2, B: 3}
	r.HandlePeer(protocol.ColorSync{Updates: []protocol.ColorUpdate{
		{ID: "attack", Color: parameter.String("#00BCD4"), RGB: &rgb},
		{ID: "mix", RGB: &rgb},
	}}, nil)

	attack, _ := r.Registry().Find("attack")
	assert.Equal(t, parameter.RGB{R: 0, G: 188, B: 212}, attack.RGB, "hex preferred over rgb")

	mix, _ := r.Registry().Find("mix")
	assert.Equal(t, "#010203", mix.Color)

	assert.Empty(t, pub.Messages())
	leds := dev.LEDUpdates()
	require.Len(t, leds, 2)
	assert.Equal(t, 5, leds[0].EncoderID)
	assert.Equal(t, 4, leds[1].EncoderID)
}

func TestHandlePeer_StructureSyncMatchingHashIsNoop(t *testing.T) {
	r, dev, _ := newTestRouter(t)
	reg := r.Registry()
	before := reg.List()

	r.HandlePeer(protocol.StructureSync{
		StructureHash: reg.Fingerprint(),
		Parameters: []protocol.ParameterState{
			{ID: "drive", Name: parameter.String("Drive"), Value: parameter.Float(0.99)},
		},
	}, nil)

	assert.Equal(t, before, reg.List())
	assert.Empty(t, dev.LEDUpdates())
	assert.Equal(t, uint64(1), r.Stats().StructuresSkipped)
}

func TestHandlePeer_StructureSyncEmptyIsIgnored(t *testing.T) {
	r, _, _ := newTestRouter(t)
	before := r.Registry().List()

	r.HandlePeer(protocol.StructureSync{StructureHash: "something-else"}, nil)

	assert.Equal(t, before, r.Registry().List())
}

func TestHandlePeer_StructureSyncReplaces(t *testing.T) {
	r, dev, pub := newTestRouter(t)
	events, cancel := r.Subscribe(4)
	defer cancel()

	r.HandlePeer(protocol.StructureSync{
		StructureHash: "h2",
		Parameters: []protocol.ParameterState{
			{ID: "ratio", Name: parameter.String("Ratio"), Value: parameter.Float(1)},
			{ID: "knee", Name: parameter.String("Knee"), Value: parameter.Float(0.5)},
		},
	}, nil)

	reg := r.Registry()
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, "h2", reg.StructureHash())
	ratio, _ := reg.Find("ratio")
	assert.Equal(t, "∞:1", ratio.Text)

	assert.Empty(t, pub.Messages())
	assert.Len(t, dev.LEDUpdates(), 2)

	ev := <-events
	assert.Equal(t, EventStructureReplaced, ev.Kind)
	assert.Equal(t, 2, ev.Count)

	// Same hash again is now a no-op.
	r.HandlePeer(protocol.StructureSync{
		StructureHash: "h2",
		Parameters:    []protocol.ParameterState{{ID: "x"}},
	}, nil)
	assert.Equal(t, 2, reg.Len())
}

func TestHandlePeer_RequestState(t *testing.T) {
	r, _, pub := newTestRouter(t)

	var replies []protocol.Message
	r.HandlePeer(protocol.RequestParameterState{}, func(m protocol.Message) { replies = append(replies, m) })

	require.Len(t, replies, 1)
	ss, ok := replies[0].(protocol.StructureSync)
	require.True(t, ok)
	assert.Len(t, ss.Parameters, 8)
	assert.Equal(t, r.Registry().Fingerprint(), ss.StructureHash)
	assert.Empty(t, pub.Messages(), "reply goes to the requester only")

	empty := New(parameter.NewRegistry(), Options{})
	replies = nil
	empty.HandlePeer(protocol.RequestParameterState{}, func(m protocol.Message) { replies = append(replies, m) })
	assert.Empty(t, replies)
}

func TestHandleDevice_EncoderPublishes(t *testing.T) {
	r, dev, pub := newTestRouter(t)
	events, cancel := r.Subscribe(1)
	defer cancel()

	r.HandleDevice(protocol.EncoderChange{EncoderID: 1, Value: 0.55})

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	vs, ok := msgs[0].(protocol.ValueSync)
	require.True(t, ok)
	require.Len(t, vs.Updates, 1)
	assert.Equal(t, "drive", vs.Updates[0].ID)
	assert.Equal(t, "55%", *vs.Updates[0].Text)
	assert.Empty(t, dev.LEDUpdates())

	ev := <-events
	assert.Equal(t, SourceDevice, ev.Source)

	r.HandleDevice(protocol.EncoderChange{EncoderID: 42, Value: 1})
	r.HandleDevice(protocol.Heartbeat{})
	assert.Len(t, pub.Messages(), 1)
}

func TestLocalEditPublishesAndDraws(t *testing.T) {
	r, dev, pub := newTestRouter(t)

	p, ok := r.SetValue("mix", 0.9)
	require.True(t, ok)
	assert.Equal(t, "90%", p.Text)

	_, ok = r.SetColor("mix", "#00BCD4")
	require.True(t, ok)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.IsType(t, protocol.ValueSync{}, msgs[0])
	assert.IsType(t, protocol.ColorSync{}, msgs[1])
	assert.Len(t, dev.LEDUpdates(), 2)

	_, ok = r.SetValue("missing", 0.5)
	assert.False(t, ok)
	assert.Len(t, pub.Messages(), 2)
}

func TestDeviceFailureIsCounted(t *testing.T) {
	r, dev, _ := newTestRouter(t)
	dev.sendErr = errors.New("esp32: not connected")

	r.HandlePeer(protocol.ValueSync{Updates: []protocol.ValueUpdate{{ID: "tone", Value: parameter.Float(0.1)}}}, nil)

	p, _ := r.Registry().Find("tone")
	assert.Equal(t, 0.1, p.Value, "registry still updated")
	assert.Equal(t, uint64(1), r.Stats().LEDUpdatesFailed)
}

func TestSubscribe_DropsWhenFull(t *testing.T) {
	r, _, _ := newTestRouter(t)
	events, cancel := r.Subscribe(1)

	r.SetValue("mix", 0.1)
	r.SetValue("mix", 0.2)

	ev := <-events
	assert.Equal(t, 0.1, ev.Parameter.Value)
	assert.Equal(t, uint64(1), r.Stats().EventsDropped)

	cancel()
	_, open := <-events
	assert.False(t, open)
	cancel()
}
