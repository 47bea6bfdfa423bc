package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/nerrad567/paramsync/internal/infrastructure/mqtt"
	"github.com/nerrad567/paramsync/internal/parameter"
	"github.com/nerrad567/paramsync/internal/protocol"
	"github.com/nerrad567/paramsync/internal/router"
)

// mirrorEventBuffer sizes the router subscription used by the mirror.
const mirrorEventBuffer = 64

// Broker is the subset of *mqtt.Client used by the mirror.
type Broker interface {
	PublishRetained(topic string, payload []byte) error
	PublishEvent(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// MirrorStats holds mirror counters.
type MirrorStats struct {
	Published        uint64
	PublishFailed    uint64
	CommandsApplied  uint64
	CommandsRejected uint64
}

// Mirror keeps retained parameter state on an MQTT broker and turns broker
// commands into local edits.
type Mirror struct {
	broker Broker
	topics mqtt.Topics
	router *router.Router
	logger Logger

	published atomic.Uint64
	failed    atomic.Uint64
	applied   atomic.Uint64
	rejected  atomic.Uint64
}

// commandPayload is the body accepted on a parameter command topic.
type commandPayload struct {
	Value *float64 `json:"value"`
	Color string   `json:"color"`
}

// NewMirror creates a mirror publishing under topics.
func NewMirror(broker Broker, topics mqtt.Topics, rt *router.Router, logger Logger) *Mirror {
	if logger == nil {
		logger = noopLogger{}
	}
	if topics.Prefix == "" {
		topics = mqtt.NewTopics("")
	}
	return &Mirror{broker: broker, topics: topics, router: rt, logger: logger}
}

// Run subscribes to parameter commands, publishes the full registry and
// then mirrors router events until ctx is done.
func (m *Mirror) Run(ctx context.Context) error {
	events, cancel := m.router.Subscribe(mirrorEventBuffer)
	defer cancel()

	if err := m.broker.Subscribe(m.topics.AllParameterCommands(), 1, m.HandleCommand); err != nil {
		// The client restores subscriptions it tracked, but a failed first
		// subscribe is not tracked. Keep mirroring state regardless.
		m.logger.Warn("mqtt command subscription failed", "error", err)
	}
	m.Resync()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.handleEvent(ev)
		}
	}
}

func (m *Mirror) handleEvent(ev router.Event) {
	switch ev.Kind {
	case router.EventStructureReplaced:
		m.Resync()
	case router.EventValueChanged, router.EventColorChanged:
		m.publishParameter(ev.Parameter)
	}
}

// Resync publishes retained state for every parameter. Call it after a
// broker reconnect.
func (m *Mirror) Resync() {
	for _, p := range m.router.Registry().List() {
		m.publishParameter(p)
	}
}

func (m *Mirror) publishParameter(p parameter.Parameter) {
	data, err := json.Marshal(p)
	if err != nil {
		m.failed.Add(1)
		return
	}
	if err := m.broker.PublishRetained(m.topics.ParameterState(p.ID), data); err != nil {
		m.failed.Add(1)
		m.logger.Debug("mqtt state publish failed", "parameter_id", p.ID, "error", err)
		return
	}
	m.published.Add(1)
}

// PublishDevice forwards device telemetry. Debug output is skipped.
func (m *Mirror) PublishDevice(msg protocol.Message) {
	if msg.MessageType() == protocol.TypeDeviceDebug {
		return
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		m.failed.Add(1)
		return
	}
	if err := m.broker.PublishEvent(m.topics.DeviceTelemetry(string(msg.MessageType())), data); err != nil {
		m.failed.Add(1)
		m.logger.Debug("mqtt telemetry publish failed", "type", msg.MessageType(), "error", err)
		return
	}
	m.published.Add(1)
}

// HandleCommand applies a {"value":x} or {"color":"#rrggbb"} payload
// received on a parameter command topic.
func (m *Mirror) HandleCommand(topic string, payload []byte) error {
	id, ok := m.topics.ParameterIDFromCommand(topic)
	if !ok {
		m.rejected.Add(1)
		return fmt.Errorf("%w: unexpected topic %q", ErrInvalidCommand, topic)
	}

	var cmd commandPayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		m.rejected.Add(1)
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if cmd.Value == nil && cmd.Color == "" {
		m.rejected.Add(1)
		return ErrInvalidCommand
	}

	if cmd.Color != "" {
		if _, err := parameter.ParseHex(cmd.Color); err != nil {
			m.rejected.Add(1)
			return err
		}
	}

	if cmd.Value != nil {
		if _, ok := m.router.SetValue(id, *cmd.Value); !ok {
			m.rejected.Add(1)
			return fmt.Errorf("%w: %s", parameter.ErrParameterNotFound, id)
		}
	}
	if cmd.Color != "" {
		if _, ok := m.router.SetColor(id, cmd.Color); !ok {
			m.rejected.Add(1)
			return fmt.Errorf("%w: %s", parameter.ErrParameterNotFound, id)
		}
	}

	m.applied.Add(1)
	return nil
}

// Stats returns mirror counters.
func (m *Mirror) Stats() MirrorStats {
	return MirrorStats{
		Published:        m.published.Load(),
		PublishFailed:    m.failed.Load(),
		CommandsApplied:  m.applied.Load(),
		CommandsRejected: m.rejected.Load(),
	}
}
