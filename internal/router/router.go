package router

import (
	"sync/atomic"

	"github.com/nerrad567/paramsync/internal/parameter"
	"github.com/nerrad567/paramsync/internal/protocol"
)

// Device is the device side of the router. *esp32.Transport implements it.
type Device interface {
	Send(msg protocol.Message) error
	EncoderID(parameterID string) int
}

// Logger defines the logging interface used by the router.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// unknownLEDColor draws updates for parameters the registry does not hold.
var unknownLEDColor = parameter.RGB{R: 255, G: 128, B: 0}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Router.
type Options struct {
	// Device receives led_update commands. Nil for processes without a
	// device, such as a relay or a UI client.
	Device Device

	// ParameterForEncoder maps device encoder numbers back to parameter IDs.
	// Nil disables device encoder handling.
	ParameterForEncoder func(encoderID int) (string, bool)

	// Publish sends a message to network peers. Nil disables publishing.
	Publish func(protocol.Message)

	Logger Logger
}

// Stats holds router counters.
type Stats struct {
	StructuresApplied uint64
	StructuresSkipped uint64
	UpdatesApplied    uint64
	UnknownParameters uint64
	LEDUpdatesSent    uint64
	LEDUpdatesFailed  uint64
	Published         uint64
	EventsDropped     uint64
}

// Router applies messages to a registry.
type Router struct {
	reg    *parameter.Registry
	opts   Options
	logger Logger
	events fanout

	structuresApplied atomic.Uint64
	structuresSkipped atomic.Uint64
	updatesApplied    atomic.Uint64
	unknownParams     atomic.Uint64
	ledSent           atomic.Uint64
	ledFailed         atomic.Uint64
	published         atomic.Uint64
}

// New creates a router over reg.
func New(reg *parameter.Registry, opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Router{reg: reg, opts: opts, logger: logger}
}

// Registry returns the registry the router writes to.
func (r *Router) Registry() *parameter.Registry {
	return r.reg
}

// Subscribe returns a channel of registry change events and a function that
// ends the subscription. Events are dropped, not queued, when the channel
// is full.
func (r *Router) Subscribe(buffer int) (<-chan Event, func()) {
	return r.events.subscribe(buffer)
}

// HandlePeer applies a message received from a network peer. reply, if not
// nil, sends a message back to that peer alone.
//
// Changes applied here are never published to peers.
func (r *Router) HandlePeer(msg protocol.Message, reply func(protocol.Message)) {
	switch m := msg.(type) {
	case protocol.StructureSync:
		r.applyStructure(m)
	case protocol.ValueSync:
		r.applyValues(m)
	case protocol.ColorSync:
		r.applyColors(m)
	case protocol.RequestParameterState:
		if r.reg.Len() == 0 {
			r.logger.Debug("state requested but registry is empty")
			return
		}
		if reply != nil {
			reply(r.StructureSync())
		}
	default:
		r.logger.Debug("ignoring peer message", "type", msg.MessageType())
	}
}

func (r *Router) applyStructure(m protocol.StructureSync) {
	if r.reg.MatchesStructure(m.StructureHash) {
		r.structuresSkipped.Add(1)
		r.logger.Debug("structure already current", "structure_hash", m.StructureHash)
		return
	}

	updates := make([]parameter.Update, 0, len(m.Parameters))
	for _, s := range m.Parameters {
		updates = append(updates, s.Update())
	}
	if !r.reg.ReplaceAll(updates, m.StructureHash) {
		r.structuresSkipped.Add(1)
		r.logger.Debug("ignoring empty structure sync")
		return
	}

	r.structuresApplied.Add(1)
	params := r.reg.List()
	r.logger.Info("parameter structure replaced", "count", len(params), "structure_hash", m.StructureHash)

	for _, p := range params {
		r.sendLED(p)
	}
	r.events.emit(Event{Kind: EventStructureReplaced, Source: SourcePeer, Count: len(params)})
}

func (r *Router) applyValues(m protocol.ValueSync) {
	for _, u := range m.Updates {
		if u.ID == "" || (u.Value == nil && u.RGB == nil) {
			continue
		}

		p, ok := r.reg.Find(u.ID)
		if u.Value != nil {
			p, ok = r.reg.SetValue(u.ID, *u.Value)
		}
		if ok && u.RGB != nil {
			p, ok = r.reg.SetColorRGB(u.ID, *u.RGB)
		}
		if !ok {
			r.unknownParams.Add(1)
			r.logger.Debug("value update for unknown parameter", "parameter_id", u.ID)
			r.sendUnknownLED(u)
			continue
		}

		r.updatesApplied.Add(1)
		r.sendLED(p)
		r.events.emit(Event{Kind: EventValueChanged, Source: SourcePeer, Parameter: p})
	}
}

func (r *Router) applyColors(m protocol.ColorSync) {
	for _, u := range m.Updates {
		var (
			p  parameter.Parameter
			ok bool
		)
		switch {
		case u.ID == "":
			continue
		case u.Color != nil:
			p, ok = r.reg.SetColorHex(u.ID, *u.Color)
		case u.RGB != nil:
			p, ok = r.reg.SetColorRGB(u.ID, *u.RGB)
		default:
			continue
		}
		if !ok {
			r.unknownParams.Add(1)
			r.logger.Debug("color update for unknown parameter", "parameter_id", u.ID)
			continue
		}

		r.updatesApplied.Add(1)
		r.sendLED(p)
		r.events.emit(Event{Kind: EventColorChanged, Source: SourcePeer, Parameter: p})
	}
}

// HandleDevice applies a message from the device. Encoder turns update the
// registry and are published to peers.
func (r *Router) HandleDevice(msg protocol.Message) {
	enc, ok := msg.(protocol.EncoderChange)
	if !ok || r.opts.ParameterForEncoder == nil {
		return
	}

	id, ok := r.opts.ParameterForEncoder(enc.EncoderID)
	if !ok {
		r.logger.Debug("encoder has no parameter", "encoder_id", enc.EncoderID)
		return
	}

	p, ok := r.reg.SetValue(id, enc.Value)
	if !ok {
		r.unknownParams.Add(1)
		r.logger.Debug("encoder parameter not in registry", "encoder_id", enc.EncoderID, "parameter_id", id)
		return
	}

	r.updatesApplied.Add(1)
	r.publish(protocol.NewValueSync(p))
	r.events.emit(Event{Kind: EventValueChanged, Source: SourceDevice, Parameter: p})
}

// SetValue is a local edit: it updates the registry, publishes a value sync
// and draws the change on the device.
func (r *Router) SetValue(id string, v float64) (parameter.Parameter, bool) {
	p, ok := r.reg.SetValue(id, v)
	if !ok {
		r.unknownParams.Add(1)
		return p, false
	}

	r.publish(protocol.NewValueSync(p))
	r.sendLED(p)
	r.events.emit(Event{Kind: EventValueChanged, Source: SourceLocal, Parameter: p})
	return p, true
}

// SetColor is a local colour edit.
func (r *Router) SetColor(id, hex string) (parameter.Parameter, bool) {
	p, ok := r.reg.SetColorHex(id, hex)
	if !ok {
		r.unknownParams.Add(1)
		return p, false
	}

	r.publish(protocol.NewColorSync(p))
	r.sendLED(p)
	r.events.emit(Event{Kind: EventColorChanged, Source: SourceLocal, Parameter: p})
	return p, true
}

// StructureSync builds a structure sync for the whole registry.
func (r *Router) StructureSync() protocol.StructureSync {
	hash := r.reg.StructureHash()
	if hash == "" {
		hash = r.reg.Fingerprint()
	}
	return protocol.NewStructureSync(hash, r.reg.List())
}

// PublishStructure sends the full structure to peers.
func (r *Router) PublishStructure() {
	if r.reg.Len() == 0 {
		return
	}
	r.publish(r.StructureSync())
}

// SyncDevice redraws every parameter on the device.
func (r *Router) SyncDevice() {
	for _, p := range r.reg.List() {
		r.sendLED(p)
	}
}

// Stats returns current router counters.
func (r *Router) Stats() Stats {
	return Stats{
		StructuresApplied: r.structuresApplied.Load(),
		StructuresSkipped: r.structuresSkipped.Load(),
		UpdatesApplied:    r.updatesApplied.Load(),
		UnknownParameters: r.unknownParams.Load(),
		LEDUpdatesSent:    r.ledSent.Load(),
		LEDUpdatesFailed:  r.ledFailed.Load(),
		Published:         r.published.Load(),
		EventsDropped:     r.events.droppedCount(),
	}
}

func (r *Router) publish(msg protocol.Message) {
	if r.opts.Publish == nil {
		return
	}
	r.opts.Publish(msg)
	r.published.Add(1)
}

func (r *Router) sendLED(p parameter.Parameter) {
	if r.opts.Device == nil {
		return
	}
	r.deliverLED(p.ID, protocol.NewLEDUpdate(r.opts.Device.EncoderID(p.ID), p))
}

// sendUnknownLED draws a value update the registry could not apply, so the
// device follows peers even before a structure sync has arrived.
func (r *Router) sendUnknownLED(u protocol.ValueUpdate) {
	if r.opts.Device == nil {
		return
	}
	led := protocol.LEDUpdate{
		Timestamp: protocol.Now(),
		EncoderID: r.opts.Device.EncoderID(u.ID),
		Color:     unknownLEDColor,
		Pattern:   protocol.PatternRingFill,
	}
	if u.Value != nil {
		led.Value = parameter.Clamp(*u.Value)
	}
	if u.RGB != nil {
		led.Color = *u.RGB
	}
	r.deliverLED(u.ID, led)
}

func (r *Router) deliverLED(id string, led protocol.LEDUpdate) {
	if err := r.opts.Device.Send(led); err != nil {
		r.ledFailed.Add(1)
		r.logger.Debug("led update not delivered", "parameter_id", id, "encoder_id", led.EncoderID, "error", err)
		return
	}
	r.ledSent.Add(1)
}
