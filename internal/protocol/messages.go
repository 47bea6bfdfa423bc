package protocol

import (
	"encoding/json"

	"github.com/nerrad567/paramsync/internal/parameter"
)

// RGB is the wire form of a colour, {r,g,b} with 0-255 channels.
type RGB = parameter.RGB

// RequestParameterState asks the receiver for a full structure sync.
type RequestParameterState struct {
	Timestamp Millis `json:"timestamp"`
}

// ParameterState is one entry of a structure sync. Pointer fields are
// optional on decode.
type ParameterState struct {
	ID           string   `json:"id"`
	Name         *string  `json:"name,omitempty"`
	Value        *float64 `json:"value,omitempty"`
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	Step         *float64 `json:"step,omitempty"`
	Format       *string  `json:"format,omitempty"`
	DefaultValue *float64 `json:"defaultValue,omitempty"`
	Color        *string  `json:"color,omitempty"`
	RGB          *RGB     `json:"rgbColor,omitempty"`
	LEDCount     *int     `json:"ledCount,omitempty"`
}

// StructureSync carries the full parameter set and its structure hash.
type StructureSync struct {
	Timestamp     Millis           `json:"timestamp"`
	StructureHash string           `json:"structure_hash"`
	Parameters    []ParameterState `json:"parameters"`
}

// ValueUpdate is one entry of a value sync.
type ValueUpdate struct {
	ID    string   `json:"id"`
	Value *float64 `json:"value,omitempty"`
	Text  *string  `json:"text,omitempty"`
	RGB   *RGB     `json:"rgbColor,omitempty"`
}

// ValueSync carries a batch of value changes.
type ValueSync struct {
	Timestamp Millis        `json:"timestamp"`
	Updates   []ValueUpdate `json:"updates"`
}

// ColorUpdate is one entry of a colour sync.
type ColorUpdate struct {
	ID    string  `json:"id"`
	Color *string `json:"color,omitempty"`
	RGB   *RGB    `json:"rgbColor,omitempty"`
}

// ColorSync carries a batch of colour changes.
type ColorSync struct {
	Timestamp Millis        `json:"timestamp"`
	Updates   []ColorUpdate `json:"updates"`
}

// BridgeStats is the counter snapshot reported in a bridge status.
type BridgeStats struct {
	ESP32MessagesReceived     uint64  `json:"esp32_messages_received"`
	ESP32MessagesSent         uint64  `json:"esp32_messages_sent"`
	ESP32MessagesDropped      uint64  `json:"esp32_messages_dropped"`
	WebSocketMessagesReceived uint64  `json:"websocket_messages_received"`
	WebSocketMessagesSent     uint64  `json:"websocket_messages_sent"`
	MalformedMessages         uint64  `json:"malformed_messages"`
	ESP32ConnectionAttempts   uint64  `json:"esp32_connection_attempts"`
	WebSocketConnections      uint64  `json:"websocket_connections"`
	ConnectedPeers            int     `json:"connected_peers"`
	LastESP32Heartbeat        *Millis `json:"last_esp32_heartbeat"`
	BridgeStartTime           Millis  `json:"bridge_start_time"`
}

// BridgeStatus is sent by the bridge to peers on connect and on request.
type BridgeStatus struct {
	Timestamp      Millis      `json:"timestamp"`
	ESP32Connected bool        `json:"esp32_connected"`
	Stats          BridgeStats `json:"stats"`
	ParameterCount *int        `json:"parameter_count,omitempty"`
	StructureHash  string      `json:"structure_hash,omitempty"`
}

// BridgeCommand is sent by a peer to control the bridge.
type BridgeCommand struct {
	Timestamp Millis `json:"timestamp"`
	Command   string `json:"command"`
}

// LEDUpdate tells the device to redraw one encoder's LED ring.
type LEDUpdate struct {
	Timestamp Millis  `json:"timestamp"`
	EncoderID int     `json:"encoder_id"`
	Color     RGB     `json:"color"`
	Pattern   string  `json:"pattern"`
	Value     float64 `json:"value"`
}

// SystemCommand is passed through to the device unchanged.
type SystemCommand struct {
	Timestamp Millis          `json:"timestamp"`
	Command   string          `json:"command,omitempty"`
	Parameter string          `json:"parameter,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// Heartbeat is the device's periodic liveness message.
type Heartbeat struct {
	Timestamp Millis          `json:"timestamp"`
	DeviceID  string          `json:"device_id,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// DeviceDebug wraps a line of device output that was not JSON.
type DeviceDebug struct {
	Timestamp Millis `json:"timestamp"`
	Message   string `json:"message"`
}

// EncoderChange reports that a physical encoder was turned.
type EncoderChange struct {
	Timestamp Millis          `json:"timestamp"`
	EncoderID int             `json:"encoder_id"`
	Value     float64         `json:"value"`
	Direction int             `json:"direction,omitempty"`
	DeviceID  string          `json:"device_id,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// Telemetry is any other device message. Only its type is interpreted.
type Telemetry struct {
	Type Type
	Raw  json.RawMessage
}

// Unknown is a message whose type is not recognised.
type Unknown struct {
	Type Type
	Raw  json.RawMessage
}

func (RequestParameterState) MessageType() Type { return TypeRequestParameterState }
func (StructureSync) MessageType() Type         { return TypeStructureSync }
func (ValueSync) MessageType() Type             { return TypeValueSync }
func (ColorSync) MessageType() Type             { return TypeColorSync }
func (BridgeStatus) MessageType() Type          { return TypeBridgeStatus }
func (BridgeCommand) MessageType() Type         { return TypeBridgeCommand }
func (LEDUpdate) MessageType() Type             { return TypeLEDUpdate }
func (SystemCommand) MessageType() Type         { return TypeSystemCommand }
func (Heartbeat) MessageType() Type             { return TypeHeartbeat }
func (DeviceDebug) MessageType() Type           { return TypeDeviceDebug }
func (EncoderChange) MessageType() Type         { return TypeEncoder }
func (m Telemetry) MessageType() Type           { return m.Type }
func (m Unknown) MessageType() Type             { return m.Type }

// StateFromParameter builds a structure sync entry from a registry parameter.
func StateFromParameter(p parameter.Parameter) ParameterState {
	rgb := p.RGB
	return ParameterState{
		ID:           p.ID,
		Name:         parameter.String(p.Name),
		Value:        parameter.Float(p.Value),
		Min:          parameter.Float(p.Min),
		Max:          parameter.Float(p.Max),
		Step:         parameter.Float(p.Step),
		Format:       parameter.String(p.Format),
		DefaultValue: parameter.Float(p.DefaultValue),
		Color:        parameter.String(p.Color),
		RGB:          &rgb,
		LEDCount:     parameter.Int(p.LEDCount),
	}
}

// Update converts s into a registry update.
func (s ParameterState) Update() parameter.Update {
	return parameter.Update{
		ID:           s.ID,
		Name:         s.Name,
		Value:        s.Value,
		Min:          s.Min,
		Max:          s.Max,
		Step:         s.Step,
		Format:       s.Format,
		DefaultValue: s.DefaultValue,
		Color:        s.Color,
		RGB:          s.RGB,
		LEDCount:     s.LEDCount,
	}
}

// NewStructureSync builds a structure sync for params.
func NewStructureSync(hash string, params []parameter.Parameter) StructureSync {
	states := make([]ParameterState, len(params))
	for i, p := range params {
		states[i] = StateFromParameter(p)
	}
	return StructureSync{Timestamp: Now(), StructureHash: hash, Parameters: states}
}

// NewValueSync builds a value sync carrying value, text and colour for p.
func NewValueSync(params ...parameter.Parameter) ValueSync {
	updates := make([]ValueUpdate, len(params))
	for i, p := range params {
		rgb := p.RGB
		updates[i] = ValueUpdate{
			ID:    p.ID,
			Value: parameter.Float(p.Value),
			Text:  parameter.String(p.Text),
			RGB:   &rgb,
		}
	}
	return ValueSync{Timestamp: Now(), Updates: updates}
}

// NewColorSync builds a colour sync carrying both colour forms for p.
func NewColorSync(params ...parameter.Parameter) ColorSync {
	updates := make([]ColorUpdate, len(params))
	for i, p := range params {
		rgb := p.RGB
		updates[i] = ColorUpdate{ID: p.ID, Color: parameter.String(p.Color), RGB: &rgb}
	}
	return ColorSync{Timestamp: Now(), Updates: updates}
}

// NewLEDUpdate builds a ring-fill LED command for p on the given encoder.
func NewLEDUpdate(encoderID int, p parameter.Parameter) LEDUpdate {
	return LEDUpdate{
		Timestamp: Now(),
		EncoderID: encoderID,
		Color:     p.RGB,
		Pattern:   PatternRingFill,
		Value:     p.Value,
	}
}
