package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Encode returns the JSON wire form of m. Messages that were decoded with
// their raw bytes encode as those bytes.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", m.MessageType(), err)
	}
	return data, nil
}

// Decode parses a JSON envelope into its concrete message type. Unrecognised
// types decode to Unknown.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	rawCopy := append(json.RawMessage(nil), data...)

	switch head.Type {
	case TypeRequestParameterState:
		return decodeMessage[RequestParameterState](data)
	case TypeStructureSync:
		return decodeMessage[StructureSync](data)
	case TypeValueSync:
		return decodeMessage[ValueSync](data)
	case TypeColorSync:
		return decodeMessage[ColorSync](data)
	case TypeBridgeStatus:
		return decodeMessage[BridgeStatus](data)
	case TypeBridgeCommand:
		return decodeMessage[BridgeCommand](data)
	case TypeLEDUpdate:
		return decodeMessage[LEDUpdate](data)
	case TypeDeviceDebug:
		return decodeMessage[DeviceDebug](data)
	case TypeSystemCommand:
		m, err := decodeAs[SystemCommand](data)
		if err != nil {
			return nil, err
		}
		m.Raw = rawCopy
		return m, nil
	case TypeHeartbeat:
		m, err := decodeAs[Heartbeat](data)
		if err != nil {
			return nil, err
		}
		m.Raw = rawCopy
		return m, nil
	case TypeEncoder:
		m, err := decodeAs[EncoderChange](data)
		if err != nil {
			return nil, err
		}
		m.Raw = rawCopy
		return m, nil
	case TypeStartup, TypeStatus, TypeError, TypeI2CScan:
		return Telemetry{Type: head.Type, Raw: rawCopy}, nil
	default:
		return Unknown{Type: head.Type, Raw: rawCopy}, nil
	}
}

func decodeMessage[T Message](data []byte) (Message, error) {
	m, err := decodeAs[T](data)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func decodeAs[T any](data []byte) (T, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return m, nil
}

// DecodeDeviceLine decodes one line of serial output. Lines that are not a
// valid envelope are wrapped in DeviceDebug so no device output is lost.
// Blank lines return false.
func DecodeDeviceLine(line string) (Message, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}
	m, err := Decode([]byte(line))
	if err != nil {
		return DeviceDebug{Timestamp: Now(), Message: line}, true
	}
	return m, true
}

// The MarshalJSON methods below add the "type" field to each message.
// Each uses a local alias type so json.Marshal does not recurse.

func (m RequestParameterState) MarshalJSON() ([]byte, error) {
	type alias RequestParameterState
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{m.MessageType(), alias(m)})
}

func (m StructureSync) MarshalJSON() ([]byte, error) {
	type alias StructureSync
	if m.Parameters == nil {
		m.Parameters = []ParameterState{}
	}
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{m.MessageType(), alias(m)})
}

func (m ValueSync) MarshalJSON() ([]byte, error) {
	type alias ValueSync
	if m.Updates == nil {
		m.Updates = []ValueUpdate{}
	}
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{m.MessageType(), alias(m)})
}

func (m ColorSync) MarshalJSON() ([]byte, error) {
	type alias ColorSync
	if m.Updates == nil {
		m.Updates = []ColorUpdate{}
	}
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{m.MessageType(), alias(m)})
}

func (m BridgeStatus) MarshalJSON() ([]byte, error) {
	type alias BridgeStatus
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{m.MessageType(), alias(m)})
}

func (m BridgeCommand) MarshalJSON() ([]byte, error) {
	type alias BridgeCommand
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{m.MessageType(), alias(m)})
}

func (m LEDUpdate) MarshalJSON() ([]byte, error) {
	type alias LEDUpdate
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{m.MessageType(), alias(m)})
}

func (m SystemCommand) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	type alias SystemCommand
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{m.MessageType(), alias(m)})
}

func (m Heartbeat) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	type alias Heartbeat
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{m.MessageType(), alias(m)})
}

func (m DeviceDebug) MarshalJSON() ([]byte, error) {
	type alias DeviceDebug
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{m.MessageType(), alias(m)})
}

func (m EncoderChange) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	type alias EncoderChange
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{m.MessageType(), alias(m)})
}

func (m Telemetry) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	return json.Marshal(struct {
		Type Type `json:"type"`
	}{m.Type})
}

func (m Unknown) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	return json.Marshal(struct {
		Type Type `json:"type"`
	}{m.Type})
}
