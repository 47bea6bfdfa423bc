package protocol

import (
	"bytes"
	"math"
	"strconv"
	"time"
)

// Type identifies a message kind.
type Type string

// Network peer message types.
const (
	TypeRequestParameterState Type = "request_parameter_state"
	TypeStructureSync         Type = "parameter_structure_sync"
	TypeValueSync             Type = "parameter_value_sync"
	TypeColorSync             Type = "parameter_color_sync"
	TypeBridgeStatus          Type = "bridge_status"
	TypeBridgeCommand         Type = "bridge_command"
)

// Device message types.
const (
	TypeLEDUpdate     Type = "led_update"
	TypeSystemCommand Type = "system_command"
	TypeHeartbeat     Type = "heartbeat"
	TypeDeviceDebug   Type = "esp32_debug"
	TypeEncoder       Type = "encoder"
	TypeStartup       Type = "startup"
	TypeStatus        Type = "status"
	TypeError         Type = "error"
	TypeI2CScan       Type = "i2c_scan"
)

// Bridge commands.
const (
	CommandGetStatus    = "get_status"
	CommandRestartESP32 = "restart_esp32_connection"
)

// PatternRingFill is the only LED pattern the device understands.
const PatternRingFill = "ring_fill"

// IsSyncClass reports whether t is one of the types a relay forwards to
// every other peer.
func IsSyncClass(t Type) bool {
	switch t {
	case TypeRequestParameterState, TypeStructureSync, TypeValueSync, TypeColorSync:
		return true
	}
	return false
}

// Millis is a Unix timestamp in milliseconds. It decodes from integer or
// fractional JSON numbers and always encodes as an integer.
type Millis int64

// Now returns the current time as Millis.
func Now() Millis {
	return Millis(time.Now().UnixMilli())
}

// Time converts m to a time.Time.
func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m))
}

// UnmarshalJSON accepts integers, floats and null.
func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*m = 0
		return nil
	}
	if n, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*m = Millis(n)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*m = Millis(math.Round(f))
	return nil
}

// Message is implemented by every wire message.
type Message interface {
	MessageType() Type
}
