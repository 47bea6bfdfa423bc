package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/paramsync/internal/parameter"
)

func TestDecode_Malformed(t *testing.T) {
	for _, in := range []string{``, `not json`, `{}`, `{"type":""}`, `[1,2]`, `null`, `{"type":"parameter_value_sync","updates":"nope"}`} {
		_, err := Decode([]byte(in))
		assert.ErrorIs(t, err, ErrMalformedMessage, "input %q", in)
	}
}

func TestDecode_ValueSync(t *testing.T) {
	m, err := Decode([]byte(`{"type":"parameter_value_sync","timestamp":1700000000123.7,
		"updates":[{"id":"drive","value":0.55,"rgbColor":{"r":1,"g":2,"b":3}},{"id":"tone","value":0}]}`))
	require.NoError(t, err)

	vs, ok := m.(ValueSync)
	require.True(t, ok)
	assert.Equal(t, Millis(1700000000124), vs.Timestamp)
	require.Len(t, vs.Updates, 2)
	assert.Equal(t, 0.55, *vs.Updates[0].Value)
	assert.Equal(t, RGB{R: 1, G: 2, B: 3}, *vs.Updates[0].RGB)
	require.NotNil(t, vs.Updates[1].Value)
	assert.Equal(t, 0.0, *vs.Updates[1].Value)
	assert.Nil(t, vs.Updates[1].RGB)
}

func TestDecode_UnknownAndTelemetry(t *testing.T) {
	m, err := Decode([]byte(`{"type":"shiny_new_thing","x":1}`))
	require.NoError(t, err)
	u, ok := m.(Unknown)
	require.True(t, ok)
	assert.Equal(t, Type("shiny_new_thing"), u.MessageType())

	m, err = Decode([]byte(`{"type":"startup","device_id":"esp32-1"}`))
	require.NoError(t, err)
	assert.IsType(t, Telemetry{}, m)
	assert.Equal(t, TypeStartup, m.MessageType())
}

func TestEncode_IncludesTypeAndTimestamp(t *testing.T) {
	p := parameter.Parameter{ID: "attack", Value: 0.2, RGB: parameter.RGB{R: 0, G: 188, B: 212}}
	data, err := Encode(NewLEDUpdate(5, p))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "led_update", got["type"])
	assert.Equal(t, float64(5), got["encoder_id"])
	assert.Equal(t, "ring_fill", got["pattern"])
	assert.Equal(t, map[string]any{"r": float64(0), "g": float64(188), "b": float64(212)}, got["color"])
	assert.Contains(t, got, "timestamp")
}

func TestEncode_EmptyListsAreArrays(t *testing.T) {
	data, err := Encode(StructureSync{StructureHash: "h"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"parameter_structure_sync","timestamp":0,"structure_hash":"h","parameters":[]}`, string(data))
}

func TestEncode_PassthroughKeepsUnknownFields(t *testing.T) {
	in := `{"type":"system_command","command":"reboot","delay_ms":250}`
	m, err := Decode([]byte(in))
	require.NoError(t, err)

	out, err := Encode(m)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestStructureSync_RoundTripsIntoRegistry(t *testing.T) {
	src := parameter.NewRegistry()
	src.LoadMock()
	src.SetColorHex("drive", "#010203")

	data, err := Encode(NewStructureSync(src.Fingerprint(), src.List()))
	require.NoError(t, err)

	m, err := Decode(data)
	require.NoError(t, err)
	ss := m.(StructureSync)

	updates := make([]parameter.Update, len(ss.Parameters))
	for i, s := range ss.Parameters {
		updates[i] = s.Update()
	}
	dst := parameter.NewRegistry()
	require.True(t, dst.ReplaceAll(updates, ss.StructureHash))

	assert.Equal(t, src.List(), dst.List())
	assert.Equal(t, src.Fingerprint(), dst.Fingerprint())
}

func TestDecodeDeviceLine(t *testing.T) {
	m, ok := DecodeDeviceLine("  \r")
	assert.False(t, ok)
	assert.Nil(t, m)

	m, ok = DecodeDeviceLine("I2C scan complete\r")
	require.True(t, ok)
	dbg, isDebug := m.(DeviceDebug)
	require.True(t, isDebug)
	assert.Equal(t, "I2C scan complete", dbg.Message)
	assert.NotZero(t, dbg.Timestamp)

	m, ok = DecodeDeviceLine(`{"type":"heartbeat","timestamp":42,"device_id":"esp32"}`)
	require.True(t, ok)
	hb, isHB := m.(Heartbeat)
	require.True(t, isHB)
	assert.Equal(t, Millis(42), hb.Timestamp)
	assert.Equal(t, "esp32", hb.DeviceID)

	m, ok = DecodeDeviceLine(`{"type":"encoder","encoder_id":3,"value":0.9,"direction":1}`)
	require.True(t, ok)
	enc := m.(EncoderChange)
	assert.Equal(t, 3, enc.EncoderID)
	assert.Equal(t, 0.9, enc.Value)
}

func TestIsSyncClass(t *testing.T) {
	assert.True(t, IsSyncClass(TypeStructureSync))
	assert.True(t, IsSyncClass(TypeValueSync))
	assert.True(t, IsSyncClass(TypeColorSync))
	assert.True(t, IsSyncClass(TypeRequestParameterState))
	assert.False(t, IsSyncClass(TypeBridgeCommand))
	assert.False(t, IsSyncClass(TypeLEDUpdate))
}
