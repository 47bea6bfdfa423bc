package esp32

// encoderIDs maps parameter IDs to the encoder that displays them.
var encoderIDs = map[string]int{
	"input-gain":   0,
	"drive":        1,
	"tone":         2,
	"output-level": 3,
	"mix":          4,
	"attack":       5,
	"release":      6,
	"threshold":    7,
	"ratio":        8,
	"knee":         9,
	"reverb":       10,
	"delay":        11,
	"chorus":       12,
	"eq-low":       13,
	"eq-mid":       14,
	"eq-high":      15,
}

var parameterIDs = func() map[int]string {
	m := make(map[int]string, len(encoderIDs))
	for id, enc := range encoderIDs {
		m[enc] = id
	}
	return m
}()

// EncoderFor returns the encoder number for a parameter ID.
func EncoderFor(parameterID string) (int, bool) {
	enc, ok := encoderIDs[parameterID]
	return enc, ok
}

// ParameterForEncoder returns the parameter ID shown on an encoder.
func ParameterForEncoder(encoderID int) (string, bool) {
	id, ok := parameterIDs[encoderID]
	return id, ok
}
