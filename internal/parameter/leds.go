package parameter

import "math"

// InactiveLED is the colour of ring LEDs that are not lit by the value.
var InactiveLED = RGB{R: 51, G: 51, B: 51}

// ActiveLEDIndex returns the index of the lit LED for value on a ring of
// ledCount LEDs. Returns -1 for an empty ring.
func ActiveLEDIndex(value float64, ledCount int) int {
	if ledCount <= 0 {
		return -1
	}
	return int(math.Floor(Clamp(value) * float64(ledCount-1)))
}

// LEDFrame renders a single-LED ring frame: the active LED takes the
// parameter colour and the rest are InactiveLED.
func LEDFrame(p Parameter) []RGB {
	frame := make([]RGB, p.LEDCount)
	active := ActiveLEDIndex(p.Value, p.LEDCount)
	for i := range frame {
		if i == active {
			frame[i] = p.RGB
		} else {
			frame[i] = InactiveLED
		}
	}
	return frame
}

// LEDRing returns the ring frame for the parameter with the given ID.
func (r *Registry) LEDRing(id string) ([]RGB, bool) {
	p, ok := r.Find(id)
	if !ok {
		return nil, false
	}
	return LEDFrame(p), true
}
