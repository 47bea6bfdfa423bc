package parameter

// MockParameters returns the reference parameter set used by a headless UI
// peer before it has synced with a bridge.
func MockParameters() []Update {
	mock := []struct {
		id, name   string
		value, def float64
	}{
		{"input-gain", "Input Gain", 0.75, 0.5},
		{"drive", "Drive", 0.3, 0.0},
		{"tone", "Tone", 0.6, 0.5},
		{"output-level", "Output Level", 0.8, 0.7},
		{"mix", "Mix", 0.5, 0.5},
		{"attack", "Attack", 0.2, 0.1},
		{"release", "Release", 0.4, 0.3},
		{"threshold", "Threshold", 0.6, 0.5},
	}

	out := make([]Update, len(mock))
	for i, m := range mock {
		out[i] = Update{
			ID:           m.id,
			Name:         String(m.name),
			Value:        Float(m.value),
			DefaultValue: Float(m.def),
		}
	}
	return out
}

// LoadMock fills the registry with MockParameters.
func (r *Registry) LoadMock() {
	r.ReplaceAll(MockParameters(), "")
}
