package parameter

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
)

// Registry holds the authoritative parameter set for one process.
//
// Parameters keep their insertion order, which is also the order used for
// structure syncs and for the fingerprint.
//
// All public methods are thread-safe.
type Registry struct {
	mu            sync.RWMutex
	params        []*Parameter
	index         map[string]int // ID -> position in params
	structureHash string         // last applied structure_hash
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Find returns a copy of the parameter with the given ID.
func (r *Registry) Find(id string) (Parameter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return Parameter{}, false
	}
	return *r.params[i], true
}

// List returns copies of all parameters in registry order.
func (r *Registry) List() []Parameter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Parameter, len(r.params))
	for i, p := range r.params {
		out[i] = *p
	}
	return out
}

// Len returns the number of parameters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.params)
}

// Upsert merges u into the existing parameter with the same ID, or creates
// it. Returns ErrMissingID when u.ID is empty.
func (r *Registry) Upsert(u Update) (Parameter, error) {
	if u.ID == "" {
		return Parameter{}, ErrMissingID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[u.ID]; ok {
		merge(r.params[i], u, false)
		return *r.params[i], nil
	}

	p := &Parameter{ID: u.ID}
	merge(p, u, true)
	r.index[p.ID] = len(r.params)
	r.params = append(r.params, p)
	return *p, nil
}

// SetValue clamps v into [0,1], stores it and re-renders the text.
// Returns false if the ID is unknown.
func (r *Registry) SetValue(id string, v float64) (Parameter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return Parameter{}, false
	}
	p := r.params[i]
	p.Value = Clamp(v)
	p.Text = RenderText(p.Name, p.Value)
	return *p, true
}

// SetColorHex stores a hex colour and derives the RGB form.
// Returns false if the ID is unknown.
func (r *Registry) SetColorHex(id, hex string) (Parameter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return Parameter{}, false
	}
	p := r.params[i]
	p.Color = hex
	p.RGB = HexToRGB(hex)
	return *p, true
}

// SetColorRGB stores an RGB colour and derives the hex form.
// Returns false if the ID is unknown.
func (r *Registry) SetColorRGB(id string, c RGB) (Parameter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return Parameter{}, false
	}
	p := r.params[i]
	p.RGB = c
	p.Color = RGBToHex(c)
	return *p, true
}

// ReplaceAll swaps the whole parameter set for the given list and records
// hash as the applied structure hash. An empty list is ignored and false is
// returned. Updates without an ID are skipped.
func (r *Registry) ReplaceAll(updates []Update, hash string) bool {
	if len(updates) == 0 {
		return false
	}

	params := make([]*Parameter, 0, len(updates))
	index := make(map[string]int, len(updates))
	for _, u := range updates {
		if u.ID == "" {
			continue
		}
		if i, ok := index[u.ID]; ok {
			merge(params[i], u, false)
			continue
		}
		p := &Parameter{ID: u.ID}
		merge(p, u, true)
		index[p.ID] = len(params)
		params = append(params, p)
	}
	if len(params) == 0 {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.params = params
	r.index = index
	if hash == "" {
		hash = fingerprint(params)
	}
	r.structureHash = hash
	return true
}

// Fingerprint summarises the structural fields of every parameter. It does
// not change when values or colours change.
func (r *Registry) Fingerprint() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fingerprint(r.params)
}

// StructureHash returns the hash recorded by the last ReplaceAll.
func (r *Registry) StructureHash() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.structureHash
}

// MatchesStructure reports whether hash describes the registry's current
// structure, either as the last applied hash or as the local fingerprint.
func (r *Registry) MatchesStructure(hash string) bool {
	if hash == "" {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if hash == r.structureHash {
		return true
	}
	return len(r.params) > 0 && hash == fingerprint(r.params)
}

// structural is the fingerprinted subset of a parameter. Fields are declared
// in alphabetical order so the JSON keys come out sorted.
type structural struct {
	Format string  `json:"format"`
	ID     string  `json:"id"`
	Max    float64 `json:"max"`
	Min    float64 `json:"min"`
	Name   string  `json:"name"`
	Step   float64 `json:"step"`
}

func fingerprint(params []*Parameter) string {
	s := make([]structural, len(params))
	for i, p := range params {
		s[i] = structural{
			Format: p.Format,
			ID:     p.ID,
			Max:    p.Max,
			Min:    p.Min,
			Name:   p.Name,
			Step:   p.Step,
		}
	}
	data, err := json.Marshal(s)
	if err != nil {
		// Only non-finite floats can fail here.
		data = []byte(fmt.Sprint(s))
	}
	return base64.StdEncoding.EncodeToString(data)
}

// merge applies u to p field by field. Derived fields (text and the
// counterpart colour representation) are recomputed unless supplied.
func merge(p *Parameter, u Update, isNew bool) {
	if isNew {
		p.Name = p.ID
		p.Min = DefaultMin
		p.Max = DefaultMax
		p.Step = DefaultStep
		p.Format = DefaultFormat
		p.LEDCount = DefaultLEDCount
		p.DefaultValue = DefaultDefaultValue
	}

	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Min != nil {
		p.Min = *u.Min
	}
	if u.Max != nil {
		p.Max = *u.Max
	}
	if u.Step != nil {
		p.Step = *u.Step
	}
	if u.Format != nil {
		p.Format = *u.Format
	}
	if u.LEDCount != nil && *u.LEDCount > 0 {
		p.LEDCount = *u.LEDCount
	}
	if u.DefaultValue != nil {
		p.DefaultValue = Clamp(*u.DefaultValue)
	}

	switch {
	case u.Value != nil:
		p.Value = Clamp(*u.Value)
	case isNew:
		p.Value = p.DefaultValue
	}

	if u.Text != nil {
		p.Text = *u.Text
	} else {
		p.Text = RenderText(p.Name, p.Value)
	}

	switch {
	case u.Color != nil && u.RGB != nil:
		p.Color = *u.Color
		p.RGB = *u.RGB
	case u.Color != nil:
		p.Color = *u.Color
		p.RGB = HexToRGB(*u.Color)
	case u.RGB != nil:
		p.RGB = *u.RGB
		p.Color = RGBToHex(*u.RGB)
	case isNew:
		p.Color = ColorPreset(p.Name)
		p.RGB = HexToRGB(p.Color)
	}
}
