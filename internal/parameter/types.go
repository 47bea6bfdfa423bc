package parameter

// Structural defaults applied to parameters that do not specify them.
const (
	DefaultMin          = 0.0
	DefaultMax          = 1.0
	DefaultStep         = 0.01
	DefaultFormat       = "percentage"
	DefaultLEDCount     = 28
	DefaultDefaultValue = 0.5
)

// RGB is a colour as 8-bit channels, encoded on the wire as {r,g,b}.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Parameter is a named, bounded control.
//
// Value is always within [0,1]. Text is derived from Value and Name unless it
// was supplied explicitly. Color and RGB describe the same colour.
type Parameter struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Text         string  `json:"text"`
	Color        string  `json:"color"`
	RGB          RGB     `json:"rgbColor"`
	DefaultValue float64 `json:"defaultValue"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Step         float64 `json:"step"`
	Format       string  `json:"format"`
	LEDCount     int     `json:"ledCount"`
}

// Update is a partial parameter record. Nil fields are left untouched when
// merged into an existing parameter and take defaults on a new one.
type Update struct {
	ID           string
	Name         *string
	Value        *float64
	Text         *string
	Color        *string
	RGB          *RGB
	DefaultValue *float64
	Min          *float64
	Max          *float64
	Step         *float64
	Format       *string
	LEDCount     *int
}

// String returns a pointer to s, for building Update literals.
func String(s string) *string { return &s }

// Float returns a pointer to f, for building Update literals.
func Float(f float64) *float64 { return &f }

// Int returns a pointer to i, for building Update literals.
func Int(i int) *int { return &i }

// FromParameter builds a full Update from p. Text is omitted so that it is
// re-derived on apply.
func FromParameter(p Parameter) Update {
	rgb := p.RGB
	return Update{
		ID:           p.ID,
		Name:         String(p.Name),
		Value:        Float(p.Value),
		Color:        String(p.Color),
		RGB:          &rgb,
		DefaultValue: Float(p.DefaultValue),
		Min:          Float(p.Min),
		Max:          Float(p.Max),
		Step:         Float(p.Step),
		Format:       String(p.Format),
		LEDCount:     Int(p.LEDCount),
	}
}

// Clamp limits v to the closed interval [0,1].
func Clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	case v != v: // NaN
		return 0
	default:
		return v
	}
}
