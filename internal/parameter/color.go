package parameter

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultColor is used for parameters whose name has no preset.
const DefaultColor = "#4CAF50"

var colorPresets = map[string]string{
	"Input Gain":   "#4CAF50",
	"Drive":        "#FF5722",
	"Tone":         "#2196F3",
	"Output Level": "#9C27B0",
	"Mix":          "#FF9800",
	"Attack":       "#00BCD4",
	"Release":      "#3F51B5",
	"Threshold":    "#E91E63",
	"Ratio":        "#795548",
	"Knee":         "#607D8B",
}

// ColorPreset returns the preset hex colour for a parameter name.
func ColorPreset(name string) string {
	if c, ok := colorPresets[name]; ok {
		return c
	}
	return DefaultColor
}

// ParseHex parses "#RRGGBB" or "RRGGBB".
func ParseHex(hex string) (RGB, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}
	return RGB{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

// HexToRGB converts a hex colour to RGB. Unparseable input yields black.
func HexToRGB(hex string) RGB {
	rgb, err := ParseHex(hex)
	if err != nil {
		return RGB{}
	}
	return rgb
}

// RGBToHex converts an RGB colour to lowercase "#rrggbb".
func RGBToHex(c RGB) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
