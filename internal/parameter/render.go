package parameter

import (
	"fmt"
	"math"
)

var (
	ratioLabels = []string{"1:1", "2:1", "4:1", "8:1", "16:1", "∞:1"}
	kneeLabels  = []string{"Hard", "Soft", "Medium"}
)

// RenderText returns the display string for value under the rendering rule
// associated with name. Unknown names render as a percentage.
func RenderText(name string, value float64) string {
	v := Clamp(value)

	switch name {
	case "Attack":
		return fmt.Sprintf("%dms", roundHalfUp(v*100))
	case "Release":
		return fmt.Sprintf("%dms", roundHalfUp(v*200))
	case "Threshold":
		return fmt.Sprintf("%ddB", roundHalfUp((v-0.5)*48))
	case "Ratio":
		return labelAt(ratioLabels, v)
	case "Knee":
		return labelAt(kneeLabels, v)
	default:
		// Input Gain, Drive, Tone, Output Level, Mix and anything else.
		return fmt.Sprintf("%d%%", roundHalfUp(v*100))
	}
}

func labelAt(labels []string, v float64) string {
	idx := int(math.Floor(v * float64(len(labels)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(labels) {
		idx = len(labels) - 1
	}
	return labels[idx]
}

// roundHalfUp rounds towards +Inf on .5, so -12.5 becomes -12 and 12.5
// becomes 13.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
