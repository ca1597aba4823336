// Package compare tracks the before/after split of the comparison view.
package compare

import (
	"fmt"
	"math"
)

// InitialPosition is the split position of a fresh slider.
const InitialPosition = 50.0

// Slider holds the split position as a percentage of the frame width.
// The zero value is not ready for use; call NewSlider.
type Slider struct {
	position float64
}

// NewSlider returns a slider centred in the frame.
func NewSlider() Slider {
	return Slider{position: InitialPosition}
}

// Position returns the split position in [0, 100].
func (s Slider) Position() float64 {
	return s.position
}

// Move recomputes the position from an absolute pointer x coordinate over a
// frame starting at frameLeft. Nothing accumulates between moves. A frame
// with no width leaves the position unchanged and reports false.
func (s *Slider) Move(pointerX, frameLeft, frameWidth float64) bool {
	if frameWidth <= 0 || !finite(frameWidth) || !finite(pointerX) || !finite(frameLeft) {
		return false
	}
	offset := math.Min(math.Max(pointerX-frameLeft, 0), frameWidth)
	s.position = offset * 100 / frameWidth
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Reset centres the slider.
func (s *Slider) Reset() {
	s.position = InitialPosition
}

// Side is one half of the comparison.
type Side struct {
	Image string `json:"image"`
	// Filter is the CSS filter property value applied to Image.
	Filter string `json:"filter"`
	// ClipPath is the CSS clip-path that exposes this side.
	ClipPath string `json:"clipPath"`
}

// View is everything a renderer needs to draw the comparison: the original
// on the left of the split and the filtered working image on the right.
type View struct {
	Position float64 `json:"position"`
	Left     Side    `json:"left"`
	Right    Side    `json:"right"`
	// HandleLeft is the CSS left offset of the drag handle.
	HandleLeft string `json:"handleLeft"`
	// Ready is false until there is a working image to compare against.
	Ready bool `json:"ready"`
}

// BuildView derives the view from the two images, the active filter's CSS
// and the slider.
func BuildView(original, working, filterCSS string, s Slider) View {
	pos := s.Position()
	pct := formatPercent(pos)
	if filterCSS == "" {
		filterCSS = "none"
	}
	return View{
		Position: pos,
		Left: Side{
			Image:    original,
			Filter:   "none",
			ClipPath: fmt.Sprintf("inset(0 %s 0 0)", formatPercent(100-pos)),
		},
		Right: Side{
			Image:    working,
			Filter:   filterCSS,
			ClipPath: fmt.Sprintf("inset(0 0 0 %s)", pct),
		},
		HandleLeft: pct,
		Ready:      original != "" && working != "",
	}
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%g%%", math.Round(v*100)/100)
}
