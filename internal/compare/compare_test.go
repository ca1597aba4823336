package compare

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSliderStartsCentred(t *testing.T) {
	assert.Equal(t, 50.0, NewSlider().Position())
}

func TestMoveClampsIntoFrame(t *testing.T) {
	tests := []struct {
		name     string
		pointerX float64
		want     float64
	}{
		{"left of frame", 10, 0},
		{"at left edge", 100, 0},
		{"quarter", 150, 25},
		{"middle", 200, 50},
		{"right edge", 300, 100},
		{"right of frame", 5000, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSlider()
			assert.True(t, s.Move(tt.pointerX, 100, 200))
			assert.InDelta(t, tt.want, s.Position(), 1e-9)
		})
	}
}

func TestMoveIsStateless(t *testing.T) {
	a, b := NewSlider(), NewSlider()
	a.Move(10, 0, 100)
	a.Move(90, 0, 100)
	a.Move(30, 0, 100)
	b.Move(30, 0, 100)
	assert.Equal(t, b.Position(), a.Position())
}

func TestMoveIgnoresDegenerateFrame(t *testing.T) {
	s := NewSlider()
	s.Move(75, 0, 100)

	assert.False(t, s.Move(10, 0, 0))
	assert.False(t, s.Move(10, 0, -5))
	assert.False(t, s.Move(math.NaN(), 0, 100))
	assert.False(t, s.Move(math.Inf(1), math.Inf(1), 100))
	assert.False(t, s.Move(10, math.Inf(-1), 100))
	assert.False(t, s.Move(10, 0, math.Inf(1)))
	assert.Equal(t, 75.0, s.Position())
}

func TestBuildView(t *testing.T) {
	s := NewSlider()
	s.Move(30, 0, 100)

	v := BuildView("data:image/jpeg;base64,AA==", "data:image/png;base64,AQ==", "sepia(100%)", s)
	assert.True(t, v.Ready)
	assert.Equal(t, 30.0, v.Position)
	assert.Equal(t, "30%", v.HandleLeft)
	assert.Equal(t, "none", v.Left.Filter)
	assert.Equal(t, "inset(0 70% 0 0)", v.Left.ClipPath)
	assert.Equal(t, "sepia(100%)", v.Right.Filter)
	assert.Equal(t, "inset(0 0 0 30%)", v.Right.ClipPath)

	empty := BuildView("data:image/jpeg;base64,AA==", "", "", NewSlider())
	assert.False(t, empty.Ready)
	assert.Equal(t, "none", empty.Right.Filter)
}
