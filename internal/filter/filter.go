// Package filter implements the named colour filters applied to the working
// image.
//
// A filter is an ordered Chain of primitives. The same chain drives both the
// live preview (Spec.CSS, a CSS filter property value for the display element)
// and the export (Rasterize, which burns the chain into a new PNG). Selecting a
// filter never changes the stored image bytes.
package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fpang/photo-enhance/internal/apperr"
)

// Op names a colour-transform primitive.
type Op string

const (
	OpGrayscale  Op = "grayscale"
	OpSepia      Op = "sepia"
	OpInvert     Op = "invert"
	OpBrightness Op = "brightness"
	OpHueRotate  Op = "hue-rotate"
	OpSaturate   Op = "saturate"
	OpContrast   Op = "contrast"
)

// Primitive is one step of a chain. Amount is a fraction (1 = 100%) for every
// op except OpHueRotate, where it is in degrees.
type Primitive struct {
	Op     Op      `json:"op"`
	Amount float64 `json:"amount"`
}

// CSS renders the primitive as a CSS filter function.
func (p Primitive) CSS() string {
	if p.Op == OpHueRotate {
		return fmt.Sprintf("hue-rotate(%sdeg)", formatNumber(p.Amount))
	}
	return fmt.Sprintf("%s(%s%%)", p.Op, formatNumber(p.Amount*100))
}

func (p Primitive) valid() bool {
	switch p.Op {
	case OpGrayscale, OpSepia, OpInvert, OpBrightness, OpSaturate, OpContrast:
		return p.Amount >= 0
	case OpHueRotate:
		return true
	}
	return false
}

// Chain is applied left to right, clamping after each step.
type Chain []Primitive

// IsIdentity reports whether the chain leaves every pixel unchanged.
func (c Chain) IsIdentity() bool {
	return len(c) == 0
}

// CSS renders the chain as a CSS filter property value.
func (c Chain) CSS() string {
	if c.IsIdentity() {
		return "none"
	}
	fns := make([]string, len(c))
	for i, p := range c {
		fns[i] = p.CSS()
	}
	return strings.Join(fns, " ")
}

// Spec is a named filter from the catalog.
type Spec struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Chain Chain  `json:"chain"`
}

// CSS renders the preview filter for the display element.
func (s Spec) CSS() string {
	return s.Chain.CSS()
}

// IsIdentity reports whether s is the pass-through filter.
func (s Spec) IsIdentity() bool {
	return s.Chain.IsIdentity()
}

// IdentityID is the ID of the pass-through filter.
const IdentityID = "none"

var catalog = []Spec{
	{ID: IdentityID, Name: "None"},
	{ID: "grayscale", Name: "Grayscale", Chain: Chain{{OpGrayscale, 1}}},
	{ID: "sepia", Name: "Sepia", Chain: Chain{{OpSepia, 1}}},
	{ID: "invert", Name: "Invert", Chain: Chain{{OpInvert, 1}}},
	{ID: "vintage", Name: "Vintage", Chain: Chain{{OpSepia, 0.5}, {OpContrast, 1.1}, {OpBrightness, 0.95}, {OpSaturate, 0.85}}},
	{ID: "vivid", Name: "Vivid", Chain: Chain{{OpSaturate, 1.6}, {OpContrast, 1.1}}},
	{ID: "cool", Name: "Cool", Chain: Chain{{OpHueRotate, -15}, {OpSaturate, 1.1}, {OpBrightness, 1.05}}},
	{ID: "noir", Name: "Noir", Chain: Chain{{OpGrayscale, 1}, {OpContrast, 1.4}, {OpBrightness, 0.9}}},
}

var byID = func() map[string]Spec {
	m := make(map[string]Spec, len(catalog))
	for _, s := range catalog {
		for _, p := range s.Chain {
			if !p.valid() {
				panic("filter: invalid primitive in catalog entry " + s.ID)
			}
		}
		m[s.ID] = s
	}
	return m
}()

// Catalog returns every named filter, identity first.
func Catalog() []Spec {
	out := make([]Spec, len(catalog))
	copy(out, catalog)
	return out
}

// Identity returns the pass-through filter.
func Identity() Spec {
	return byID[IdentityID]
}

// Lookup returns the filter with the given ID. An empty ID means identity.
func Lookup(id string) (Spec, error) {
	if id == "" {
		return Identity(), nil
	}
	s, ok := byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Spec{}, apperr.New(apperr.KindValidation, fmt.Sprintf("unknown filter %q", id))
	}
	return s, nil
}

// formatNumber drops float noise such as 110.00000000000001.
func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}
