package filter

import (
	"image/color"
	"math"
)

// affine maps an sRGB colour (channels in [0,1]) to out = M·rgb + offset.
// Each row holds the r, g, b coefficients followed by the offset.
type affine [3][4]float64

// matrixFor returns the CSS Filter Effects matrix for p.
// https://drafts.fxtf.org/filter-effects/#ShorthandEquivalents
func matrixFor(p Primitive) affine {
	switch p.Op {
	case OpGrayscale:
		s := 1 - clamp01(p.Amount)
		return affine{
			{0.2126 + 0.7874*s, 0.7152 - 0.7152*s, 0.0722 - 0.0722*s, 0},
			{0.2126 - 0.2126*s, 0.7152 + 0.2848*s, 0.0722 - 0.0722*s, 0},
			{0.2126 - 0.2126*s, 0.7152 - 0.7152*s, 0.0722 + 0.9278*s, 0},
		}
	case OpSepia:
		s := 1 - clamp01(p.Amount)
		return affine{
			{0.393 + 0.607*s, 0.769 - 0.769*s, 0.189 - 0.189*s, 0},
			{0.349 - 0.349*s, 0.686 + 0.314*s, 0.168 - 0.168*s, 0},
			{0.272 - 0.272*s, 0.534 - 0.534*s, 0.131 + 0.869*s, 0},
		}
	case OpSaturate:
		s := math.Max(p.Amount, 0)
		return affine{
			{0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s, 0},
			{0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s, 0},
			{0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s, 0},
		}
	case OpHueRotate:
		rad := p.Amount * math.Pi / 180
		c, s := math.Cos(rad), math.Sin(rad)
		return affine{
			{0.213 + c*0.787 - s*0.213, 0.715 - c*0.715 - s*0.715, 0.072 - c*0.072 + s*0.928, 0},
			{0.213 - c*0.213 + s*0.143, 0.715 + c*0.285 + s*0.140, 0.072 - c*0.072 - s*0.283, 0},
			{0.213 - c*0.213 - s*0.787, 0.715 - c*0.715 + s*0.715, 0.072 + c*0.928 + s*0.072, 0},
		}
	case OpBrightness:
		b := math.Max(p.Amount, 0)
		return diagonal(b, 0)
	case OpContrast:
		c := math.Max(p.Amount, 0)
		return diagonal(c, 0.5-0.5*c)
	case OpInvert:
		a := clamp01(p.Amount)
		return diagonal(1-2*a, a)
	}
	return diagonal(1, 0)
}

func diagonal(slope, offset float64) affine {
	return affine{
		{slope, 0, 0, offset},
		{0, slope, 0, offset},
		{0, 0, slope, offset},
	}
}

// apply transforms a non-premultiplied colour. Alpha is unchanged.
func (m affine) apply(c color.NRGBA) color.NRGBA {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255
	return color.NRGBA{
		R: toByte(m[0][0]*r + m[0][1]*g + m[0][2]*b + m[0][3]),
		G: toByte(m[1][0]*r + m[1][1]*g + m[1][2]*b + m[1][3]),
		B: toByte(m[2][0]*r + m[2][1]*g + m[2][2]*b + m[2][3]),
		A: c.A,
	}
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

func toByte(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}
