package filter

import (
	"bytes"
	"image"
	_ "image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/fpang/photo-enhance/internal/apperr"
	"github.com/fpang/photo-enhance/internal/dataurl"
)

// Export is a downloadable artifact.
type Export struct {
	Payload  dataurl.Payload
	Filtered bool
}

// Rasterize produces the export for img under spec.
//
// The identity filter returns img's bytes unchanged. Any other filter decodes
// img, draws it once onto an off-screen surface of its natural size, applies
// the chain and encodes the surface as PNG. img itself is never modified.
func Rasterize(img dataurl.Payload, spec Spec) (Export, error) {
	if img.IsZero() {
		return Export{}, apperr.New(apperr.KindValidation, "there is no image to export")
	}
	if spec.IsIdentity() {
		data := make([]byte, len(img.Data))
		copy(data, img.Data)
		return Export{Payload: dataurl.Payload{MIMEType: img.MIMEType, Data: data}}, nil
	}

	src, err := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	if err != nil {
		return Export{}, apperr.Wrap(apperr.KindRasterization, "could not load image for export", err)
	}

	surface, err := newSurface(src)
	if err != nil {
		return Export{}, err
	}

	out := surface
	for _, p := range spec.Chain {
		m := matrixFor(p)
		out = imaging.AdjustFunc(out, m.apply)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return Export{}, apperr.Wrap(apperr.KindRasterization, "could not encode exported image", err)
	}

	log.Debug().
		Str("filter", spec.ID).
		Int("width", out.Bounds().Dx()).
		Int("height", out.Bounds().Dy()).
		Int("output_bytes", buf.Len()).
		Msg("Rasterized filtered export")

	return Export{Payload: dataurl.Payload{MIMEType: "image/png", Data: buf.Bytes()}, Filtered: true}, nil
}

// newSurface draws src onto a fresh NRGBA surface at its natural size.
func newSurface(src image.Image) (*image.NRGBA, error) {
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, apperr.New(apperr.KindRasterization, "could not create drawing surface for an empty image")
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst, nil
}

// ExportName derives the download file name from the upload's base name
// (no directory, no extension).
func ExportName(base string, filtered bool) string {
	if base == "" {
		base = "enhanced"
	}
	if filtered {
		return base + "-filtered.png"
	}
	return base + "-photo.png"
}
