package filehandler

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// ImageMetadata is the EXIF summary attached to an upload.
//
// It uses evanoberholster/imagemeta, which reads only the metadata segment of
// JPEG/PNG/WebP data through an io.ReadSeeker.
type ImageMetadata struct {
	CameraMake  string    `json:"cameraMake,omitempty"`
	CameraModel string    `json:"cameraModel,omitempty"`
	DateTaken   time.Time `json:"dateTaken,omitempty"`
	HasDate     bool      `json:"hasDate"`
}

// ExtractImageMetadata decodes EXIF metadata from r.
func ExtractImageMetadata(r io.ReadSeeker) (*ImageMetadata, error) {
	exifData, err := imagemeta.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	metadata := &ImageMetadata{
		CameraMake:  strings.TrimSpace(exifData.Make),
		CameraModel: strings.TrimSpace(exifData.Model),
	}

	// Priority: DateTimeOriginal > CreateDate > ModifyDate
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		metadata.DateTaken = exifData.DateTimeOriginal()
		metadata.HasDate = true
	case !exifData.CreateDate().IsZero():
		metadata.DateTaken = exifData.CreateDate()
		metadata.HasDate = true
	case !exifData.ModifyDate().IsZero():
		metadata.DateTaken = exifData.ModifyDate()
		metadata.HasDate = true
	}

	log.Debug().
		Str("camera", metadata.Camera()).
		Bool("has_date", metadata.HasDate).
		Msg("Image metadata extraction complete")

	return metadata, nil
}

// Camera returns "Make Model", or "" when neither is known.
func (m *ImageMetadata) Camera() string {
	return strings.TrimSpace(m.CameraMake + " " + m.CameraModel)
}

// Summary is a one-line description for CLI output.
func (m *ImageMetadata) Summary() string {
	var parts []string
	if c := m.Camera(); c != "" {
		parts = append(parts, c)
	}
	if m.HasDate {
		parts = append(parts, m.DateTaken.Format("January 2, 2006 3:04 PM"))
	}
	if len(parts) == 0 {
		return "no camera metadata"
	}
	return strings.Join(parts, ", ")
}
