// Package filehandler is the file input boundary of the enhancement pipeline.
//
// Uploads are gated on MIME type (JPEG, PNG, WebP), read fully into memory,
// encoded as a data URL and annotated with whatever EXIF metadata the
// imagemeta library can find. Metadata is best effort; its absence never
// fails an upload.
package filehandler

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-enhance/internal/apperr"
	"github.com/fpang/photo-enhance/internal/dataurl"
)

// DefaultMaxUploadBytes caps a single upload.
const DefaultMaxUploadBytes = 20 << 20

// SupportedImageTypes maps accepted upload MIME types to their canonical extension.
var SupportedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// SupportedImageExtensions maps file extensions to accepted MIME types.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// UploadedImage is an accepted upload. It is never mutated after LoadUpload
// returns; a new upload supersedes it.
type UploadedImage struct {
	Name     string
	MIMEType string
	Data     []byte
	DataURL  string
	Metadata *ImageMetadata
}

// Payload returns the upload as a transform payload.
func (u *UploadedImage) Payload() dataurl.Payload {
	return dataurl.Payload{MIMEType: u.MIMEType, Data: u.Data}
}

// BaseName returns the file name without directory and extension.
func (u *UploadedImage) BaseName() string {
	base := filepath.Base(u.Name)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ValidateMIMEType rejects anything other than JPEG, PNG and WebP.
func ValidateMIMEType(mimeType string) error {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = mimeType
	}
	if _, ok := SupportedImageTypes[strings.ToLower(mediaType)]; !ok {
		return apperr.Validation("Please upload a valid image file (JPEG, PNG, WebP).")
	}
	return nil
}

// LoadUpload validates and reads an uploaded file. maxBytes <= 0 means
// DefaultMaxUploadBytes.
func LoadUpload(name, mimeType string, r io.Reader, maxBytes int64) (*UploadedImage, error) {
	if err := ValidateMIMEType(mimeType); err != nil {
		log.Debug().Str("name", name).Str("mime_type", mimeType).Msg("Rejected upload with unsupported type")
		return nil, err
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = mimeType
	}
	mediaType = strings.ToLower(mediaType)

	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "could not read image file", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, apperr.Validation("image file is larger than %d MB", maxBytes>>20)
	}
	if len(data) == 0 {
		return nil, apperr.Validation("image file is empty")
	}

	url, err := dataurl.Encode(bytes.NewReader(data), mediaType)
	if err != nil {
		return nil, err
	}

	upload := &UploadedImage{
		Name:     name,
		MIMEType: mediaType,
		Data:     data,
		DataURL:  url,
	}

	meta, err := ExtractImageMetadata(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Str("name", name).Msg("No EXIF metadata, continuing without it")
	} else {
		upload.Metadata = meta
	}

	log.Info().
		Str("name", name).
		Str("mime_type", mediaType).
		Int("size_bytes", len(data)).
		Bool("has_metadata", upload.Metadata != nil).
		Msg("Upload accepted")

	return upload, nil
}

// LoadUploadFile reads a local file, deriving the MIME type from its extension.
func LoadUploadFile(path string, maxBytes int64) (*UploadedImage, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Validation("file not found: %s", path)
		}
		return nil, apperr.Wrap(apperr.KindValidation, "could not read image file", err)
	}
	if info.IsDir() {
		return nil, apperr.Validation("path is a directory, not a file: %s", path)
	}

	mimeType, err := GetMIMEType(filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "could not read image file", err)
	}
	defer f.Close()

	return LoadUpload(filepath.Base(path), mimeType, f, maxBytes)
}

// GetMIMEType returns the MIME type for a given file extension.
func GetMIMEType(ext string) (string, error) {
	if mimeType, ok := SupportedImageExtensions[strings.ToLower(ext)]; ok {
		return mimeType, nil
	}
	return "", apperr.Validation("unsupported file extension: %s", ext)
}

// DescribeSize formats a byte count for log and CLI output.
func DescribeSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
