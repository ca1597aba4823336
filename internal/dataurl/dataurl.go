// Package dataurl converts image bytes to and from self-describing
// `data:<mime>;base64,<payload>` strings.
package dataurl

import (
	"encoding/base64"
	"fmt"
	"io"
	"regexp"

	"github.com/fpang/photo-enhance/internal/apperr"
)

// pattern matches a base64 data URL; the MIME part is the shortest run before ";base64,".
var pattern = regexp.MustCompile(`^data:(.+?);base64,(.+)$`)

// Payload is an image in transit: its MIME type and raw bytes.
type Payload struct {
	MIMEType string
	Data     []byte
}

// IsZero reports whether the payload holds no image.
func (p Payload) IsZero() bool {
	return len(p.Data) == 0
}

// Base64 returns the standard base64 encoding of the payload bytes.
func (p Payload) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// String returns the payload as a data URL.
func (p Payload) String() string {
	return EncodePayload(p)
}

// Encode reads r to EOF and returns its contents as a data URL of mimeType.
// A read failure is reported as a validation error.
func Encode(r io.Reader, mimeType string) (string, error) {
	if mimeType == "" {
		return "", apperr.Validation("cannot encode image: MIME type is empty")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", apperr.Wrap(apperr.KindValidation, "could not read image file", err)
	}
	return EncodePayload(Payload{MIMEType: mimeType, Data: data}), nil
}

// EncodePayload formats p as a data URL.
func EncodePayload(p Payload) string {
	return fmt.Sprintf("data:%s;base64,%s", p.MIMEType, p.Base64())
}

// Decode splits a data URL into its MIME type and decoded bytes.
func Decode(s string) (Payload, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return Payload{}, apperr.Validation("invalid data URL format")
	}
	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return Payload{}, apperr.Wrap(apperr.KindValidation, "invalid data URL format", err)
	}
	return Payload{MIMEType: m[1], Data: data}, nil
}
