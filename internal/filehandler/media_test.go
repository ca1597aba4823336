package filehandler

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fpang/photo-enhance/internal/apperr"
	"github.com/fpang/photo-enhance/internal/dataurl"
)

func tinyJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestValidateMIMEType(t *testing.T) {
	tests := []struct {
		mime    string
		wantErr bool
	}{
		{"image/jpeg", false},
		{"image/png", false},
		{"image/webp", false},
		{"IMAGE/PNG", false},
		{"image/png; charset=binary", false},
		{"image/gif", true},
		{"image/heic", true},
		{"application/pdf", true},
		{"text/plain", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			err := ValidateMIMEType(tt.mime)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateMIMEType(%q) error = %v, wantErr %v", tt.mime, err, tt.wantErr)
			}
			if err != nil && !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLoadUploadSupportedTypes(t *testing.T) {
	data := tinyJPEG(t)

	for _, mime := range []string{"image/jpeg", "image/png", "image/webp"} {
		t.Run(mime, func(t *testing.T) {
			upload, err := LoadUpload("holiday.jpg", mime, bytes.NewReader(data), 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, err := dataurl.Decode(upload.DataURL)
			if err != nil {
				t.Fatalf("data URL not decodable: %v", err)
			}
			if got.MIMEType != mime {
				t.Errorf("MIME = %q, want %q", got.MIMEType, mime)
			}
			if !bytes.Equal(got.Data, data) {
				t.Error("decoded payload differs from upload bytes")
			}
		})
	}
}

func TestLoadUploadRejects(t *testing.T) {
	tests := []struct {
		name    string
		mime    string
		data    []byte
		max     int64
		message string
	}{
		{"gif", "image/gif", []byte("GIF89a"), 0, "valid image file"},
		{"empty", "image/png", nil, 0, "empty"},
		{"too large", "image/png", bytes.Repeat([]byte{1}, 2<<20+1), 2 << 20, "larger than 2 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadUpload("x", tt.mime, bytes.NewReader(tt.data), tt.max)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q does not mention %q", err, tt.message)
			}
		})
	}
}

func TestLoadUploadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portrait.JPEG")
	if err := os.WriteFile(path, tinyJPEG(t), 0o600); err != nil {
		t.Fatal(err)
	}

	upload, err := LoadUploadFile(path, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upload.MIMEType != "image/jpeg" {
		t.Errorf("MIME = %q, want image/jpeg", upload.MIMEType)
	}
	if upload.BaseName() != "portrait" {
		t.Errorf("BaseName() = %q, want portrait", upload.BaseName())
	}

	if _, err := LoadUploadFile(filepath.Join(dir, "missing.png"), 0); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("missing file: expected validation error, got %v", err)
	}
	if _, err := LoadUploadFile(dir, 0); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("directory: expected validation error, got %v", err)
	}

	txt := filepath.Join(dir, "notes.txt")
	os.WriteFile(txt, []byte("hi"), 0o600)
	if _, err := LoadUploadFile(txt, 0); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("txt: expected validation error, got %v", err)
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"photo.png", "photo"},
		{"my.holiday.photo.jpg", "my.holiday.photo"},
		{"noext", "noext"},
		{"", ""},
	}
	for _, tt := range tests {
		u := &UploadedImage{Name: tt.name}
		if got := u.BaseName(); got != tt.want {
			t.Errorf("BaseName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestImageMetadataSummary(t *testing.T) {
	m := &ImageMetadata{CameraMake: "Apple", CameraModel: "iPhone 15"}
	if got := m.Summary(); got != "Apple iPhone 15" {
		t.Errorf("Summary() = %q", got)
	}
	if got := (&ImageMetadata{}).Summary(); got != "no camera metadata" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestDescribeSize(t *testing.T) {
	if got := DescribeSize(512); got != "512 B" {
		t.Errorf("DescribeSize(512) = %q", got)
	}
	if got := DescribeSize(3 << 20); got != "3.0 MB" {
		t.Errorf("DescribeSize(3MB) = %q", got)
	}
}
