package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/photo-enhance/internal/pipeline"
)

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{9 * time.Second, "0:09"},
		{75 * time.Second, "1:15"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDurationShort(tt.in))
	}
}

func TestPromptForImage(t *testing.T) {
	var out bytes.Buffer
	path, err := PromptForImage(strings.NewReader("  \"/tmp/my photo.jpg\"\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/my photo.jpg", path)
	assert.Equal(t, "Image file: ", out.String())

	_, err = PromptForImage(strings.NewReader("\n"), &out)
	assert.ErrorIs(t, err, ErrCanceled)

	path, err = PromptForImage(strings.NewReader("last.png"), &out)
	require.NoError(t, err)
	assert.Equal(t, "last.png", path)
}

func TestResolveImagePath(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "photo.JPG")
	require.NoError(t, os.WriteFile(img, []byte("x"), 0o600))
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o600))

	got, err := ResolveImagePath(img)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))

	_, err = ResolveImagePath(txt)
	assert.Error(t, err)

	_, err = ResolveImagePath(dir)
	assert.Error(t, err)

	_, err = ResolveImagePath(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	PrintResult(&buf, pipeline.Result{
		Output:   "/tmp/beach-filtered.png",
		Filter:   "sepia",
		Bytes:    2048,
		Steps:    []string{"enhance", "auto-frame"},
		Elapsed:  42 * time.Second,
		Metadata: "Canon EOS R5",
	})
	out := buf.String()
	assert.Contains(t, out, "/tmp/beach-filtered.png")
	assert.Contains(t, out, "0:42")
	assert.Contains(t, out, "enhance → auto-frame")
	assert.Contains(t, out, "sepia")
	assert.Contains(t, out, "Canon EOS R5")
}

func TestPrintFilters(t *testing.T) {
	var buf bytes.Buffer
	PrintFilters(&buf)
	assert.Contains(t, buf.String(), "grayscale")
	assert.Contains(t, buf.String(), "grayscale(100%)")
}
