package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-enhance/internal/filehandler"
)

// ErrCanceled is returned when the user dismisses the file picker or enters nothing.
var ErrCanceled = errors.New("no image selected")

// PromptForImage asks for an image path on in. An empty answer returns ErrCanceled.
func PromptForImage(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Image file: ")

	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		log.Warn().Err(err).Msg("Failed to read input")
		return "", err
	}

	input = strings.Trim(strings.TrimSpace(input), `"'`)
	if input == "" {
		return "", ErrCanceled
	}
	return input, nil
}

// PickImage opens the native file dialog limited to supported image types.
func PickImage() (string, error) {
	patterns := make([]string, 0, len(filehandler.SupportedImageExtensions))
	for ext := range filehandler.SupportedImageExtensions {
		patterns = append(patterns, "*"+ext)
	}

	selected, err := zenity.SelectFile(
		zenity.Title("Select a photo to enhance"),
		zenity.FileFilters{
			{Name: "Images", Patterns: patterns},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", ErrCanceled
		}
		log.Error().Err(err).Msg("File picker failed")
		return "", err
	}
	return selected, nil
}
