package session

import (
	"github.com/fpang/photo-enhance/internal/assets"
)

// Kind selects which remote transform to run. Both kinds share one call
// path and differ only in their instruction.
type Kind int

const (
	// Enhance improves the original upload.
	Enhance Kind = iota
	// AutoFrame crops the current working image.
	AutoFrame
)

func (k Kind) String() string {
	switch k {
	case Enhance:
		return "enhance"
	case AutoFrame:
		return "auto-frame"
	}
	return "unknown"
}

// Instruction renders the prompt for k with optional capture metadata.
func (k Kind) Instruction(metadataContext string) string {
	if k == AutoFrame {
		return assets.RenderAutoFramePrompt(metadataContext)
	}
	return assets.RenderEnhancePrompt(metadataContext)
}
