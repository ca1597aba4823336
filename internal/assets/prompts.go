// Package assets provides the embedded prompt templates sent with each image
// transform.
//
// Templates live under prompts/ and are compiled in with go:embed, so a binary
// never depends on files next to it.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

//go:embed prompts/enhance.txt
var enhanceTemplate string

//go:embed prompts/autoframe.txt
var autoFrameTemplate string

// Parsed once; template.Must fails at startup on a malformed template.
var (
	enhancePromptTmpl   = template.Must(template.New("enhance").Parse(enhanceTemplate))
	autoFramePromptTmpl = template.Must(template.New("autoframe").Parse(autoFrameTemplate))
)

// PromptData holds the dynamic data injected into prompt templates.
type PromptData struct {
	// MetadataContext is a one-line EXIF summary, or "" when the upload had none.
	MetadataContext string
}

// RenderEnhancePrompt renders the enhancement instruction.
func RenderEnhancePrompt(metadataContext string) string {
	return renderTemplate(enhancePromptTmpl, metadataContext)
}

// RenderAutoFramePrompt renders the intelligent-crop instruction.
func RenderAutoFramePrompt(metadataContext string) string {
	return renderTemplate(autoFramePromptTmpl, metadataContext)
}

func renderTemplate(tmpl *template.Template, metadataContext string) string {
	var buf bytes.Buffer
	// The templates only reference a string field, so Execute cannot fail
	// partway; whatever rendered is returned.
	_ = tmpl.Execute(&buf, PromptData{MetadataContext: metadataContext})
	return buf.String()
}
