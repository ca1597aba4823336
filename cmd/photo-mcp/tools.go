package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fpang/photo-enhance/internal/apperr"
	"github.com/fpang/photo-enhance/internal/filter"
	"github.com/fpang/photo-enhance/internal/pipeline"
	"github.com/fpang/photo-enhance/internal/session"
)

// EnhanceInput is the argument object of enhance_photo and autoframe_photo.
type EnhanceInput struct {
	Path   string `json:"path" jsonschema:"absolute path of a local JPEG, PNG or WebP photo"`
	Output string `json:"output,omitempty" jsonschema:"file or directory to write the PNG result to; defaults to next to the input"`
	Filter string `json:"filter,omitempty" jsonschema:"colour filter to bake into the result: none, grayscale, sepia, invert, vintage, vivid, cool or noir"`
}

// FilterInput is the argument object of apply_filter.
type FilterInput struct {
	Path   string `json:"path" jsonschema:"absolute path of a local JPEG, PNG or WebP photo"`
	Filter string `json:"filter" jsonschema:"colour filter to apply: grayscale, sepia, invert, vintage, vivid, cool or noir"`
	Output string `json:"output,omitempty" jsonschema:"file or directory to write the PNG result to; defaults to next to the input"`
}

// PhotoOutput is the structured result of every tool.
type PhotoOutput struct {
	Output   string   `json:"output" jsonschema:"path of the written image"`
	Filter   string   `json:"filter" jsonschema:"filter applied to the written image"`
	Filtered bool     `json:"filtered" jsonschema:"whether the image was re-encoded through a filter"`
	Bytes    int      `json:"bytes" jsonschema:"size of the written image in bytes"`
	Steps    []string `json:"steps" jsonschema:"operations performed in order"`
}

type tools struct {
	client   session.Transformer
	maxBytes int64
}

func (t *tools) register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "enhance_photo",
		Description: "Enhance a local photo with Gemini: lighting, colour and clarity improve while the people in it stay exactly the same. Writes a PNG and returns its path.",
	}, t.enhance)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "autoframe_photo",
		Description: "Enhance a local photo and then auto-frame it with an intelligent crop. Writes a PNG and returns its path.",
	}, t.autoFrame)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "apply_filter",
		Description: "Apply a colour filter to a local photo without calling any model. Writes a PNG and returns its path.",
	}, t.applyFilter)
}

func (t *tools) enhance(ctx context.Context, _ *mcp.CallToolRequest, in EnhanceInput) (*mcp.CallToolResult, PhotoOutput, error) {
	return t.run(ctx, in, false)
}

func (t *tools) autoFrame(ctx context.Context, _ *mcp.CallToolRequest, in EnhanceInput) (*mcp.CallToolResult, PhotoOutput, error) {
	return t.run(ctx, in, true)
}

func (t *tools) run(ctx context.Context, in EnhanceInput, autoFrame bool) (*mcp.CallToolResult, PhotoOutput, error) {
	if strings.TrimSpace(in.Path) == "" {
		return nil, PhotoOutput{}, fmt.Errorf("path is required")
	}
	res, err := pipeline.Run(ctx, t.client, pipeline.Options{
		Input:          in.Path,
		Output:         in.Output,
		AutoFrame:      autoFrame,
		Filter:         in.Filter,
		MaxUploadBytes: t.maxBytes,
	})
	if err != nil {
		return nil, PhotoOutput{}, toolError(err)
	}
	return textResult(res), outputOf(res), nil
}

func (t *tools) applyFilter(_ context.Context, _ *mcp.CallToolRequest, in FilterInput) (*mcp.CallToolResult, PhotoOutput, error) {
	if strings.TrimSpace(in.Path) == "" {
		return nil, PhotoOutput{}, fmt.Errorf("path is required")
	}
	if in.Filter == "" || in.Filter == filter.IdentityID {
		return nil, PhotoOutput{}, fmt.Errorf("choose a filter other than %q", filter.IdentityID)
	}
	res, err := pipeline.ApplyFilter(in.Path, in.Output, in.Filter, t.maxBytes)
	if err != nil {
		return nil, PhotoOutput{}, toolError(err)
	}
	return textResult(res), outputOf(res), nil
}

func toolError(err error) error {
	return fmt.Errorf("%s (%s)", apperr.UserMessage(err), apperr.KindOf(err))
}

func textResult(res pipeline.Result) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Saved %s (%s, filter %s)", res.Output, strings.Join(res.Steps, " + "), res.Filter)},
		},
	}
}

func outputOf(res pipeline.Result) PhotoOutput {
	return PhotoOutput{
		Output:   res.Output,
		Filter:   res.Filter,
		Filtered: res.Filtered,
		Bytes:    res.Bytes,
		Steps:    res.Steps,
	}
}
