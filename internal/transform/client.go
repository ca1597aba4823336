// Package transform sends one image plus one instruction to the Gemini image
// model and returns the image it produces.
//
// A Client makes exactly one attempt per call. It never retries, and it never
// touches the network when no API key was configured.
package transform

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/fpang/photo-enhance/internal/apperr"
	"github.com/fpang/photo-enhance/internal/auth"
	"github.com/fpang/photo-enhance/internal/dataurl"
	"github.com/fpang/photo-enhance/internal/metrics"
)

const (
	// DefaultModel is the Gemini model that accepts an image and returns an image.
	DefaultModel = "gemini-2.5-flash-image-preview"
	// DefaultTimeout bounds one HTTP exchange; image generation takes 10-30s.
	DefaultTimeout = 120 * time.Second
)

// ContentGenerator is the part of *genai.Models the client calls.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config is fixed when the Client is built.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	// RatePerMinute paces outbound calls; 0 disables pacing.
	RatePerMinute int
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Request is one transform call.
type Request struct {
	Image       dataurl.Payload
	Instruction string
	// Operation labels logs, metrics and error text, e.g. "enhance".
	Operation string
}

func (r Request) verb() string {
	if r.Operation == "" {
		return "transform"
	}
	return r.Operation
}

// Client calls the remote model. It is safe for concurrent use.
type Client struct {
	cfg     Config
	gen     ContentGenerator
	limiter *rate.Limiter
}

// New builds a Client backed by the Gemini API. An empty APIKey is not an
// error here; every Transform call will fail with a configuration error.
func New(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		log.Warn().Msg("Gemini API key is not set; transform calls will fail")
		return NewWithGenerator(cfg, nil), nil
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "failed to create Gemini client", err)
	}
	return NewWithGenerator(cfg, gc.Models), nil
}

// NewWithGenerator builds a Client around gen. Tests pass a fake; a nil gen
// behaves like a missing API key.
func NewWithGenerator(cfg Config, gen ContentGenerator) *Client {
	cfg = cfg.withDefaults()
	c := &Client{cfg: cfg, gen: gen}
	if cfg.APIKey == "" {
		c.gen = nil
	}
	if cfg.RatePerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Configured reports whether calls can reach the remote model.
func (c *Client) Configured() bool {
	return c.gen != nil
}

// Generator exposes the underlying generator for the startup key check.
func (c *Client) Generator() ContentGenerator {
	return c.gen
}

// Transform sends req and returns the first inline image of the first candidate.
func (c *Client) Transform(ctx context.Context, req Request) (dataurl.Payload, error) {
	if c.gen == nil {
		return dataurl.Payload{}, apperr.New(apperr.KindConfiguration,
			fmt.Sprintf("Cannot %s image: API key is not configured.", req.verb()))
	}
	if req.Image.IsZero() || req.Image.MIMEType == "" {
		return dataurl.Payload{}, apperr.Validation("no image to %s", req.verb())
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return dataurl.Payload{}, apperr.Wrap(apperr.KindTransport,
				fmt.Sprintf("Failed to %s image", req.verb()), err)
		}
	}

	start := time.Now()
	log.Info().
		Str("operation", req.verb()).
		Str("model", c.cfg.Model).
		Int("image_bytes", len(req.Image.Data)).
		Str("image_mime", req.Image.MIMEType).
		Msg("Sending image to Gemini")

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: req.Image.MIMEType, Data: req.Image.Data}},
			genai.NewPartFromText(req.Instruction),
		},
	}}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	resp, err := c.gen.GenerateContent(ctx, c.cfg.Model, contents, config)
	out, err := c.extract(req, resp, err)
	c.record(req, start, out, err)
	return out, err
}

func (c *Client) extract(req Request, resp *genai.GenerateContentResponse, callErr error) (dataurl.Payload, error) {
	if callErr != nil {
		classified := auth.Classify(callErr)
		log.Error().
			Err(callErr).
			Str("operation", req.verb()).
			Str("failure", classified.Type.String()).
			Msg("Gemini request failed")
		return dataurl.Payload{}, &apperr.Error{
			Kind:    apperr.KindTransport,
			Message: fmt.Sprintf("Failed to %s image", req.verb()),
			Detail:  classified.Message,
			Err:     callErr,
		}
	}

	var parts []*genai.Part
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		parts = resp.Candidates[0].Content.Parts
	}

	for _, part := range parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return dataurl.Payload{MIMEType: mimeType, Data: part.InlineData.Data}, nil
		}
	}

	// The first non-empty text part is the model's explanation; later parts
	// are usually follow-up chatter.
	var text string
	for _, part := range parts {
		if part == nil {
			continue
		}
		if t := strings.TrimSpace(part.Text); t != "" {
			text = t
			break
		}
	}
	if text != "" {
		log.Warn().Str("operation", req.verb()).Str("text", truncate(text, 200)).Msg("Model answered with text instead of an image")
		return dataurl.Payload{}, &apperr.Error{
			Kind:    apperr.KindRefusal,
			Message: "Model returned a text response instead of an image",
			Detail:  text,
		}
	}

	log.Warn().Str("operation", req.verb()).Msg("Model response had no image data")
	return dataurl.Payload{}, apperr.New(apperr.KindEmptyResponse, "No image data found in the API response.")
}

func (c *Client) record(req Request, start time.Time, out dataurl.Payload, err error) {
	elapsed := time.Since(start)
	result := "success"
	if err != nil {
		result = apperr.KindOf(err).String()
	} else {
		log.Info().
			Str("operation", req.verb()).
			Int("output_bytes", len(out.Data)).
			Str("output_mime", out.MIMEType).
			Dur("duration", elapsed).
			Msg("Gemini transform complete")
	}

	metrics.New(metrics.Namespace).
		Dimension("Operation", req.verb()).
		Dimension("Result", result).
		Metric("TransformMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Metric("OutputBytes", float64(len(out.Data)), metrics.UnitBytes).
		Count("TransformCount").
		Property("model", c.cfg.Model).
		Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
