package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/photo-enhance/internal/metrics"
)

// ValidationModel is the cheap text model used for the startup key check.
const ValidationModel = "gemini-2.5-flash"

// FailureType categorizes a Gemini API failure.
type FailureType int

const (
	// ErrTypeNoKey indicates no API key was found.
	ErrTypeNoKey FailureType = iota
	// ErrTypeInvalidKey indicates the API key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeNetworkError indicates a connectivity problem or a server-side 5xx.
	ErrTypeNetworkError
	// ErrTypeQuotaExceeded indicates quota exhaustion or rate limiting.
	ErrTypeQuotaExceeded
	// ErrTypeUnknown indicates an unrecognised failure.
	ErrTypeUnknown
)

// String returns the metric label for t.
func (t FailureType) String() string {
	switch t {
	case ErrTypeNoKey:
		return "no_key"
	case ErrTypeInvalidKey:
		return "invalid_key"
	case ErrTypeNetworkError:
		return "network_error"
	case ErrTypeQuotaExceeded:
		return "quota"
	default:
		return "unknown"
	}
}

// ValidationError is a classified Gemini API failure.
type ValidationError struct {
	Type    FailureType
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Generator is the part of *genai.Models the key check needs.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ValidateAPIKey verifies the API key with a minimal text request. It returns
// nil for a usable key, or a *ValidationError describing the failure.
func ValidateAPIKey(ctx context.Context, gen Generator) error {
	if gen == nil {
		return &ValidationError{Type: ErrTypeNoKey, Message: "API key is not configured"}
	}
	log.Debug().Str("model", ValidationModel).Msg("Validating API key with Gemini API")

	start := time.Now()
	resp, err := gen.GenerateContent(ctx, ValidationModel, genai.Text("hi"), nil)
	elapsed := time.Since(start)

	var result error
	label := "success"
	switch {
	case err != nil:
		valErr := Classify(err)
		label = valErr.Type.String()
		result = valErr
	case resp == nil || len(resp.Candidates) == 0:
		log.Warn().Msg("API key validation returned empty response")
		label = "empty_response"
		result = &ValidationError{Type: ErrTypeUnknown, Message: "API returned empty response"}
	}

	metrics.New(metrics.Namespace).
		Dimension("Result", label).
		Metric("ApiKeyValidationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ApiKeyValidationResult").
		Flush()

	if result != nil {
		return result
	}
	log.Info().Dur("duration", elapsed).Msg("API key validated successfully")
	return nil
}

// Classify maps a Gemini client error onto a FailureType with a
// human-readable explanation. A nil error yields nil.
func Classify(err error) *ValidationError {
	if err == nil {
		return nil
	}

	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "api key not valid") ||
		strings.Contains(errLower, "invalid api key") ||
		strings.Contains(errLower, "api_key_invalid") ||
		strings.Contains(errLower, "permission denied"):
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "API key is invalid or has been revoked", Err: err}

	case strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "resource exhausted") ||
		strings.Contains(errLower, "rate limit"):
		return &ValidationError{Type: ErrTypeQuotaExceeded, Message: "API quota exceeded or rate limited", Err: err}

	case errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "network") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "dial") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "unreachable"):
		return &ValidationError{Type: ErrTypeNetworkError, Message: "Network error - check your internet connection", Err: err}

	default:
		return &ValidationError{Type: ErrTypeUnknown, Message: "Gemini API request failed", Err: err}
	}
}

func classifyAPIError(err *genai.APIError) *ValidationError {
	switch err.Code {
	case 400:
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "Bad request - API key may be malformed", Err: err}
	case 401, 403:
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "API key is invalid, expired, or lacks permissions", Err: err}
	case 429:
		return &ValidationError{Type: ErrTypeQuotaExceeded, Message: "API rate limit exceeded - try again later", Err: err}
	case 500, 502, 503, 504:
		return &ValidationError{Type: ErrTypeNetworkError, Message: "Gemini API server error - try again later", Err: err}
	default:
		log.Debug().Int("code", err.Code).Str("message", err.Message).Msg("Unclassified Gemini API error")
		return &ValidationError{Type: ErrTypeUnknown, Message: err.Message, Err: err}
	}
}
