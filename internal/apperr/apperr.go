// Package apperr defines the error taxonomy shared by the enhancement pipeline.
//
// Every failure that reaches a user surface (HTTP response, CLI output, session
// error string) is an *Error carrying a Kind. Callers classify with KindOf and
// render with UserMessage; wrapped causes stay reachable through errors.Is/As.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes a pipeline failure.
type Kind int

const (
	// KindUnknown is used for errors that were never classified.
	KindUnknown Kind = iota
	// KindConfiguration indicates the service credential is missing.
	KindConfiguration
	// KindValidation indicates a bad upload, malformed data URL or invalid request.
	KindValidation
	// KindRefusal indicates the model answered with text instead of an image.
	KindRefusal
	// KindEmptyResponse indicates the model returned no usable content.
	KindEmptyResponse
	// KindTransport indicates a network or service-level failure.
	KindTransport
	// KindRasterization indicates export could not decode or draw the image.
	KindRasterization
	// KindBusy indicates another transform is already in flight.
	KindBusy
	// KindNotFound indicates an unknown session.
	KindNotFound
	// KindStale indicates a transform result arrived after a newer upload and was dropped.
	KindStale
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindConfiguration: "configuration",
	KindValidation:    "validation",
	KindRefusal:       "refusal",
	KindEmptyResponse: "empty_response",
	KindTransport:     "transport",
	KindRasterization: "rasterization",
	KindBusy:          "busy",
	KindNotFound:      "not_found",
	KindStale:         "stale",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified pipeline failure.
type Error struct {
	Kind    Kind
	Message string
	// Detail carries diagnostic text, e.g. the model's refusal text.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation is shorthand for a validation error.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage returns the single string shown to the user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return "An unexpected error occurred."
}
