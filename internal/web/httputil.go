package web

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-enhance/internal/apperr"
	"github.com/fpang/photo-enhance/internal/session"
)

// --- JSON Helpers ---

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// errorResponse is the body of every non-2xx API response. State is the
// session snapshot after the failure, when the failure belongs to a session.
type errorResponse struct {
	Error string         `json:"error"`
	Kind  string         `json:"kind"`
	State *session.State `json:"state,omitempty"`
}

// httpError sends a JSON error response. The clientMsg is returned to the caller.
// Optional internalDetails are logged server-side but never sent to the client.
func httpError(w http.ResponseWriter, status int, clientMsg string, internalDetails ...string) {
	if len(internalDetails) > 0 {
		log.Error().
			Int("status", status).
			Str("clientMsg", clientMsg).
			Strs("internalDetails", internalDetails).
			Msg("HTTP error with internal details")
	}
	respondJSON(w, status, errorResponse{Error: clientMsg, Kind: kindFor(status).String()})
}

// respondError maps a classified error onto its status code. st, when not
// nil, is included so clients can render the session without a second fetch.
func respondError(w http.ResponseWriter, err error, st *session.State) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		log.Warn().Err(err).Str("kind", kind.String()).Int("status", status).Msg("Request failed")
	}
	respondJSON(w, status, errorResponse{
		Error: apperr.UserMessage(err),
		Kind:  kind.String(),
		State: st,
	})
}

// kindFor is the reverse of statusFor for errors raised by the handlers
// themselves rather than by a session.
func kindFor(status int) apperr.Kind {
	switch status {
	case http.StatusBadRequest:
		return apperr.KindValidation
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusConflict:
		return apperr.KindBusy
	case http.StatusServiceUnavailable:
		return apperr.KindConfiguration
	default:
		return apperr.KindUnknown
	}
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindBusy, apperr.KindStale:
		return http.StatusConflict
	case apperr.KindConfiguration:
		return http.StatusServiceUnavailable
	case apperr.KindRefusal, apperr.KindEmptyResponse, apperr.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
