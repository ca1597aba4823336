// Package web serves the photo enhancement workflow over HTTP: a JSON API
// around session.Store, a websocket stream of session state and the
// embedded single-page client.
package web

import (
	"bufio"
	"embed"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-enhance/internal/filehandler"
	"github.com/fpang/photo-enhance/internal/metrics"
	"github.com/fpang/photo-enhance/internal/session"
)

//go:embed static
var staticFS embed.FS

// Options tunes the HTTP surface.
type Options struct {
	// MaxUploadBytes caps a single upload. <= 0 means filehandler.DefaultMaxUploadBytes.
	MaxUploadBytes int64
	// AllowedOrigins lists origin prefixes accepted for CORS and websockets,
	// e.g. "http://localhost:". Empty allows same-origin requests only.
	AllowedOrigins []string
}

// Server routes API requests to a session store.
type Server struct {
	store *session.Store
	opts  Options
}

// NewServer creates a Server over store.
func NewServer(store *session.Store, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = filehandler.DefaultMaxUploadBytes
	}
	return &Server{store: store, opts: opts}
}

// Handler returns the full middleware-wrapped router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(withMetrics)

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/sessions", compressed(s.handleCreateSession)).Methods(http.MethodPost)
	api.Handle("/sessions/{id}", compressed(s.handleGetSession)).Methods(http.MethodGet)
	api.Handle("/sessions/{id}", compressed(s.handleDeleteSession)).Methods(http.MethodDelete)
	api.Handle("/sessions/{id}/upload", compressed(s.handleUpload)).Methods(http.MethodPost)
	api.Handle("/sessions/{id}/enhance", compressed(s.handleEnhance)).Methods(http.MethodPost)
	api.Handle("/sessions/{id}/autoframe", compressed(s.handleAutoFrame)).Methods(http.MethodPost)
	api.Handle("/sessions/{id}/filter", compressed(s.handleSelectFilter)).Methods(http.MethodPut)
	api.Handle("/sessions/{id}/split", compressed(s.handleMoveSplit)).Methods(http.MethodPut)
	api.Handle("/sessions/{id}/view", compressed(s.handleView)).Methods(http.MethodGet)
	api.Handle("/sessions/{id}/export", compressed(s.handleExport)).Methods(http.MethodGet)
	// Websocket upgrades need the raw connection, so this route is never compressed.
	api.HandleFunc("/sessions/{id}/events", s.handleEvents).Methods(http.MethodGet)
	api.Handle("/filters", compressed(handleFilters)).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load embedded client")
	}
	r.PathPrefix("/").Handler(gzhttp.GzipHandler(withSecurityHeaders(http.FileServer(http.FS(static)))))

	return withLogging(s.withCORS(r))
}

func compressed(h http.HandlerFunc) http.Handler {
	return gzhttp.GzipHandler(h)
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	EMF      bool   `json:"emf"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Sessions: s.store.Len(),
		EMF:      metrics.Enabled(),
	})
}

// --- Middleware ---

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' blob: data:; style-src 'self' 'unsafe-inline'; connect-src 'self' ws: wss:")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
// It forwards Hijack so websocket upgrades pass through.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	sr.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sr, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sr.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// withMetrics emits per-request EMF metrics. It runs inside the router so
// the route template, not the raw path, becomes the Endpoint dimension.
func withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sr, r)

		metrics.New(metrics.Namespace).
			Dimension("Endpoint", endpointFor(r)).
			Metric("RequestLatencyMs", float64(time.Since(start).Milliseconds()), metrics.UnitMilliseconds).
			Count("RequestCount").
			Property("method", r.Method).
			Property("statusCode", sr.statusCode).
			Flush()
	})
}

func endpointFor(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil && strings.HasPrefix(tpl, "/api") {
			return tpl
		}
	}
	if r.URL.Path == "/healthz" {
		return "/healthz"
	}
	return "static"
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, prefix := range s.opts.AllowedOrigins {
		if prefix == "*" || strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}
