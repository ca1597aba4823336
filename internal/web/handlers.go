package web

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-enhance/internal/apperr"
	"github.com/fpang/photo-enhance/internal/filehandler"
	"github.com/fpang/photo-enhance/internal/filter"
	"github.com/fpang/photo-enhance/internal/session"
)

// multipartOverhead is headroom for form boundaries and headers on top of
// the file itself.
const multipartOverhead = 1 << 20

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err, nil)
		return nil, false
	}
	return sess, true
}

// respondResult writes the state on success, or the error with the state attached.
func respondResult(w http.ResponseWriter, st session.State, err error) {
	if err != nil {
		respondError(w, err, &st)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// --- Sessions ---

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.store.Create()
	respondJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.store.Delete(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

// --- Upload ---

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		verr := apperr.Validation("Choose an image file to upload.")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			verr = apperr.Validation("image file is larger than %d MB", s.opts.MaxUploadBytes>>20)
		} else {
			log.Debug().Err(err).Str("session", sess.ID()).Msg("Upload without a file part")
		}
		st := sess.Fail(verr)
		respondError(w, verr, &st)
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if guessed, gerr := filehandler.GetMIMEType(filepath.Ext(header.Filename)); gerr == nil {
			mimeType = guessed
		}
	}

	img, err := filehandler.LoadUpload(filepath.Base(header.Filename), mimeType, file, s.opts.MaxUploadBytes)
	if err != nil {
		st := sess.Fail(err)
		respondError(w, err, &st)
		return
	}
	respondJSON(w, http.StatusOK, sess.Upload(img))
}

// --- Transforms ---

// The remote call outlives a disconnected client so the session still
// receives its result; the transform client applies its own timeout.

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	st, err := sess.Enhance(context.WithoutCancel(r.Context()))
	respondResult(w, st, err)
}

func (s *Server) handleAutoFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	st, err := sess.AutoFrame(context.WithoutCancel(r.Context()))
	respondResult(w, st, err)
}

// --- Filter & comparison ---

type filterRequest struct {
	Filter string `json:"filter"`
}

func (s *Server) handleSelectFilter(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	st, err := sess.SelectFilter(req.Filter)
	respondResult(w, st, err)
}

type splitRequest struct {
	PointerX   float64 `json:"pointerX"`
	FrameLeft  float64 `json:"frameLeft"`
	FrameWidth float64 `json:"frameWidth"`
}

func (s *Server) handleMoveSplit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req splitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sess.MoveSplit(req.PointerX, req.FrameLeft, req.FrameWidth))
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess.View())
}

type filterEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	CSS  string `json:"css"`
}

func handleFilters(w http.ResponseWriter, _ *http.Request) {
	catalog := filter.Catalog()
	entries := make([]filterEntry, 0, len(catalog))
	for _, spec := range catalog {
		entries = append(entries, filterEntry{ID: spec.ID, Name: spec.Name, CSS: spec.CSS()})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"filters": entries})
}

// --- Export ---

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	dl, err := sess.Export()
	if err != nil {
		st := sess.Snapshot()
		respondError(w, err, &st)
		return
	}

	w.Header().Set("Content-Type", dl.MIMEType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(dl.Data); err != nil {
		log.Debug().Err(err).Str("session", sess.ID()).Msg("Export download interrupted")
	}
}
