// Package session owns the per-user pipeline state: the uploaded original,
// the single working image slot, the active filter and the comparison split.
//
// A Session's mutex is never held across a remote call. Each transform
// captures a generation token when it starts; its result is applied only if
// no upload or later transform has moved the generation on since.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-enhance/internal/apperr"
	"github.com/fpang/photo-enhance/internal/compare"
	"github.com/fpang/photo-enhance/internal/dataurl"
	"github.com/fpang/photo-enhance/internal/filehandler"
	"github.com/fpang/photo-enhance/internal/filter"
	"github.com/fpang/photo-enhance/internal/transform"
)

// Transformer runs one remote image transform. *transform.Client implements it.
type Transformer interface {
	Transform(ctx context.Context, req transform.Request) (dataurl.Payload, error)
}

// Session is one user's pipeline state. Create sessions with Store.Create
// or New.
type Session struct {
	id     string
	client Transformer

	mu         sync.Mutex
	upload     *filehandler.UploadedImage
	working    dataurl.Payload
	filter     filter.Spec
	slider     compare.Slider
	enhancing  bool
	framing    bool
	generation uint64
	revision   uint64
	errMsg     string
	errKind    apperr.Kind
	lastActive time.Time

	// onChange receives a snapshot after every state change, outside the lock.
	onChange func(State)
}

// New creates a standalone session. Store.Create is the usual constructor.
func New(id string, client Transformer) *Session {
	return &Session{
		id:         id,
		client:     client,
		filter:     filter.Identity(),
		slider:     compare.NewSlider(),
		lastActive: time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Upload replaces the original with img. The working image is cleared, the
// filter and split are reset, and any transform still in flight becomes stale.
func (s *Session) Upload(img *filehandler.UploadedImage) State {
	s.mu.Lock()
	s.upload = img
	s.working = dataurl.Payload{}
	s.filter = filter.Identity()
	s.slider.Reset()
	s.generation++
	s.clearErrorLocked()
	st := s.changedLocked()
	s.mu.Unlock()

	log.Info().
		Str("session", s.id).
		Str("name", img.Name).
		Uint64("generation", st.Generation).
		Msg("New image uploaded")
	s.publish(st)
	return st
}

// Fail records err as the session's user-visible error without touching any
// image state. Used for failures that happen before a session operation runs,
// such as a rejected upload.
func (s *Session) Fail(err error) State {
	s.mu.Lock()
	s.setErrorLocked(err)
	st := s.changedLocked()
	s.mu.Unlock()
	s.publish(st)
	return st
}

// Enhance sends the original upload to the remote model. On success the
// result replaces the working image.
func (s *Session) Enhance(ctx context.Context) (State, error) {
	return s.run(ctx, Enhance)
}

// AutoFrame sends the current working image to the remote model for an
// intelligent crop. It requires a working image.
func (s *Session) AutoFrame(ctx context.Context) (State, error) {
	return s.run(ctx, AutoFrame)
}

// run is the single call path for every Kind.
func (s *Session) run(ctx context.Context, kind Kind) (State, error) {
	s.mu.Lock()
	input, err := s.inputLocked(kind)
	if apperr.Is(err, apperr.KindBusy) {
		// The running transform owns the error slot.
		st := s.snapshotLocked()
		s.mu.Unlock()
		return st, err
	}
	if err != nil {
		s.setErrorLocked(err)
		st := s.changedLocked()
		s.mu.Unlock()
		s.publish(st)
		return st, err
	}

	s.setFlagLocked(kind, true)
	s.clearErrorLocked()
	if kind == Enhance {
		s.filter = filter.Identity()
	}
	s.generation++
	token := s.generation
	var metadataContext string
	if s.upload.Metadata != nil {
		metadataContext = s.upload.Metadata.Summary()
	}
	started := s.changedLocked()
	s.mu.Unlock()
	s.publish(started)

	log.Info().
		Str("session", s.id).
		Str("operation", kind.String()).
		Uint64("generation", token).
		Msg("Transform started")

	result, callErr := s.client.Transform(ctx, transform.Request{
		Image:       input,
		Instruction: kind.Instruction(metadataContext),
		Operation:   kind.String(),
	})

	s.mu.Lock()
	s.setFlagLocked(kind, false)
	if token != s.generation {
		st := s.changedLocked()
		s.mu.Unlock()
		s.publish(st)
		log.Info().
			Str("session", s.id).
			Str("operation", kind.String()).
			Uint64("token", token).
			Uint64("generation", st.Generation).
			Msg("Discarding stale transform result")
		return st, apperr.New(apperr.KindStale, "The image changed while it was being processed; the result was discarded.")
	}
	if callErr != nil {
		s.setErrorLocked(callErr)
	} else {
		s.working = result
	}
	st := s.changedLocked()
	s.mu.Unlock()
	s.publish(st)

	if callErr != nil {
		log.Warn().Err(callErr).Str("session", s.id).Str("operation", kind.String()).Msg("Transform failed")
	}
	return st, callErr
}

// inputLocked validates preconditions and returns the payload to send.
func (s *Session) inputLocked(kind Kind) (dataurl.Payload, error) {
	if s.enhancing || s.framing {
		return dataurl.Payload{}, apperr.New(apperr.KindBusy, "Another operation is already in progress.")
	}
	if s.upload == nil {
		return dataurl.Payload{}, apperr.Validation("Upload a photo first.")
	}

	url := s.upload.DataURL
	if kind == AutoFrame {
		if s.working.IsZero() {
			return dataurl.Payload{}, apperr.Validation("Enhance the photo before auto-framing it.")
		}
		url = s.working.String()
	}
	// The data URL is the boundary contract with the remote client.
	return dataurl.Decode(url)
}

// SelectFilter makes the named filter active. Stored image bytes are not touched.
func (s *Session) SelectFilter(id string) (State, error) {
	spec, err := filter.Lookup(id)
	if err != nil {
		return s.Snapshot(), err
	}
	s.mu.Lock()
	s.clearErrorLocked()
	s.filter = spec
	st := s.changedLocked()
	s.mu.Unlock()
	s.publish(st)
	return st, nil
}

// MoveSplit recomputes the comparison split from a pointer position.
// A zero-width frame is ignored and produces no change notification.
func (s *Session) MoveSplit(pointerX, frameLeft, frameWidth float64) State {
	s.mu.Lock()
	if !s.slider.Move(pointerX, frameLeft, frameWidth) {
		st := s.snapshotLocked()
		s.mu.Unlock()
		return st
	}
	s.clearErrorLocked()
	st := s.changedLocked()
	s.mu.Unlock()
	s.publish(st)
	return st
}

// View derives the comparison view.
func (s *Session) View() compare.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	var original, working string
	if s.upload != nil {
		original = s.upload.DataURL
	}
	if !s.working.IsZero() {
		working = s.working.String()
	}
	return compare.BuildView(original, working, s.filter.CSS(), s.slider)
}

// Download is an export ready to be written to the user.
type Download struct {
	Name     string
	MIMEType string
	Data     []byte
	Filtered bool
}

// Export rasterizes the working image with the active filter. A failure is
// recorded as the session error; the working image and preview are kept.
func (s *Session) Export() (Download, error) {
	s.mu.Lock()
	working := s.working
	spec := s.filter
	var base string
	if s.upload != nil {
		base = s.upload.BaseName()
	}
	var cleared *State
	if s.errMsg != "" {
		s.clearErrorLocked()
		st := s.changedLocked()
		cleared = &st
	} else {
		s.lastActive = time.Now()
	}
	s.mu.Unlock()
	if cleared != nil {
		s.publish(*cleared)
	}

	if working.IsZero() {
		return Download{}, apperr.Validation("There is no enhanced image to download yet.")
	}

	out, err := filter.Rasterize(working, spec)
	if err != nil {
		log.Error().Err(err).Str("session", s.id).Str("filter", spec.ID).Msg("Export failed")
		s.Fail(err)
		return Download{}, err
	}

	return Download{
		Name:     filter.ExportName(base, out.Filtered),
		MIMEType: out.Payload.MIMEType,
		Data:     out.Payload.Data,
		Filtered: out.Filtered,
	}, nil
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Busy reports whether a transform is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enhancing || s.framing
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) setFlagLocked(kind Kind, on bool) {
	switch kind {
	case Enhance:
		s.enhancing = on
	case AutoFrame:
		s.framing = on
	}
}

func (s *Session) setErrorLocked(err error) {
	s.errMsg = apperr.UserMessage(err)
	s.errKind = apperr.KindOf(err)
}

func (s *Session) clearErrorLocked() {
	s.errMsg = ""
	s.errKind = apperr.KindUnknown
}

// changedLocked bumps the revision and returns the new snapshot.
func (s *Session) changedLocked() State {
	s.revision++
	s.lastActive = time.Now()
	return s.snapshotLocked()
}

func (s *Session) publish(st State) {
	if s.onChange != nil {
		s.onChange(st)
	}
}
