package session

import (
	"time"

	"github.com/fpang/photo-enhance/internal/filehandler"
)

// State is a point-in-time copy of a session, shaped for JSON clients.
type State struct {
	ID         string `json:"id"`
	Revision   uint64 `json:"revision"`
	Generation uint64 `json:"generation"`

	Original *OriginalInfo `json:"original,omitempty"`

	// Working is the working image as a data URL, or "" when there is none.
	Working string `json:"working,omitempty"`

	Enhancing    bool `json:"enhancing"`
	Framing      bool `json:"framing"`
	CanEnhance   bool `json:"canEnhance"`
	CanAutoFrame bool `json:"canAutoFrame"`
	CanExport    bool `json:"canExport"`

	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`

	FilterID  string  `json:"filter"`
	FilterCSS string  `json:"filterCss"`
	Split     float64 `json:"split"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// OriginalInfo describes the uploaded original.
type OriginalInfo struct {
	Name      string                     `json:"name"`
	MIMEType  string                     `json:"mimeType"`
	SizeBytes int                        `json:"sizeBytes"`
	DataURL   string                     `json:"dataUrl"`
	Metadata  *filehandler.ImageMetadata `json:"metadata,omitempty"`
}

// Busy reports whether a transform is in flight.
func (st State) Busy() bool {
	return st.Enhancing || st.Framing
}

func (s *Session) snapshotLocked() State {
	busy := s.enhancing || s.framing
	st := State{
		ID:           s.id,
		Revision:     s.revision,
		Generation:   s.generation,
		Enhancing:    s.enhancing,
		Framing:      s.framing,
		CanEnhance:   s.upload != nil && !busy,
		CanAutoFrame: !s.working.IsZero() && !busy,
		CanExport:    !s.working.IsZero() && !busy,
		Error:        s.errMsg,
		FilterID:     s.filter.ID,
		FilterCSS:    s.filter.CSS(),
		Split:        s.slider.Position(),
		UpdatedAt:    s.lastActive,
	}
	if s.errMsg != "" {
		st.ErrorKind = s.errKind.String()
	}
	if s.upload != nil {
		st.Original = &OriginalInfo{
			Name:      s.upload.Name,
			MIMEType:  s.upload.MIMEType,
			SizeBytes: len(s.upload.Data),
			DataURL:   s.upload.DataURL,
			Metadata:  s.upload.Metadata,
		}
	}
	if !s.working.IsZero() {
		st.Working = s.working.String()
	}
	return st
}
