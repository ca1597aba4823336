package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-enhance/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if s.originAllowed(origin) {
				return true
			}
			// Same-origin pages are always allowed.
			return strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://") == r.Host
		},
	}
}

// handleEvents streams session snapshots over a websocket. The current state
// is sent first, then one message per change. Slow clients only ever see the
// latest state.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := s.store.Get(id)
	if err != nil {
		respondError(w, err, nil)
		return
	}
	updates, cancel, err := s.store.Subscribe(id)
	if err != nil {
		respondError(w, err, nil)
		return
	}

	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		log.Warn().Err(err).Str("session", id).Msg("WebSocket upgrade failed")
		return
	}
	log.Debug().Str("session", id).Msg("WebSocket client connected")

	done := make(chan struct{})
	go readPump(conn, done)
	writePump(conn, sess.Snapshot(), updates, done)
	cancel()
	log.Debug().Str("session", id).Msg("WebSocket client disconnected")
}

// readPump discards client messages and closes done when the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("WebSocket read error")
			}
			return
		}
	}
}

// writePump sends the initial snapshot, then every update until the
// subscription closes or the peer disconnects.
func writePump(conn *websocket.Conn, initial session.State, updates <-chan session.State, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	send := func(st session.State) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(st); err != nil {
			log.Debug().Err(err).Msg("WebSocket write error")
			return false
		}
		return true
	}

	if !send(initial) {
		return
	}
	for {
		select {
		case st, ok := <-updates:
			if !ok {
				// Session deleted or expired.
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if st.Revision <= initial.Revision {
				continue
			}
			if !send(st) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
