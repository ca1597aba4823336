package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-enhance/internal/apperr"
	"github.com/fpang/photo-enhance/internal/metrics"
)

// DefaultTTL is how long an idle session survives.
const DefaultTTL = 30 * time.Minute

// Store holds live sessions in memory. Nothing survives a restart.
type Store struct {
	client Transformer
	ttl    time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	subs     map[string]map[int]chan State
	nextSub  int
}

// NewStore creates a Store whose sessions call client. ttl <= 0 means DefaultTTL.
func NewStore(client Transformer, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*Session),
		subs:     make(map[string]map[int]chan State),
	}
}

// Create starts a new empty session.
func (s *Store) Create() *Session {
	sess := New(uuid.NewString(), s.client)
	sess.onChange = s.broadcast

	s.mu.Lock()
	s.sessions[sess.id] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	log.Debug().Str("session", sess.id).Int("live_sessions", n).Msg("Session created")
	return sess
}

// Get returns the session with the given ID.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "session not found")
	}
	return sess, nil
}

// Delete removes a session and closes its subscriptions.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(id)
}

func (s *Store) deleteLocked(id string) {
	delete(s.sessions, id)
	for _, ch := range s.subs[id] {
		close(ch)
	}
	delete(s.subs, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Subscribe returns a channel of state snapshots for the session. The channel
// keeps only the latest snapshot when the reader falls behind, and is closed
// when the session is removed. Call cancel to unsubscribe.
func (s *Store) Subscribe(id string) (<-chan State, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return nil, nil, apperr.New(apperr.KindNotFound, "session not found")
	}
	if s.subs[id] == nil {
		s.subs[id] = make(map[int]chan State)
	}
	key := s.nextSub
	s.nextSub++
	ch := make(chan State, 1)
	s.subs[id][key] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id][key]; ok {
				delete(s.subs[id], key)
				close(c)
			}
		})
	}
	return ch, cancel, nil
}

func (s *Store) broadcast(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs[st.ID] {
		// Latest wins: replace an unread snapshot rather than block.
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}

// Sweep removes sessions idle since before now minus the TTL. Sessions with
// a transform in flight are kept. It returns the number removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	candidates := make(map[string]*Session, len(s.sessions))
	for id, sess := range s.sessions {
		candidates[id] = sess
	}
	s.mu.Unlock()

	var expired []string
	for id, sess := range candidates {
		if !sess.Busy() && now.Sub(sess.idleSince()) > s.ttl {
			expired = append(expired, id)
		}
	}
	if len(expired) == 0 {
		return 0
	}

	s.mu.Lock()
	for _, id := range expired {
		s.deleteLocked(id)
	}
	live := len(s.sessions)
	s.mu.Unlock()

	log.Info().Int("expired", len(expired)).Int("live_sessions", live).Msg("Expired idle sessions")
	metrics.New(metrics.Namespace).
		Metric("SessionsExpired", float64(len(expired)), metrics.UnitCount).
		Metric("SessionsLive", float64(live), metrics.UnitCount).
		Flush()
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}
