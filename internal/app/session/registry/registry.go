// Package registry keeps the open playback sessions, one per viewer page-view.
package registry

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many sessions")
)

// Session is the part of a playback session the registry manages.
type Session interface {
	Close() error
	IdleFor() time.Duration
}

// Factory creates the session for a new ID.
type Factory[S Session] func(sessionID string) (S, error)

// Registry manages open sessions with thread-safe access.
type Registry[S Session] struct {
	mu       sync.RWMutex
	sessions map[string]S
	limit    int
}

// New creates a registry holding at most limit sessions (0 for no limit).
func New[S Session](limit int) *Registry[S] {
	return &Registry[S]{
		sessions: make(map[string]S),
		limit:    limit,
	}
}

// Open creates a session with factory and returns its ID.
func (r *Registry[S]) Open(factory Factory[S]) (string, S, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero S
	if r.limit > 0 && len(r.sessions) >= r.limit {
		return "", zero, ErrTooManySessions
	}

	id := uuid.New().String()
	s, err := factory(id)
	if err != nil {
		return "", zero, errors.Wrap(err, "failed to create session")
	}
	r.sessions[id] = s

	zlog.Info().Msgf("session opened: session_id=%s count=%d", id, len(r.sessions))
	return id, s, nil
}

// Get retrieves a session by ID.
func (r *Registry[S]) Get(sessionID string) (S, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		var zero S
		return zero, ErrSessionNotFound
	}
	return s, nil
}

// Close removes a session and releases it.
func (r *Registry[S]) Close(sessionID string) error {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	return s.Close()
}

// CloseIdle closes sessions idle for at least maxIdle and returns how many were closed.
func (r *Registry[S]) CloseIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	var idle []S
	for id, s := range r.sessions {
		if s.IdleFor() >= maxIdle {
			idle = append(idle, s)
			delete(r.sessions, id)
			zlog.Info().Msgf("closing idle session: session_id=%s", id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		if err := s.Close(); err != nil {
			zlog.Warn().Msgf("failed to close idle session: %v", err)
		}
	}
	return len(idle)
}

// CloseAll closes every session.
func (r *Registry[S]) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]S)
	r.mu.Unlock()

	for id, s := range sessions {
		if err := s.Close(); err != nil {
			zlog.Warn().Msgf("failed to close session: session_id=%s error=%v", id, err)
		}
	}
}

// Count returns the number of open sessions.
func (r *Registry[S]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
