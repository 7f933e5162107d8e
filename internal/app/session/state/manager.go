package state

import (
	"sync"
	"time"
)

// Manager manages session state with thread-safe access.
type Manager struct {
	mu sync.RWMutex

	// Session identity
	sessionID string
	viewerID  string

	// Session lifecycle
	phase        Phase
	openedAt     time.Time
	lastActivity time.Time

	now func() time.Time
}

// New creates a new state manager.
func New(sessionID, viewerID string) *Manager {
	return newWithClock(sessionID, viewerID, time.Now)
}

func newWithClock(sessionID, viewerID string, now func() time.Time) *Manager {
	t := now()
	return &Manager{
		sessionID:    sessionID,
		viewerID:     viewerID,
		phase:        PhaseMounted,
		openedAt:     t,
		lastActivity: t,
		now:          now,
	}
}

// SessionID returns the session ID.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// ViewerID returns the viewer the session belongs to.
func (m *Manager) ViewerID() string {
	return m.viewerID
}

// GetPhase returns the current session phase.
func (m *Manager) GetPhase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// SetPhase sets the session phase. A closed session stays closed.
func (m *Manager) SetPhase(p Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseClosed {
		return
	}
	m.phase = p
}

// IsClosed returns true once the session has been closed.
func (m *Manager) IsClosed() bool {
	return m.GetPhase() == PhaseClosed
}

// Touch records viewer activity.
func (m *Manager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = m.now()
}

// OpenedAt returns when the session was opened.
func (m *Manager) OpenedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.openedAt
}

// IdleFor returns the time since the last recorded activity.
func (m *Manager) IdleFor() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now().Sub(m.lastActivity)
}
