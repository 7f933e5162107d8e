// Package notification provides the event bridge between a playback
// controller and the views observing it.
package notification

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/osa030/kamerplay/internal/app/playback"
)

// Listener receives playback events.
type Listener interface {
	OnEvent(e playback.Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(e playback.Event)

// OnEvent calls f(e).
func (f ListenerFunc) OnEvent(e playback.Event) {
	f(e)
}

// subscription represents a listener registration.
type subscription struct {
	id       string
	seq      uint64
	listener Listener
}

// Manager keeps listener registrations and fans events out to them in
// subscription order.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	nextSeq       uint64
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
	closed        bool
	done          chan struct{}
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		done:          make(chan struct{}),
	}
}

// Subscribe adds a listener and returns the subscription ID.
func (m *Manager) Subscribe(l Listener) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	if m.closed {
		return id
	}
	m.nextSeq++
	m.subscriptions[id] = &subscription{
		id:       id,
		seq:      m.nextSeq,
		listener: l,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Publish delivers e to every listener. Listeners run synchronously and may
// call back into the controller.
func (m *Manager) Publish(e playback.Event) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	m.sequenceNoMu.Unlock()

	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during delivery
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].seq < subs[j].seq })
	for _, sub := range subs {
		sub.listener.OnEvent(e)
	}
}

// SequenceNo returns how many events have been published.
func (m *Manager) SequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	return m.sequenceNo
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions and ignores later ones.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.subscriptions = make(map[string]*subscription)
	close(m.done)
}

// Done is closed when the manager is closed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}
