package notification

import (
	"sync"

	"github.com/osa030/kamerplay/internal/app/playback"
)

// Stream is a bounded queue listener for remote subscribers. OnEvent never
// blocks the controller. When the queue is full, time updates are dropped,
// oldest first; every other event is always queued.
type Stream struct {
	mu     sync.Mutex
	queue  []playback.Event
	buffer int
	ready  chan struct{}
}

// NewStream creates a stream holding up to buffer events.
func NewStream(buffer int) *Stream {
	if buffer < 1 {
		buffer = 1
	}
	return &Stream{
		queue:  make([]playback.Event, 0, buffer),
		buffer: buffer,
		ready:  make(chan struct{}, 1),
	}
}

// OnEvent enqueues e without blocking.
func (s *Stream) OnEvent(e playback.Event) {
	s.mu.Lock()
	if len(s.queue) >= s.buffer {
		if e.Type == playback.EventTimeUpdate {
			s.mu.Unlock()
			return
		}
		s.evictTimeUpdateLocked()
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// evictTimeUpdateLocked removes the oldest queued time update, if any.
func (s *Stream) evictTimeUpdateLocked() {
	for i, queued := range s.queue {
		if queued.Type == playback.EventTimeUpdate {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// Ready is signalled after OnEvent queues an event. Call Drain on receive.
func (s *Stream) Ready() <-chan struct{} {
	return s.ready
}

// Drain returns the queued events in order and empties the queue.
func (s *Stream) Drain() []playback.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	out := s.queue
	s.queue = make([]playback.Event, 0, s.buffer)
	return out
}

// Len returns the number of queued events.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
