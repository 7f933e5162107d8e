// Package playbacktest provides a synchronous fake output for tests.
package playbacktest

import (
	"sync"
	"time"

	"github.com/osa030/kamerplay/internal/app/playback"
)

// Output is a fake playback.Output. Media events are fired only by the
// test helpers, never from inside the Output methods.
type Output struct {
	mu sync.Mutex

	listener  playback.OutputListener
	listeners []playback.OutputListener

	URL      string
	Loads    []string
	Playing  bool
	Position time.Duration
	Volume   float64
	Closed   bool

	PlayCalls  int
	PauseCalls int
	Seeks      []time.Duration

	LoadErr error
	PlayErr error
}

// NewOutput creates a fake output.
func NewOutput() *Output {
	return &Output{}
}

// Load records url and keeps the listener for later events.
func (o *Output) Load(url string, listener playback.OutputListener) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.Loads = append(o.Loads, url)
	if o.LoadErr != nil {
		return o.LoadErr
	}
	o.URL = url
	o.listener = listener
	o.listeners = append(o.listeners, listener)
	o.Position = 0
	o.Playing = false
	return nil
}

// Play marks the output as playing.
func (o *Output) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.PlayCalls++
	if o.PlayErr != nil {
		return o.PlayErr
	}
	o.Playing = true
	return nil
}

// Pause marks the output as paused.
func (o *Output) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.PauseCalls++
	o.Playing = false
}

// Seek records the position.
func (o *Output) Seek(position time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Seeks = append(o.Seeks, position)
	o.Position = position
}

// SetVolume records the volume.
func (o *Output) SetVolume(volume float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Volume = volume
}

// Close marks the output closed and detaches the listener.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Closed = true
	o.listener = nil
	return nil
}

// IsPlaying reports whether Play was the last transport call.
func (o *Output) IsPlaying() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Playing
}

// Metadata fires OnLoadedMetadata on the current listener.
func (o *Output) Metadata(duration time.Duration) {
	if l := o.current(); l != nil {
		l.OnLoadedMetadata(duration)
	}
}

// TimeUpdate fires OnTimeUpdate on the current listener.
func (o *Output) TimeUpdate(position time.Duration) {
	o.mu.Lock()
	o.Position = position
	o.mu.Unlock()

	if l := o.current(); l != nil {
		l.OnTimeUpdate(position)
	}
}

// End fires OnEnded on the current listener.
func (o *Output) End() {
	if l := o.current(); l != nil {
		l.OnEnded()
	}
}

// Listener returns the listener registered by the n-th successful load.
// Used to simulate late events from a replaced source.
func (o *Output) Listener(n int) playback.OutputListener {
	o.mu.Lock()
	defer o.mu.Unlock()
	if n < 0 || n >= len(o.listeners) {
		return nil
	}
	return o.listeners[n]
}

func (o *Output) current() playback.OutputListener {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.listener
}

// Recorder collects published events.
type Recorder struct {
	mu     sync.Mutex
	events []playback.Event
}

// Publish records e.
func (r *Recorder) Publish(e playback.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []playback.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]playback.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []playback.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]playback.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t playback.EventType) int {
	n := 0
	for _, got := range r.Types() {
		if got == t {
			n++
		}
	}
	return n
}

// Reset clears the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
