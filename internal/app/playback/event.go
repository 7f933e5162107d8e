package playback

import (
	"time"

	"github.com/osa030/kamerplay/internal/domain/track"
)

// EventType represents a playback event type.
type EventType int

const (
	EventTrackLoaded      EventType = iota // A new track was loaded into the output
	EventLoadedMetadata                    // Output reported the media duration
	EventTimeUpdate                        // Output reported a new position
	EventStateChanged                      // Transport state changed
	EventPreviewEnded                      // Preview cap reached, playback stopped
	EventTrackEnded                        // Full-access track finished naturally
	EventPlaybackRejected                  // Output refused to load or play
	EventNoPlayableSource                  // Load refused, no usable URL
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackLoaded:
		return "track_loaded"
	case EventLoadedMetadata:
		return "loaded_metadata"
	case EventTimeUpdate:
		return "time_update"
	case EventStateChanged:
		return "state_changed"
	case EventPreviewEnded:
		return "preview_ended"
	case EventTrackEnded:
		return "track_ended"
	case EventPlaybackRejected:
		return "playback_rejected"
	case EventNoPlayableSource:
		return "no_playable_source"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type     EventType
	Snapshot Snapshot
	Err      error // Set for EventPlaybackRejected and EventNoPlayableSource
}

// Snapshot is a read-only view of the transport.
type Snapshot struct {
	Track       *track.Track // Loaded track (nil if none)
	State       State
	PreviewMode bool
	Position    time.Duration
	Duration    time.Duration
	Volume      float64
}

// IsPlaying reports whether the output is playing.
func (s Snapshot) IsPlaying() bool {
	return s.State == StatePlaying
}

// Notifier receives events published by the controller.
type Notifier interface {
	Publish(e Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(e Event)

// Publish calls f(e).
func (f NotifierFunc) Publish(e Event) {
	f(e)
}
