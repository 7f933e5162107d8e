package playback

import "time"

// Output is the host media primitive the controller drives: one source at a
// time, play/pause, position and volume.
//
// Implementations must not call the OutputListener from inside their own
// methods; callbacks are delivered from the output's own goroutine or event loop.
type Output interface {
	// Load points the output at url. Events for this source go to listener.
	Load(url string, listener OutputListener) error
	Play() error
	Pause()
	Seek(position time.Duration)
	SetVolume(volume float64)
	// Close releases the output and detaches the listener.
	Close() error
}

// OutputListener receives media events for one loaded source.
type OutputListener interface {
	OnLoadedMetadata(duration time.Duration)
	OnTimeUpdate(position time.Duration)
	OnEnded()
}
