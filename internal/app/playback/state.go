// Package playback provides the transport controller that drives a single
// audio output and enforces the preview cap.
package playback

// State represents the transport state.
type State int

const (
	StateIdle    State = iota // No track loaded, or a full-access track ended
	StateLoading              // Source resolved, output loading
	StatePlaying              // Output is playing
	StatePaused               // Output is paused
	StateStopped              // Stopped explicitly or by the preview cap
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
