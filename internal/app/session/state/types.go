// Package state provides playback session state management.
package state

// Phase represents the session lifecycle phase.
type Phase int

const (
	PhaseMounted Phase = iota // Session open, no output acquired yet
	PhaseActive               // Output acquired by a play action
	PhaseClosed               // Output and object URLs released
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseMounted:
		return "mounted"
	case PhaseActive:
		return "active"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}
