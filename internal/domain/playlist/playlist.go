// Package playlist provides the Playlist domain entity.
package playlist

import (
	"time"

	"github.com/osa030/kamerplay/internal/domain/track"
)

// Playlist is an ordered, navigable sequence of tracks. It is never persisted.
type Playlist struct {
	Tracks []track.Track
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.Tracks)
}

// TrackIDs returns all track IDs in order.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// IndexOf returns the first index of the track with the given ID, or -1.
func (p *Playlist) IndexOf(id string) int {
	for i, t := range p.Tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// TotalDuration returns the sum of known track durations.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range p.Tracks {
		total += t.Duration
	}
	return total
}

// NextIndex returns the index after from, wrapping around.
// An unselected index (negative) moves to the first track.
func (p *Playlist) NextIndex(from int) int {
	n := len(p.Tracks)
	if n == 0 {
		return -1
	}
	if from < 0 {
		return 0
	}
	return (from + 1) % n
}

// PreviousIndex returns the index before from, wrapping around.
// An unselected index (negative) moves to the last track.
func (p *Playlist) PreviousIndex(from int) int {
	n := len(p.Tracks)
	if n == 0 {
		return -1
	}
	if from < 0 {
		return n - 1
	}
	return (from - 1 + n) % n
}
