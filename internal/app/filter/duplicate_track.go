package filter

import (
	"context"

	"github.com/osa030/kamerplay/internal/domain/track"
)

// DuplicateTrackFilter rejects a track whose ID is already in the playlist,
// e.g. a sound that is both purchased and favorited.
type DuplicateTrackFilter struct{}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter() *DuplicateTrackFilter {
	return &DuplicateTrackFilter{}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Keeps only the first occurrence of each sound ID"
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(ctx context.Context, t track.Track, accepted []track.Track) Result {
	for _, a := range accepted {
		if a.ID == t.ID {
			return Reject(CodeDuplicateTrack)
		}
	}
	return Accept()
}
