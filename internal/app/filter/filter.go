// Package filter provides the filter chain that decides which tracks may
// enter a playlist.
package filter

import (
	"context"

	"github.com/osa030/kamerplay/internal/domain/track"
)

// Result codes
const (
	CodeNoPlayableSource = "no_playable_source"
	CodeDuplicateTrack   = "duplicate_track"
)

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "no_playable_source", "duplicate_track"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for playlist filters.
type Filter interface {
	// Name returns the filter name (used in logs).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// Check decides whether t may follow the already accepted tracks.
	Check(ctx context.Context, t track.Track, accepted []track.Track) Result
}
