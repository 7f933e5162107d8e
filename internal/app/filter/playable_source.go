package filter

import (
	"context"

	"github.com/osa030/kamerplay/internal/app/resolver"
	"github.com/osa030/kamerplay/internal/domain/track"
)

// SourceResolver resolves a track into a playable source.
type SourceResolver interface {
	Resolve(ctx context.Context, t track.Track) (resolver.Source, error)
}

// PlayableSourceFilter rejects tracks whose URL candidates do not resolve.
type PlayableSourceFilter struct {
	resolver SourceResolver
}

// NewPlayableSourceFilter creates a new playable source filter.
func NewPlayableSourceFilter(r SourceResolver) *PlayableSourceFilter {
	return &PlayableSourceFilter{resolver: r}
}

// Name returns the filter name.
func (f *PlayableSourceFilter) Name() string {
	return "playable_source_filter"
}

// Description returns the filter description.
func (f *PlayableSourceFilter) Description() string {
	return "Drops tracks without a resolvable audio URL"
}

// Check checks that the track resolves.
func (f *PlayableSourceFilter) Check(ctx context.Context, t track.Track, accepted []track.Track) Result {
	if _, err := f.resolver.Resolve(ctx, t); err != nil {
		return Reject(CodeNoPlayableSource)
	}
	return Accept()
}
