package filter

import (
	"context"

	"github.com/osa030/kamerplay/internal/domain/track"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain(filters ...Filter) *Chain {
	c := &Chain{
		filters: make([]Filter, 0, len(filters)),
	}
	for _, f := range filters {
		c.Add(f)
	}
	return c
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the track.
func (c *Chain) Execute(ctx context.Context, t track.Track, accepted []track.Track) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, t, accepted)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Apply runs the chain over tracks in order and returns the accepted ones.
func (c *Chain) Apply(ctx context.Context, tracks []track.Track) []track.Track {
	accepted := make([]track.Track, 0, len(tracks))
	for _, t := range tracks {
		if c.Execute(ctx, t, accepted).Accepted {
			accepted = append(accepted, t)
		}
	}
	return accepted
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
