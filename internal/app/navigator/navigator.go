// Package navigator provides the playlist navigator: it keeps the ordered
// playlist of a playback session and moves through it with wraparound.
package navigator

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/kamerplay/internal/app/filter"
	"github.com/osa030/kamerplay/internal/app/playback"
	"github.com/osa030/kamerplay/internal/domain/playlist"
	"github.com/osa030/kamerplay/internal/domain/track"
)

// Loader loads a track into the transport.
type Loader interface {
	Load(ctx context.Context, t track.Track) error
}

// Navigator maintains the playlist and the current index.
type Navigator struct {
	mu sync.Mutex

	loader   Loader
	chain    *filter.Chain
	playlist playlist.Playlist
	index    int // -1 when no playlist track is selected
}

// New creates a navigator delegating loads to loader. chain decides which
// source tracks enter the playlist.
func New(loader Loader, chain *filter.Chain) *Navigator {
	if chain == nil {
		chain = filter.NewChain()
	}
	return &Navigator{
		loader: loader,
		chain:  chain,
		index:  -1,
	}
}

// BuildFrom replaces the playlist with the concatenation of lists, in order,
// keeping only tracks the filter chain accepts. The selection is reset.
func (n *Navigator) BuildFrom(ctx context.Context, lists ...[]track.Track) []track.Track {
	tracks := n.chain.Apply(ctx, lo.Flatten(lists))

	n.mu.Lock()
	defer n.mu.Unlock()

	n.playlist = playlist.Playlist{Tracks: tracks}
	n.index = -1

	zlog.Debug().Msgf("navigator: playlist rebuilt: sources=%d tracks=%d", len(lists), len(tracks))
	return n.tracksLocked()
}

// Select marks the first playlist entry with the given ID as current.
// Returns false and clears the selection when the ID is not in the playlist.
func (n *Navigator) Select(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.index = n.playlist.IndexOf(id)
	return n.index >= 0
}

// Next loads the following track, wrapping to the first.
// No-op when the playlist has fewer than two tracks.
func (n *Navigator) Next(ctx context.Context) error {
	return n.step(ctx, n.playlist.NextIndex)
}

// Previous loads the preceding track, wrapping to the last.
// No-op when the playlist has fewer than two tracks.
func (n *Navigator) Previous(ctx context.Context) error {
	return n.step(ctx, n.playlist.PreviousIndex)
}

func (n *Navigator) step(ctx context.Context, move func(int) int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.playlist.Len() <= 1 {
		return nil
	}

	target := move(n.index)
	t := n.playlist.Tracks[target]

	err := n.loader.Load(ctx, t)
	switch {
	case err == nil:
		n.index = target
	case errors.Is(err, playback.ErrLoadRejected):
		// The output refused the source, the previous track is still loaded.
	case errors.Is(err, playback.ErrPlaybackRejected):
		// A rejected start still replaced the loaded track.
		n.index = target
	}
	return err
}

// Index returns the current index, or -1.
func (n *Navigator) Index() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.index
}

// Tracks returns a copy of the playlist.
func (n *Navigator) Tracks() []track.Track {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tracksLocked()
}

// Len returns the playlist length.
func (n *Navigator) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.playlist.Len()
}

func (n *Navigator) tracksLocked() []track.Track {
	result := make([]track.Track, len(n.playlist.Tracks))
	copy(result, n.playlist.Tracks)
	return result
}
