package navigator

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/kamerplay/internal/app/filter"
	"github.com/osa030/kamerplay/internal/app/playback"
	"github.com/osa030/kamerplay/internal/app/playback/playbacktest"
	"github.com/osa030/kamerplay/internal/app/resolver"
	"github.com/osa030/kamerplay/internal/domain/track"
)

// mockLoader records loads and returns a scripted error.
type mockLoader struct {
	loaded []string
	err    error
}

func (m *mockLoader) Load(ctx context.Context, t track.Track) error {
	m.loaded = append(m.loaded, t.ID)
	return m.err
}

func tracks(ids ...string) []track.Track {
	out := make([]track.Track, len(ids))
	for i, id := range ids {
		out[i] = track.Track{ID: id, IsFree: true, AudioURL: id + ".mp3"}
	}
	return out
}

func playableChain() *filter.Chain {
	return filter.NewChain(filter.NewPlayableSourceFilter(resolver.New(nil)))
}

func TestNavigator_BuildFrom(t *testing.T) {
	purchased := tracks("p1", "p2")
	favorites := append(tracks("f1"), track.Track{ID: "nourl", IsFree: true}, track.Track{ID: "p1", IsFree: true, AudioURL: "p1.mp3"})

	t.Run("order preserved, unplayable dropped, duplicates kept", func(t *testing.T) {
		n := New(&mockLoader{}, playableChain())
		got := n.BuildFrom(context.Background(), purchased, favorites)
		assert.Equal(t, []string{"p1", "p2", "f1", "p1"}, ids(got))
		assert.Equal(t, -1, n.Index())
	})

	t.Run("dedupe when configured", func(t *testing.T) {
		chain := playableChain()
		chain.Add(filter.NewDuplicateTrackFilter())
		n := New(&mockLoader{}, chain)
		got := n.BuildFrom(context.Background(), purchased, favorites)
		assert.Equal(t, []string{"p1", "p2", "f1"}, ids(got))
	})
}

func TestNavigator_NextPrevious(t *testing.T) {
	loader := &mockLoader{}
	n := New(loader, playableChain())
	n.BuildFrom(context.Background(), tracks("t1", "t2", "t3"))
	require.True(t, n.Select("t3"))

	require.NoError(t, n.Next(context.Background()))
	assert.Equal(t, 0, n.Index())
	assert.Equal(t, []string{"t1"}, loader.loaded)

	require.NoError(t, n.Previous(context.Background()))
	assert.Equal(t, 2, n.Index())
	assert.Equal(t, []string{"t1", "t3"}, loader.loaded)
}

func TestNavigator_WraparoundClosure(t *testing.T) {
	for start := 0; start < 4; start++ {
		n := New(&mockLoader{}, playableChain())
		list := n.BuildFrom(context.Background(), tracks("a", "b", "c", "d"))
		require.True(t, n.Select(list[start].ID))

		for i := 0; i < len(list); i++ {
			require.NoError(t, n.Next(context.Background()))
		}
		assert.Equal(t, start, n.Index())

		require.NoError(t, n.Next(context.Background()))
		require.NoError(t, n.Previous(context.Background()))
		assert.Equal(t, start, n.Index())
	}
}

func TestNavigator_NoOps(t *testing.T) {
	t.Run("empty playlist", func(t *testing.T) {
		loader := &mockLoader{}
		n := New(loader, nil)
		assert.NoError(t, n.Next(context.Background()))
		assert.NoError(t, n.Previous(context.Background()))
		assert.Empty(t, loader.loaded)
	})

	t.Run("single track", func(t *testing.T) {
		loader := &mockLoader{}
		n := New(loader, nil)
		n.BuildFrom(context.Background(), tracks("only"))
		n.Select("only")
		assert.NoError(t, n.Next(context.Background()))
		assert.Empty(t, loader.loaded)
		assert.Equal(t, 0, n.Index())
	})
}

func TestNavigator_UnselectedStart(t *testing.T) {
	loader := &mockLoader{}
	n := New(loader, nil)
	n.BuildFrom(context.Background(), tracks("a", "b", "c"))
	assert.False(t, n.Select("elsewhere"))

	require.NoError(t, n.Previous(context.Background()))
	assert.Equal(t, 2, n.Index())

	n.Select("elsewhere")
	require.NoError(t, n.Next(context.Background()))
	assert.Equal(t, 0, n.Index())
}

func TestNavigator_LoadErrors(t *testing.T) {
	t.Run("no playable source keeps index", func(t *testing.T) {
		loader := &mockLoader{err: errors.Wrap(resolver.ErrNoPlayableSource, "x")}
		n := New(loader, nil)
		n.BuildFrom(context.Background(), tracks("a", "b"))
		n.Select("a")

		err := n.Next(context.Background())
		assert.True(t, errors.Is(err, resolver.ErrNoPlayableSource))
		assert.Equal(t, 0, n.Index())
	})

	t.Run("rejected playback moves index", func(t *testing.T) {
		loader := &mockLoader{err: errors.Mark(errors.New("blocked"), playback.ErrPlaybackRejected)}
		n := New(loader, nil)
		n.BuildFrom(context.Background(), tracks("a", "b"))
		n.Select("a")

		err := n.Next(context.Background())
		assert.True(t, errors.Is(err, playback.ErrPlaybackRejected))
		assert.Equal(t, 1, n.Index())
	})

	t.Run("output refusing the source keeps index", func(t *testing.T) {
		out := playbacktest.NewOutput()
		c := playback.NewController(out, resolver.New(nil), nil, playback.Config{InitialVolume: 1})
		n := New(c, playableChain())
		list := n.BuildFrom(context.Background(), tracks("a", "b"))
		require.NoError(t, c.Load(context.Background(), list[0]))
		require.True(t, n.Select("a"))

		out.LoadErr = errors.New("decode failure")
		err := n.Next(context.Background())
		assert.True(t, errors.Is(err, playback.ErrLoadRejected))
		assert.Equal(t, 0, n.Index())
		assert.Equal(t, "a", c.Snapshot().Track.ID)

		out.LoadErr = nil
		require.NoError(t, n.Next(context.Background()))
		assert.Equal(t, 1, n.Index())
		assert.Equal(t, "b.mp3", out.URL)
	})
}

func TestNavigator_WithController(t *testing.T) {
	out := playbacktest.NewOutput()
	c := playback.NewController(out, resolver.New(nil), nil, playback.Config{InitialVolume: 1})
	n := New(c, playableChain())

	list := n.BuildFrom(context.Background(), tracks("T1", "T2", "T3"))
	require.NoError(t, c.Load(context.Background(), list[2]))
	require.True(t, n.Select("T3"))

	require.NoError(t, n.Next(context.Background()))

	assert.Equal(t, 0, n.Index())
	assert.Equal(t, "T1", c.Snapshot().Track.ID)
	assert.Equal(t, "T1.mp3", out.URL)
}

func ids(list []track.Track) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.ID
	}
	return out
}
