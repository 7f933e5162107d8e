package playback_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/kamerplay/internal/app/playback"
	"github.com/osa030/kamerplay/internal/app/playback/playbacktest"
	"github.com/osa030/kamerplay/internal/app/resolver"
	"github.com/osa030/kamerplay/internal/domain/track"
)

var (
	freeTrack  = track.Track{ID: "1", Title: "Free", IsFree: true, AudioURL: "a.mp3"}
	paidTrack  = track.Track{ID: "2", Title: "Paid", Price: 2000, AudioURL: "b.mp3"}
	ownedTrack = track.Track{ID: "3", Title: "Owned", IsPurchased: true, Price: 2000, AudioURL: "c.mp3"}
)

func newController(t *testing.T) (*playback.Controller, *playbacktest.Output, *playbacktest.Recorder) {
	t.Helper()
	out := playbacktest.NewOutput()
	rec := &playbacktest.Recorder{}
	c := playback.NewController(out, resolver.New(nil), rec, playback.Config{
		PreviewLimit:  playback.DefaultPreviewLimit,
		InitialVolume: 1,
	})
	return c, out, rec
}

func TestController_LoadFreeTrack_NoCap(t *testing.T) {
	c, out, rec := newController(t)

	require.NoError(t, c.Load(context.Background(), freeTrack))

	snap := c.Snapshot()
	assert.False(t, snap.PreviewMode)
	assert.True(t, snap.IsPlaying())
	assert.Equal(t, "a.mp3", out.URL)

	out.TimeUpdate(25 * time.Second)

	snap = c.Snapshot()
	assert.True(t, snap.IsPlaying(), "cap must not trigger for free tracks")
	assert.Equal(t, 25*time.Second, snap.Position)
	assert.Zero(t, rec.Count(playback.EventPreviewEnded))
}

func TestController_LoadPaidTrack_CapAtLimit(t *testing.T) {
	c, out, rec := newController(t)

	require.NoError(t, c.Load(context.Background(), paidTrack))
	assert.True(t, c.Snapshot().PreviewMode)

	out.TimeUpdate(19 * time.Second)
	assert.True(t, c.Snapshot().IsPlaying())

	out.TimeUpdate(20 * time.Second)

	snap := c.Snapshot()
	assert.False(t, snap.IsPlaying())
	assert.Equal(t, playback.StateStopped, snap.State)
	assert.Equal(t, time.Duration(0), snap.Position)
	assert.False(t, out.IsPlaying())
	assert.Equal(t, 1, rec.Count(playback.EventPreviewEnded))
	require.NotNil(t, snap.Track, "stop keeps the loaded track")
	assert.Equal(t, "2", snap.Track.ID)
}

func TestController_PreviewPositionNeverExceedsLimit(t *testing.T) {
	for _, pos := range []time.Duration{20 * time.Second, 21 * time.Second, 90 * time.Second} {
		c, out, rec := newController(t)
		require.NoError(t, c.Load(context.Background(), paidTrack))

		out.TimeUpdate(pos)

		for _, e := range rec.Events() {
			assert.LessOrEqual(t, e.Snapshot.Position, playback.DefaultPreviewLimit)
		}
		assert.Equal(t, 1, rec.Count(playback.EventPreviewEnded))
	}
}

func TestController_OwnedTrack_NeverCapped(t *testing.T) {
	c, out, rec := newController(t)
	require.NoError(t, c.Load(context.Background(), ownedTrack))

	out.Metadata(10 * time.Minute)
	out.TimeUpdate(5 * time.Minute)

	assert.True(t, c.Snapshot().IsPlaying())
	assert.Zero(t, rec.Count(playback.EventPreviewEnded))
}

func TestController_PreviewModeFrozenAtLoad(t *testing.T) {
	c, out, _ := newController(t)
	require.NoError(t, c.Load(context.Background(), paidTrack))

	// A purchase completing elsewhere arrives as a fresh record for the same ID.
	purchased := paidTrack
	purchased.IsPurchased = true
	require.NoError(t, c.Load(context.Background(), purchased))
	require.NoError(t, c.Load(context.Background(), purchased))

	assert.True(t, c.Snapshot().PreviewMode)
	out.TimeUpdate(20 * time.Second)
	assert.Equal(t, playback.StateStopped, c.Snapshot().State)
}

func TestController_LoadSameTrackToggles(t *testing.T) {
	c, out, _ := newController(t)
	require.NoError(t, c.Load(context.Background(), freeTrack))
	out.TimeUpdate(12 * time.Second)

	require.NoError(t, c.Load(context.Background(), freeTrack))
	snap := c.Snapshot()
	assert.Equal(t, playback.StatePaused, snap.State)
	assert.Equal(t, 12*time.Second, snap.Position, "toggle must not rewind")
	assert.Len(t, out.Loads, 1)

	require.NoError(t, c.Load(context.Background(), freeTrack))
	snap = c.Snapshot()
	assert.Equal(t, playback.StatePlaying, snap.State)
	assert.Equal(t, 12*time.Second, snap.Position)
}

func TestController_LoadNoPlayableSource(t *testing.T) {
	c, out, rec := newController(t)
	require.NoError(t, c.Load(context.Background(), freeTrack))

	err := c.Load(context.Background(), track.Track{ID: "9", IsFree: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, playback.ErrNoPlayableSource))

	snap := c.Snapshot()
	require.NotNil(t, snap.Track)
	assert.Equal(t, "1", snap.Track.ID, "previous track stays loaded")
	assert.True(t, snap.IsPlaying())
	assert.Len(t, out.Loads, 1)
	assert.Equal(t, 1, rec.Count(playback.EventNoPlayableSource))
}

func TestController_LoadNoPlayableSource_FromEmpty(t *testing.T) {
	c, _, _ := newController(t)

	err := c.Load(context.Background(), track.Track{ID: "9"})
	assert.True(t, errors.Is(err, playback.ErrNoPlayableSource))

	_, ok := c.CurrentTrack()
	assert.False(t, ok)
	assert.Equal(t, playback.StateIdle, c.Snapshot().State)
}

func TestController_PlaybackRejected(t *testing.T) {
	c, out, rec := newController(t)
	out.PlayErr = errors.New("autoplay blocked")

	err := c.Load(context.Background(), freeTrack)
	require.Error(t, err)
	assert.True(t, errors.Is(err, playback.ErrPlaybackRejected))

	snap := c.Snapshot()
	assert.Equal(t, playback.StateIdle, snap.State)
	require.NotNil(t, snap.Track, "track kept so the viewer can retry")
	assert.Equal(t, 1, rec.Count(playback.EventPlaybackRejected))

	out.PlayErr = nil
	require.NoError(t, c.PlayPause())
	assert.Equal(t, playback.StatePlaying, c.Snapshot().State)
}

func TestController_LoadRejectedByOutput(t *testing.T) {
	t.Run("nothing loaded", func(t *testing.T) {
		c, out, rec := newController(t)
		out.LoadErr = errors.New("decode failure")

		err := c.Load(context.Background(), freeTrack)
		assert.True(t, errors.Is(err, playback.ErrPlaybackRejected))
		assert.True(t, errors.Is(err, playback.ErrLoadRejected))
		assert.Equal(t, playback.StateIdle, c.Snapshot().State)
		_, ok := c.CurrentTrack()
		assert.False(t, ok)
		assert.Equal(t, 1, rec.Count(playback.EventPlaybackRejected))
	})

	t.Run("previous track kept", func(t *testing.T) {
		c, out, _ := newController(t)
		require.NoError(t, c.Load(context.Background(), freeTrack))
		out.LoadErr = errors.New("decode failure")

		err := c.Load(context.Background(), paidTrack)
		assert.True(t, errors.Is(err, playback.ErrLoadRejected))

		snap := c.Snapshot()
		require.NotNil(t, snap.Track)
		assert.Equal(t, "1", snap.Track.ID)
		assert.False(t, snap.PreviewMode)
		assert.Equal(t, playback.StatePlaying, snap.State)

		out.TimeUpdate(5 * time.Second)
		assert.Equal(t, 5*time.Second, c.Snapshot().Position, "previous source still reports")
	})

	t.Run("retry loads the rejected track", func(t *testing.T) {
		c, out, rec := newController(t)
		require.NoError(t, c.Load(context.Background(), freeTrack))
		out.LoadErr = errors.New("decode failure")
		require.Error(t, c.Load(context.Background(), paidTrack))

		out.LoadErr = nil
		require.NoError(t, c.Load(context.Background(), paidTrack))

		assert.Equal(t, "b.mp3", out.URL)
		assert.Equal(t, []string{"a.mp3", "b.mp3", "b.mp3"}, out.Loads)
		assert.True(t, c.Snapshot().PreviewMode)

		out.TimeUpdate(25 * time.Second)

		snap := c.Snapshot()
		assert.Equal(t, playback.StateStopped, snap.State)
		assert.Equal(t, 1, rec.Count(playback.EventPreviewEnded))
	})
}

func TestController_PlayPause(t *testing.T) {
	t.Run("no track is a no-op", func(t *testing.T) {
		c, out, rec := newController(t)
		require.NoError(t, c.PlayPause())
		assert.Zero(t, out.PlayCalls)
		assert.Empty(t, rec.Events())
	})

	t.Run("toggles", func(t *testing.T) {
		c, out, _ := newController(t)
		require.NoError(t, c.Load(context.Background(), freeTrack))

		require.NoError(t, c.PlayPause())
		assert.False(t, c.Snapshot().IsPlaying())
		assert.False(t, out.IsPlaying())

		require.NoError(t, c.PlayPause())
		assert.True(t, c.Snapshot().IsPlaying())
		assert.True(t, out.IsPlaying())
	})
}

func TestController_Stop(t *testing.T) {
	c, out, _ := newController(t)
	require.NoError(t, c.Load(context.Background(), freeTrack))
	out.TimeUpdate(42 * time.Second)

	c.Stop()

	snap := c.Snapshot()
	assert.Equal(t, playback.StateStopped, snap.State)
	assert.Equal(t, time.Duration(0), snap.Position)
	require.NotNil(t, snap.Track)
	assert.Equal(t, time.Duration(0), out.Position)

	// Late ticks after stop are ignored.
	out.TimeUpdate(43 * time.Second)
	assert.Equal(t, time.Duration(0), c.Snapshot().Position)

	require.NoError(t, c.PlayPause())
	assert.True(t, c.Snapshot().IsPlaying())
}

func TestController_Seek(t *testing.T) {
	t.Run("clamped to duration", func(t *testing.T) {
		c, out, _ := newController(t)
		require.NoError(t, c.Load(context.Background(), freeTrack))
		out.Metadata(3 * time.Minute)

		c.Seek(5 * time.Minute)
		assert.Equal(t, 3*time.Minute, c.Snapshot().Position)

		c.Seek(-time.Second)
		assert.Equal(t, time.Duration(0), c.Snapshot().Position)

		c.Seek(time.Minute)
		assert.Equal(t, time.Minute, c.Snapshot().Position)
		assert.Equal(t, time.Minute, out.Position)
	})

	t.Run("unknown duration only clamps below", func(t *testing.T) {
		c, _, _ := newController(t)
		require.NoError(t, c.Load(context.Background(), freeTrack))

		c.Seek(7 * time.Minute)
		assert.Equal(t, 7*time.Minute, c.Snapshot().Position)
	})

	t.Run("no-op in preview mode", func(t *testing.T) {
		c, out, _ := newController(t)
		require.NoError(t, c.Load(context.Background(), paidTrack))
		out.TimeUpdate(5 * time.Second)
		seeks := len(out.Seeks)

		c.Seek(15 * time.Second)

		assert.Equal(t, 5*time.Second, c.Snapshot().Position)
		assert.Len(t, out.Seeks, seeks)
	})
}

func TestController_SetVolume(t *testing.T) {
	c, out, _ := newController(t)

	c.SetVolume(1.5)
	assert.Equal(t, 1.0, c.Snapshot().Volume)

	c.SetVolume(-0.2)
	assert.Equal(t, 0.0, c.Snapshot().Volume)

	c.SetVolume(0.4)
	require.NoError(t, c.Load(context.Background(), freeTrack))
	require.NoError(t, c.Load(context.Background(), ownedTrack))
	assert.Equal(t, 0.4, c.Snapshot().Volume, "volume persists across tracks")
	assert.Equal(t, 0.4, out.Volume)
}

func TestController_NaturalEnd(t *testing.T) {
	c, out, rec := newController(t)
	require.NoError(t, c.Load(context.Background(), freeTrack))
	out.Metadata(2 * time.Minute)

	out.End()

	snap := c.Snapshot()
	assert.Equal(t, playback.StateIdle, snap.State)
	assert.False(t, snap.IsPlaying())
	assert.Equal(t, 1, rec.Count(playback.EventTrackEnded))
	assert.Zero(t, rec.Count(playback.EventPreviewEnded))

	// Replaying after the end starts from the top.
	require.NoError(t, c.PlayPause())
	assert.Equal(t, time.Duration(0), c.Snapshot().Position)
}

func TestController_PreviewEndOfMediaDoesNotAdvance(t *testing.T) {
	c, out, rec := newController(t)
	require.NoError(t, c.Load(context.Background(), paidTrack))

	out.End()

	assert.Equal(t, playback.StateStopped, c.Snapshot().State)
	assert.Equal(t, 1, rec.Count(playback.EventPreviewEnded))
	assert.Zero(t, rec.Count(playback.EventTrackEnded))
}

func TestController_StaleCallbacksIgnored(t *testing.T) {
	c, out, rec := newController(t)
	require.NoError(t, c.Load(context.Background(), paidTrack))
	require.NoError(t, c.Load(context.Background(), freeTrack))

	stale := out.Listener(0)
	require.NotNil(t, stale)
	stale.OnTimeUpdate(30 * time.Second)
	stale.OnEnded()

	snap := c.Snapshot()
	assert.Equal(t, "1", snap.Track.ID)
	assert.True(t, snap.IsPlaying())
	assert.Equal(t, time.Duration(0), snap.Position)
	assert.Zero(t, rec.Count(playback.EventPreviewEnded))
	assert.Zero(t, rec.Count(playback.EventTrackEnded))
}

func TestController_Close(t *testing.T) {
	c, out, rec := newController(t)
	require.NoError(t, c.Load(context.Background(), freeTrack))
	listener := out.Listener(0)

	require.NoError(t, c.Close())
	assert.True(t, out.Closed)
	assert.False(t, out.IsPlaying())

	rec.Reset()
	listener.OnEnded()
	assert.Empty(t, rec.Events())

	assert.True(t, errors.Is(c.Load(context.Background(), ownedTrack), playback.ErrClosed))
	assert.NoError(t, c.Close(), "close is idempotent")
}

func TestController_ListenerMayCallBack(t *testing.T) {
	out := playbacktest.NewOutput()
	var c *playback.Controller
	c = playback.NewController(out, resolver.New(nil), playback.NotifierFunc(func(e playback.Event) {
		if e.Type == playback.EventTrackEnded {
			_ = c.Load(context.Background(), ownedTrack)
		}
	}), playback.Config{InitialVolume: 1})

	require.NoError(t, c.Load(context.Background(), freeTrack))
	out.End()

	assert.Equal(t, "3", c.Snapshot().Track.ID)
	assert.True(t, c.Snapshot().IsPlaying())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", playback.StateIdle.String())
	assert.Equal(t, "stopped", playback.StateStopped.String())
	assert.Equal(t, "unknown", playback.State(99).String())
	assert.Equal(t, "preview_ended", playback.EventPreviewEnded.String())
}
