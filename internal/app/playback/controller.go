package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/kamerplay/internal/app/resolver"
	"github.com/osa030/kamerplay/internal/domain/track"
)

// DefaultPreviewLimit is the playback cap for paid tracks the viewer does not own.
const DefaultPreviewLimit = 20 * time.Second

// Errors
var (
	ErrNoPlayableSource = resolver.ErrNoPlayableSource
	ErrPlaybackRejected = errors.New("playback rejected")
	ErrLoadRejected     = errors.New("load rejected") // always also ErrPlaybackRejected
	ErrClosed           = errors.New("controller closed")
)

// Config holds controller configuration.
type Config struct {
	PreviewLimit  time.Duration // Cap for preview-limited tracks
	InitialVolume float64       // Volume applied before the first load (0.0-1.0)
}

// Resolver resolves a track into a playable source.
type Resolver interface {
	Resolve(ctx context.Context, t track.Track) (resolver.Source, error)
}

// Controller owns the single active output of a playback session.
type Controller struct {
	mu sync.Mutex

	output   Output
	resolver Resolver
	notifier Notifier
	config   Config

	// Loaded track state
	currentTrack *track.Track
	source       resolver.Source
	state        State
	previewMode  bool // Frozen at load time
	position     time.Duration
	duration     time.Duration

	// Persists across track changes
	volume float64

	// Bumped on every load and on close; callbacks from older loads are dropped
	generation uint64
	closed     bool
}

// NewController creates a controller driving output.
func NewController(output Output, res Resolver, notifier Notifier, config Config) *Controller {
	if config.PreviewLimit <= 0 {
		config.PreviewLimit = DefaultPreviewLimit
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Event) {})
	}

	volume := clampVolume(config.InitialVolume)
	output.SetVolume(volume)

	return &Controller{
		output:   output,
		resolver: res,
		notifier: notifier,
		config:   config,
		state:    StateIdle,
		volume:   volume,
	}
}

// Load loads t and starts playback. Loading the track that is already loaded
// toggles play/pause instead of reloading it.
func (c *Controller) Load(ctx context.Context, t track.Track) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	if c.currentTrack != nil && c.currentTrack.ID == t.ID {
		events, err := c.togglePlayLocked()
		c.mu.Unlock()
		c.publish(events)
		return err
	}

	src, err := c.resolver.Resolve(ctx, t)
	if err != nil {
		zlog.Warn().Msgf("playback: no playable source: track=%s", t.ID)
		e := Event{Type: EventNoPlayableSource, Snapshot: c.snapshotLocked(), Err: err}
		c.mu.Unlock()
		c.publish([]Event{e})
		return err
	}

	zlog.Debug().Msgf("playback: loading track: track=%s preview=%v url=%s", t.ID, src.PreviewLimited, src.URL)

	// The previous track stays current until the output accepts the new source.
	gen := c.generation + 1
	if err := c.output.Load(src.URL, &generationListener{c: c, generation: gen}); err != nil {
		err = errors.Mark(errors.Mark(errors.Wrapf(err, "failed to load track %s", t.ID), ErrLoadRejected), ErrPlaybackRejected)
		zlog.Warn().Msgf("playback: output rejected load: track=%s error=%v", t.ID, err)
		e := Event{Type: EventPlaybackRejected, Snapshot: c.snapshotLocked(), Err: err}
		c.mu.Unlock()
		c.publish([]Event{e})
		return err
	}

	c.generation = gen
	loaded := t
	c.currentTrack = &loaded
	c.source = src
	c.previewMode = src.PreviewLimited
	c.position = 0
	c.duration = t.Duration
	c.state = StateLoading

	c.output.SetVolume(c.volume)

	events := []Event{c.eventLocked(EventTrackLoaded)}
	started, err := c.startLocked()
	events = append(events, started...)

	c.mu.Unlock()
	c.publish(events)
	return err
}

// PlayPause toggles playback of the loaded track. No-op when nothing is loaded.
func (c *Controller) PlayPause() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	events, err := c.togglePlayLocked()
	c.mu.Unlock()

	c.publish(events)
	return err
}

// Stop pauses and rewinds to the start. The loaded track is kept.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	events := c.stopLocked()
	c.mu.Unlock()

	c.publish(events)
}

// Seek moves the position, clamped to the known duration.
// It is a no-op in preview mode.
func (c *Controller) Seek(position time.Duration) {
	c.mu.Lock()
	if c.closed || c.currentTrack == nil || c.previewMode {
		c.mu.Unlock()
		return
	}

	if position < 0 {
		position = 0
	}
	if c.duration > 0 && position > c.duration {
		position = c.duration
	}
	c.output.Seek(position)
	c.position = position
	e := c.eventLocked(EventTimeUpdate)
	c.mu.Unlock()

	c.publish([]Event{e})
}

// SetVolume clamps v to [0,1] and applies it now and to later tracks.
func (c *Controller) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.volume = clampVolume(v)
	if !c.closed {
		c.output.SetVolume(c.volume)
	}
}

// Snapshot returns the current transport view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// CurrentTrack returns the loaded track.
func (c *Controller) CurrentTrack() (*track.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentTrack == nil {
		return nil, false
	}
	t := *c.currentTrack
	return &t, true
}

// Close stops playback and releases the output. Later callbacks are ignored.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.generation++
	c.state = StateIdle
	c.output.Pause()

	if err := c.output.Close(); err != nil {
		return errors.Wrap(err, "failed to close output")
	}
	return nil
}

// togglePlayLocked flips between playing and paused.
// Must be called with lock held.
func (c *Controller) togglePlayLocked() ([]Event, error) {
	if c.currentTrack == nil {
		return nil, nil
	}

	if c.state == StatePlaying {
		c.output.Pause()
		c.state = StatePaused
		return []Event{c.eventLocked(EventStateChanged)}, nil
	}

	return c.startLocked()
}

// startLocked starts the output, rewinding first when coming from idle or stopped.
// Must be called with lock held.
func (c *Controller) startLocked() ([]Event, error) {
	if c.state == StateIdle || c.state == StateStopped {
		c.output.Seek(0)
		c.position = 0
	}

	if err := c.output.Play(); err != nil {
		c.state = StateIdle
		err = errors.Mark(errors.Wrapf(err, "failed to play track %s", c.currentTrack.ID), ErrPlaybackRejected)
		zlog.Warn().Msgf("playback: output rejected play: track=%s error=%v", c.currentTrack.ID, err)
		return []Event{{Type: EventPlaybackRejected, Snapshot: c.snapshotLocked(), Err: err}}, err
	}

	c.state = StatePlaying
	return []Event{c.eventLocked(EventStateChanged)}, nil
}

// stopLocked pauses and rewinds.
// Must be called with lock held.
func (c *Controller) stopLocked() []Event {
	if c.currentTrack == nil {
		return nil
	}

	c.output.Pause()
	c.output.Seek(0)
	c.position = 0

	if c.state == StateStopped {
		return nil
	}
	c.state = StateStopped
	return []Event{c.eventLocked(EventStateChanged)}
}

// previewEndedLocked enforces the cap.
// Must be called with lock held.
func (c *Controller) previewEndedLocked() []Event {
	zlog.Info().Msgf("playback: preview limit reached: track=%s limit=%v", c.currentTrack.ID, c.config.PreviewLimit)
	events := c.stopLocked()
	return append(events, c.eventLocked(EventPreviewEnded))
}

func (c *Controller) onLoadedMetadata(generation uint64, duration time.Duration) {
	c.mu.Lock()
	if !c.isCurrentLocked(generation) {
		c.mu.Unlock()
		return
	}
	c.duration = duration
	e := c.eventLocked(EventLoadedMetadata)
	c.mu.Unlock()

	c.publish([]Event{e})
}

func (c *Controller) onTimeUpdate(generation uint64, position time.Duration) {
	c.mu.Lock()
	if !c.isCurrentLocked(generation) || !c.isActiveLocked() {
		c.mu.Unlock()
		return
	}

	var events []Event
	if c.previewMode && position >= c.config.PreviewLimit {
		events = c.previewEndedLocked()
	} else {
		c.position = position
		events = []Event{c.eventLocked(EventTimeUpdate)}
	}
	c.mu.Unlock()

	c.publish(events)
}

func (c *Controller) onEnded(generation uint64) {
	c.mu.Lock()
	if !c.isCurrentLocked(generation) || !c.isActiveLocked() {
		c.mu.Unlock()
		return
	}

	var events []Event
	if c.previewMode {
		// Short previews end before the cap; never auto-advance out of a preview.
		events = c.previewEndedLocked()
	} else {
		zlog.Debug().Msgf("playback: track ended: track=%s duration=%v", c.currentTrack.ID, c.duration)
		if c.duration > 0 {
			c.position = c.duration
		}
		c.state = StateIdle
		events = []Event{c.eventLocked(EventStateChanged), c.eventLocked(EventTrackEnded)}
	}
	c.mu.Unlock()

	c.publish(events)
}

func (c *Controller) isCurrentLocked(generation uint64) bool {
	return !c.closed && generation == c.generation && c.currentTrack != nil
}

func (c *Controller) isActiveLocked() bool {
	return c.state == StatePlaying || c.state == StatePaused
}

func (c *Controller) eventLocked(t EventType) Event {
	return Event{Type: t, Snapshot: c.snapshotLocked()}
}

func (c *Controller) snapshotLocked() Snapshot {
	var t *track.Track
	if c.currentTrack != nil {
		copied := *c.currentTrack
		t = &copied
	}
	return Snapshot{
		Track:       t,
		State:       c.state,
		PreviewMode: c.previewMode,
		Position:    c.position,
		Duration:    c.duration,
		Volume:      c.volume,
	}
}

// publish delivers events in order. Must be called without the lock held.
func (c *Controller) publish(events []Event) {
	for _, e := range events {
		c.notifier.Publish(e)
	}
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// generationListener binds output callbacks to the load that registered them.
type generationListener struct {
	c          *Controller
	generation uint64
}

func (l *generationListener) OnLoadedMetadata(duration time.Duration) {
	l.c.onLoadedMetadata(l.generation, duration)
}

func (l *generationListener) OnTimeUpdate(position time.Duration) {
	l.c.onTimeUpdate(l.generation, position)
}

func (l *generationListener) OnEnded() {
	l.c.onEnded(l.generation)
}
