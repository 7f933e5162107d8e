// Package media provides media outputs for the playback controller.
package media

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/kamerplay/internal/app/playback"
)

// Errors
var (
	ErrNoMedia = errors.New("no media loaded")
	ErrClosed  = errors.New("output closed")
)

// DurationProber reports the length of the audio behind a URL.
type DurationProber interface {
	Duration(ctx context.Context, url string) (time.Duration, error)
}

// ClockSettings represents settings of the clock output.
type ClockSettings struct {
	TickMs             int `yaml:"tick_ms" mapstructure:"tick_ms" default:"250" validate:"gte=10,lte=5000"`
	DefaultDurationSec int `yaml:"default_duration_sec" mapstructure:"default_duration_sec" validate:"gte=0"`
	ProbeTimeoutSec    int `yaml:"probe_timeout_sec" mapstructure:"probe_timeout_sec" default:"15" validate:"gte=1"`
}

// Clock is a media output that advances the playback position on the wall
// clock instead of rendering audio. Callbacks are delivered from its own
// goroutines.
type Clock struct {
	mu sync.Mutex

	prober   DurationProber
	settings ClockSettings

	url      string
	listener playback.OutputListener
	duration time.Duration
	volume   float64

	playing     bool
	position    time.Duration // Position when the current run started (or when paused)
	runStarted  time.Time     // Wall time when the current run started
	loadID      uint64
	runID       uint64
	cancelProbe context.CancelFunc
	closed      bool
}

// NewClock creates a clock output. Raw settings are decoded with mapstructure.
func NewClock(prober DurationProber, settings map[string]any) (*Clock, error) {
	var s ClockSettings
	if err := mapstructure.Decode(settings, &s); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&s); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(s); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return &Clock{
		prober:   prober,
		settings: s,
		volume:   1,
	}, nil
}

// Load points the output at url. Metadata is probed in the background.
func (c *Clock) Load(url string, listener playback.OutputListener) error {
	if url == "" {
		return ErrNoMedia
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if c.cancelProbe != nil {
		c.cancelProbe()
	}
	c.loadID++
	c.runID++
	c.url = url
	c.listener = listener
	c.duration = time.Duration(c.settings.DefaultDurationSec) * time.Second
	c.playing = false
	c.position = 0

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.settings.ProbeTimeoutSec)*time.Second)
	c.cancelProbe = cancel
	go c.probe(ctx, c.loadID, url)

	return nil
}

// Play starts or resumes advancing the position.
func (c *Clock) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.url == "" {
		return ErrNoMedia
	}
	if c.playing {
		return nil
	}
	if c.duration > 0 && c.position >= c.duration {
		c.position = 0
	}

	c.playing = true
	c.startRunLocked()
	return nil
}

// Pause freezes the position.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing {
		return
	}
	c.position = c.currentLocked()
	c.playing = false
	c.runID++
}

// Seek moves the position. Negative positions are clamped to zero.
func (c *Clock) Seek(position time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if position < 0 {
		position = 0
	}
	if c.duration > 0 && position > c.duration {
		position = c.duration
	}
	c.position = position
	if c.playing {
		c.startRunLocked()
	}
}

// SetVolume records the volume. The clock renders no audio.
func (c *Clock) SetVolume(volume float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = volume
}

// Close stops the clock and detaches the listener.
func (c *Clock) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelProbe != nil {
		c.cancelProbe()
		c.cancelProbe = nil
	}
	c.closed = true
	c.playing = false
	c.listener = nil
	c.loadID++
	c.runID++
	return nil
}

// Position returns the current position.
func (c *Clock) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked()
}

// Volume returns the last volume set.
func (c *Clock) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// IsPlaying reports whether the clock is advancing.
func (c *Clock) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *Clock) probe(ctx context.Context, loadID uint64, url string) {
	if c.prober == nil {
		return
	}

	d, err := c.prober.Duration(ctx, url)
	if err != nil {
		zlog.Debug().Msgf("clock: duration probe failed: url=%s error=%v", url, err)
		return
	}
	if d <= 0 {
		return
	}

	c.mu.Lock()
	if c.loadID != loadID {
		c.mu.Unlock()
		return
	}
	c.duration = d
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener.OnLoadedMetadata(d)
	}
}

// startRunLocked starts a ticker goroutine for a new run from c.position.
func (c *Clock) startRunLocked() {
	c.runID++
	c.runStarted = toWallTime(time.Now())
	go c.run(c.runID, time.Duration(c.settings.TickMs)*time.Millisecond)
}

func (c *Clock) run(runID uint64, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		if c.runID != runID || !c.playing {
			c.mu.Unlock()
			return
		}

		position := c.currentLocked()
		ended := c.duration > 0 && position >= c.duration
		if ended {
			position = c.duration
			c.position = position
			c.playing = false
			c.runID++
		}
		listener := c.listener
		c.mu.Unlock()

		if listener == nil {
			return
		}
		listener.OnTimeUpdate(position)
		if ended {
			listener.OnEnded()
			return
		}
	}
}

func (c *Clock) currentLocked() time.Duration {
	if !c.playing {
		return c.position
	}
	return c.position + toWallTime(time.Now()).Sub(c.runStarted)
}

// toWallTime returns the time with monotonic clock stripped.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
