// Package session provides the playback session manager: one per viewer
// page-view, owning the transport, the playlist and uploaded previews.
package session

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/kamerplay/internal/app/filter"
	"github.com/osa030/kamerplay/internal/app/navigator"
	"github.com/osa030/kamerplay/internal/app/notification"
	"github.com/osa030/kamerplay/internal/app/objecturl"
	"github.com/osa030/kamerplay/internal/app/playback"
	"github.com/osa030/kamerplay/internal/app/resolver"
	"github.com/osa030/kamerplay/internal/app/session/state"
	"github.com/osa030/kamerplay/internal/domain/track"
	"github.com/osa030/kamerplay/internal/infra/config"
	"github.com/osa030/kamerplay/internal/infra/history"
	"github.com/osa030/kamerplay/internal/infra/probe"
)

var (
	ErrSessionClosed  = errors.New("session is closed")
	ErrInvalidUpload  = errors.New("invalid upload")
	ErrUploadTooLarge = errors.New("upload too large")
)

// Catalog provides the viewer's track records.
type Catalog interface {
	Track(ctx context.Context, id string) (track.Track, error)
	Purchased(ctx context.Context) ([]track.Track, error)
	Favorites(ctx context.Context) ([]track.Track, error)
}

// OutputFactory creates the media output acquired on the first play action.
type OutputFactory func() (playback.Output, error)

// Prober reads metadata of uploaded audio.
type Prober interface {
	Probe(ctx context.Context, url string) (probe.Metadata, error)
}

// HistoryRecorder records played tracks.
type HistoryRecorder interface {
	Record(ctx context.Context, viewerID string, e history.Entry) error
}

// Deps holds the collaborators of a session.
type Deps struct {
	Catalog   Catalog
	Resolver  *resolver.Resolver
	NewOutput OutputFactory
	Objects   *objecturl.Registry // Created per session when nil
	Prober    Prober              // Optional
	History   HistoryRecorder     // Optional

	OwnerToken string
}

// Manager manages one playback session.
type Manager struct {
	mu sync.Mutex

	// Configuration
	config *config.Config

	// Components
	stateMgr     *state.Manager
	catalog      Catalog
	resolver     *resolver.Resolver
	newOutput    OutputFactory
	objects      *objecturl.Registry
	prober       Prober
	history      HistoryRecorder
	navigator    *navigator.Navigator
	notification *notification.Manager

	// Acquired lazily by the first play action
	controller *playback.Controller

	// Volume chosen before the output was acquired
	volume float64

	// Most recent upload preview URL
	uploadURL string

	// Digest of the viewer token the session was opened with
	ownerDigest [sha256.Size]byte
}

// NewManager creates a session manager. No output is acquired until a play action.
func NewManager(cfg *config.Config, sessionID, viewerID string, deps Deps) (*Manager, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if deps.NewOutput == nil {
		return nil, errors.New("output factory is required")
	}
	if deps.Resolver == nil {
		deps.Resolver = resolver.New(nil)
	}
	if deps.Objects == nil {
		deps.Objects = objecturl.NewRegistry()
	}

	m := &Manager{
		config:       cfg,
		stateMgr:     state.New(sessionID, viewerID),
		catalog:      deps.Catalog,
		resolver:     deps.Resolver,
		newOutput:    deps.NewOutput,
		objects:      deps.Objects,
		prober:       deps.Prober,
		history:      deps.History,
		notification: notification.NewManager(),
		volume:       cfg.Playback.InitialVolume,
		ownerDigest:  sha256.Sum256([]byte(deps.OwnerToken)),
	}
	m.navigator = navigator.New(m, m.buildFilterChain())

	return m, nil
}

// buildFilterChain builds the playlist eligibility chain.
func (m *Manager) buildFilterChain() *filter.Chain {
	chain := filter.NewChain(filter.NewPlayableSourceFilter(m.resolver))

	if m.config.Playlist.Dedupe {
		chain.Add(filter.NewDuplicateTrackFilter())
	}
	return chain
}

// ID returns the session ID.
func (m *Manager) ID() string {
	return m.stateMgr.SessionID()
}

// ViewerID returns the viewer the session belongs to.
func (m *Manager) ViewerID() string {
	return m.stateMgr.ViewerID()
}

// Phase returns the lifecycle phase.
func (m *Manager) Phase() state.Phase {
	return m.stateMgr.GetPhase()
}

// IdleFor returns the time since the viewer last acted on the session.
func (m *Manager) IdleFor() time.Duration {
	return m.stateMgr.IdleFor()
}

// Play plays the track with the given ID from the viewer's catalog. The
// playlist is rebuilt from the purchased library followed by fully playable
// favorites. Playing the loaded track toggles play/pause.
func (m *Manager) Play(ctx context.Context, trackID string) error {
	ctrl, err := m.acquire()
	if err != nil {
		return err
	}

	if current, ok := ctrl.CurrentTrack(); ok && current.ID == trackID {
		return ctrl.Load(ctx, *current)
	}

	t, err := m.catalog.Track(ctx, trackID)
	if err != nil {
		return err
	}

	m.rebuildPlaylist(ctx)
	if !m.navigator.Select(t.ID) {
		zlog.Debug().Msgf("track not in playlist: session_id=%s track=%s", m.ID(), t.ID)
	}

	return ctrl.Load(ctx, t)
}

// rebuildPlaylist reloads the playlist sources. A failed source is logged and
// treated as empty.
func (m *Manager) rebuildPlaylist(ctx context.Context) {
	purchased, err := m.catalog.Purchased(ctx)
	if err != nil {
		zlog.Warn().Msgf("failed to load purchased tracks: session_id=%s error=%v", m.ID(), err)
	}

	favorites, err := m.catalog.Favorites(ctx)
	if err != nil {
		zlog.Warn().Msgf("failed to load favorite tracks: session_id=%s error=%v", m.ID(), err)
	}
	favorites = lo.Filter(favorites, func(t track.Track, _ int) bool {
		return t.IsFullyPlayable()
	})

	tracks := m.navigator.BuildFrom(ctx, purchased, favorites)
	zlog.Info().Msgf("playlist built: session_id=%s purchased=%d favorites=%d tracks=%d", m.ID(), len(purchased), len(favorites), len(tracks))
}

// Load loads t into the transport, acquiring the output if needed.
func (m *Manager) Load(ctx context.Context, t track.Track) error {
	ctrl, err := m.acquire()
	if err != nil {
		return err
	}
	return ctrl.Load(ctx, t)
}

// PlayPause toggles playback. No-op before the first play action.
func (m *Manager) PlayPause() error {
	ctrl, err := m.active()
	if err != nil || ctrl == nil {
		return err
	}
	return ctrl.PlayPause()
}

// Stop stops playback and rewinds.
func (m *Manager) Stop() error {
	ctrl, err := m.active()
	if err != nil || ctrl == nil {
		return err
	}
	ctrl.Stop()
	return nil
}

// Seek moves the playback position.
func (m *Manager) Seek(position time.Duration) error {
	ctrl, err := m.active()
	if err != nil || ctrl == nil {
		return err
	}
	ctrl.Seek(position)
	return nil
}

// SetVolume sets the volume for the current and later tracks.
func (m *Manager) SetVolume(v float64) error {
	m.mu.Lock()
	if m.stateMgr.IsClosed() {
		m.mu.Unlock()
		return ErrSessionClosed
	}
	m.stateMgr.Touch()
	ctrl := m.controller
	if ctrl == nil {
		m.volume = lo.Clamp(v, 0, 1)
	}
	m.mu.Unlock()

	if ctrl != nil {
		ctrl.SetVolume(v)
	}
	return nil
}

// Next moves to the next playlist track.
func (m *Manager) Next(ctx context.Context) error {
	if m.stateMgr.IsClosed() {
		return ErrSessionClosed
	}
	m.stateMgr.Touch()
	return m.navigator.Next(ctx)
}

// Previous moves to the previous playlist track.
func (m *Manager) Previous(ctx context.Context) error {
	if m.stateMgr.IsClosed() {
		return ErrSessionClosed
	}
	m.stateMgr.Touch()
	return m.navigator.Previous(ctx)
}

// Snapshot returns the transport state.
func (m *Manager) Snapshot() playback.Snapshot {
	m.mu.Lock()
	ctrl := m.controller
	volume := m.volume
	m.mu.Unlock()

	if ctrl == nil {
		return playback.Snapshot{State: playback.StateIdle, Volume: volume}
	}
	return ctrl.Snapshot()
}

// Playlist returns the playlist and the current index (-1 when none).
func (m *Manager) Playlist() ([]track.Track, int) {
	return m.navigator.Tracks(), m.navigator.Index()
}

// Done is closed when the session is closed.
func (m *Manager) Done() <-chan struct{} {
	return m.notification.Done()
}

// OwnedBy reports whether token is the credential the session was opened with.
func (m *Manager) OwnedBy(token string) bool {
	digest := sha256.Sum256([]byte(token))
	return subtle.ConstantTimeCompare(digest[:], m.ownerDigest[:]) == 1
}

// Subscribe registers a listener for playback events.
func (m *Manager) Subscribe(l notification.Listener) string {
	return m.notification.Subscribe(l)
}

// Unsubscribe removes a listener.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.notification.Unsubscribe(subscriptionID)
}

// PreviewUpload registers audio selected for upload and plays it as a free
// track. The previous upload preview, if any, is revoked.
func (m *Manager) PreviewUpload(ctx context.Context, name string, data []byte) (track.Track, error) {
	if err := m.validateUpload(name, data); err != nil {
		return track.Track{}, err
	}

	ctrl, err := m.acquire()
	if err != nil {
		return track.Track{}, err
	}

	url := m.objects.Create(name, data)

	m.mu.Lock()
	previous := m.uploadURL
	m.uploadURL = url
	m.mu.Unlock()
	if previous != "" {
		m.objects.Revoke(previous)
	}

	t := track.Track{
		ID:       url,
		Title:    strings.TrimSuffix(path.Base(name), path.Ext(name)),
		AudioURL: url,
		IsFree:   true,
	}
	if m.prober != nil {
		meta, err := m.prober.Probe(ctx, url)
		if err != nil {
			zlog.Warn().Msgf("failed to probe upload: session_id=%s name=%s error=%v", m.ID(), name, err)
		} else {
			t.Title = meta.Title
			t.Artist = meta.Artist
			t.Duration = meta.Duration
		}
	}

	zlog.Info().Msgf("upload preview: session_id=%s name=%s size=%d url=%s", m.ID(), name, len(data), url)
	return t, ctrl.Load(ctx, t)
}

// RevokeUpload releases an upload preview URL. Returns false if it was unknown.
func (m *Manager) RevokeUpload(url string) bool {
	m.mu.Lock()
	if m.uploadURL == url {
		m.uploadURL = ""
	}
	m.mu.Unlock()

	return m.objects.Revoke(url)
}

func (m *Manager) validateUpload(name string, data []byte) error {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if ext == "" || !lo.ContainsBy(m.config.Uploads.AllowedExtensions, func(allowed string) bool {
		return strings.EqualFold(strings.TrimPrefix(allowed, "."), ext)
	}) {
		return errors.Wrapf(ErrInvalidUpload, "unsupported file type: %s", name)
	}
	if len(data) == 0 {
		return errors.Wrapf(ErrInvalidUpload, "empty file: %s", name)
	}
	if int64(len(data)) > m.config.MaxUploadBytes() {
		return errors.Wrapf(ErrUploadTooLarge, "%s is %d bytes", name, len(data))
	}
	return nil
}

// Close releases the output, every object URL and every subscription.
// Calling Close more than once is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.stateMgr.IsClosed() {
		m.mu.Unlock()
		return nil
	}
	m.stateMgr.SetPhase(state.PhaseClosed)
	ctrl := m.controller
	m.uploadURL = ""
	m.mu.Unlock()

	revoked := m.objects.RevokeAll()

	var err error
	if ctrl != nil {
		err = ctrl.Close()
	}
	m.notification.Close()

	zlog.Info().Msgf("session closed: session_id=%s revoked_urls=%d", m.ID(), revoked)
	return err
}

// acquire returns the controller, creating it and its output on first use.
func (m *Manager) acquire() (*playback.Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stateMgr.IsClosed() {
		return nil, ErrSessionClosed
	}
	m.stateMgr.Touch()

	if m.controller != nil {
		return m.controller, nil
	}

	output, err := m.newOutput()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create output")
	}

	m.controller = playback.NewController(output, m.resolver, playback.NotifierFunc(m.onEvent), playback.Config{
		PreviewLimit:  m.config.PreviewLimit(),
		InitialVolume: m.volume,
	})
	m.stateMgr.SetPhase(state.PhaseActive)

	zlog.Info().Msgf("output acquired: session_id=%s", m.ID())
	return m.controller, nil
}

// active returns the controller if one was acquired.
func (m *Manager) active() (*playback.Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stateMgr.IsClosed() {
		return nil, ErrSessionClosed
	}
	m.stateMgr.Touch()
	return m.controller, nil
}

// onEvent handles controller events. Called without the controller lock held.
func (m *Manager) onEvent(e playback.Event) {
	if e.Type != playback.EventTimeUpdate {
		zlog.Debug().Msgf("playback event: session_id=%s type=%s state=%s", m.ID(), e.Type, e.Snapshot.State)
	}

	m.notification.Publish(e)

	switch e.Type {
	case playback.EventTrackLoaded:
		m.recordHistory(e.Snapshot)

	case playback.EventTrackEnded:
		// Upload previews are not part of the playlist.
		if m.stateMgr.IsClosed() || (e.Snapshot.Track != nil && objecturl.IsObjectURL(e.Snapshot.Track.AudioURL)) {
			return
		}
		if err := m.navigator.Next(context.Background()); err != nil {
			zlog.Warn().Msgf("auto advance failed: session_id=%s error=%v", m.ID(), err)
		}
	}
}

func (m *Manager) recordHistory(s playback.Snapshot) {
	viewerID := m.ViewerID()
	if m.history == nil || viewerID == "" || s.Track == nil || objecturl.IsObjectURL(s.Track.AudioURL) {
		return
	}

	entry := history.Entry{
		TrackID:  s.Track.ID,
		Title:    s.Track.Title,
		Artist:   s.Track.Artist,
		Preview:  s.PreviewMode,
		PlayedAt: time.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.history.Record(ctx, viewerID, entry); err != nil {
			zlog.Warn().Msgf("failed to record history: session_id=%s track=%s error=%v", m.ID(), entry.TrackID, err)
		}
	}()
}
