package connect

import (
	"time"

	"github.com/samber/lo"

	"github.com/osa030/kamerplay/internal/app/playback"
	"github.com/osa030/kamerplay/internal/domain/track"
)

// SessionRequest addresses an open session.
type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

// OpenSessionRequest opens a session for a page-view.
type OpenSessionRequest struct {
	ViewerID string `json:"viewerId,omitempty"`
}

// OpenSessionResponse returns the new session.
type OpenSessionResponse struct {
	SessionID string `json:"sessionId"`
	Status    Status `json:"status"`
}

// PlayRequest plays (or toggles) a catalog track.
type PlayRequest struct {
	SessionID string `json:"sessionId"`
	TrackID   string `json:"trackId"`
}

// SeekRequest moves the playback position.
type SeekRequest struct {
	SessionID  string `json:"sessionId"`
	PositionMs int64  `json:"positionMs"`
}

// SetVolumeRequest sets the volume (0.0-1.0, clamped).
type SetVolumeRequest struct {
	SessionID string  `json:"sessionId"`
	Volume    float64 `json:"volume"`
}

// UploadPreviewRequest plays audio selected for upload.
type UploadPreviewRequest struct {
	SessionID string `json:"sessionId"`
	FileName  string `json:"fileName"`
	Data      []byte `json:"data"`
}

// UploadPreviewResponse returns the object URL of the upload.
type UploadPreviewResponse struct {
	ObjectURL string    `json:"objectUrl"`
	Track     TrackInfo `json:"track"`
	Status    Status    `json:"status"`
}

// RevokePreviewRequest releases an upload preview.
type RevokePreviewRequest struct {
	SessionID string `json:"sessionId"`
	ObjectURL string `json:"objectUrl"`
}

// RevokePreviewResponse reports whether the URL was live.
type RevokePreviewResponse struct {
	Revoked bool `json:"revoked"`
}

// StatusResponse carries the session status after a command.
type StatusResponse struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Empty is returned by commands with nothing to report.
type Empty struct{}

// TrackInfo describes a track.
type TrackInfo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist,omitempty"`
	IsFree      bool    `json:"isFree"`
	IsPurchased bool    `json:"isPurchased"`
	Price       float64 `json:"price"`
	DurationMs  int64   `json:"durationMs,omitempty"`
}

// Status describes the transport and the playlist.
type Status struct {
	Track          *TrackInfo  `json:"track,omitempty"`
	State          string      `json:"state"`
	Playing        bool        `json:"playing"`
	PreviewMode    bool        `json:"previewMode"`
	PositionMs     int64       `json:"positionMs"`
	DurationMs     int64       `json:"durationMs"`
	Volume         float64     `json:"volume"`
	PreviewLimitMs int64       `json:"previewLimitMs"`
	Playlist       []TrackInfo `json:"playlist,omitempty"`
	CurrentIndex   int         `json:"currentIndex"`
}

// EventMessage is one item of the event stream.
type EventMessage struct {
	Type       string `json:"type"`
	SequenceNo uint64 `json:"sequenceNo"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
}

// EventTypeInitialState is the type of the first stream message.
const EventTypeInitialState = "initial_state"

func toTrackInfo(t track.Track) TrackInfo {
	return TrackInfo{
		ID:          t.ID,
		Title:       t.Title,
		Artist:      t.Artist,
		IsFree:      t.IsFree,
		IsPurchased: t.IsPurchased,
		Price:       t.Price,
		DurationMs:  t.Duration.Milliseconds(),
	}
}

func trackInfos(tracks []track.Track) []TrackInfo {
	return lo.Map(tracks, func(t track.Track, _ int) TrackInfo {
		return toTrackInfo(t)
	})
}

func toStatus(s playback.Snapshot, previewLimit time.Duration) Status {
	status := Status{
		State:          s.State.String(),
		Playing:        s.IsPlaying(),
		PreviewMode:    s.PreviewMode,
		PositionMs:     s.Position.Milliseconds(),
		DurationMs:     s.Duration.Milliseconds(),
		Volume:         s.Volume,
		PreviewLimitMs: previewLimit.Milliseconds(),
		CurrentIndex:   -1,
	}
	if s.Track != nil {
		info := toTrackInfo(*s.Track)
		status.Track = &info
	}
	return status
}

func fromMillis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
