package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/kamerplay/internal/app/notification"
	"github.com/osa030/kamerplay/internal/app/playback"
	"github.com/osa030/kamerplay/internal/app/session"
	"github.com/osa030/kamerplay/internal/app/session/registry"
	"github.com/osa030/kamerplay/internal/infra/config"
)

// PlayerServiceName is the fully-qualified name of the PlayerService.
const PlayerServiceName = "kamerplay.player.v1.PlayerService"

// Procedure paths of the PlayerService.
const (
	OpenSessionProcedure     = "/" + PlayerServiceName + "/OpenSession"
	CloseSessionProcedure    = "/" + PlayerServiceName + "/CloseSession"
	PlayProcedure            = "/" + PlayerServiceName + "/Play"
	PlayPauseProcedure       = "/" + PlayerServiceName + "/PlayPause"
	StopProcedure            = "/" + PlayerServiceName + "/Stop"
	SeekProcedure            = "/" + PlayerServiceName + "/Seek"
	SetVolumeProcedure       = "/" + PlayerServiceName + "/SetVolume"
	NextProcedure            = "/" + PlayerServiceName + "/Next"
	PreviousProcedure        = "/" + PlayerServiceName + "/Previous"
	GetStatusProcedure       = "/" + PlayerServiceName + "/GetStatus"
	UploadPreviewProcedure   = "/" + PlayerServiceName + "/UploadPreview"
	RevokePreviewProcedure   = "/" + PlayerServiceName + "/RevokePreview"
	SubscribeEventsProcedure = "/" + PlayerServiceName + "/SubscribeEvents"
)

// eventBuffer is how many events a slow stream may lag behind before time updates are dropped.
const eventBuffer = 64

// SessionFactory creates the session for a viewer.
type SessionFactory func(sessionID, viewerID, token string) (*session.Manager, error)

// PlayerService implements the PlayerService RPC.
type PlayerService struct {
	sessions   *registry.Registry[*session.Manager]
	newSession SessionFactory
	config     *config.Config
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(sessions *registry.Registry[*session.Manager], newSession SessionFactory, cfg *config.Config) *PlayerService {
	return &PlayerService{
		sessions:   sessions,
		newSession: newSession,
		config:     cfg,
	}
}

// OpenSession opens a playback session for a page-view of the viewer.
func (s *PlayerService) OpenSession(
	ctx context.Context,
	req *connect.Request[OpenSessionRequest],
) (*connect.Response[OpenSessionResponse], error) {
	token := viewerToken(ctx)
	id, sess, err := s.sessions.Open(func(sessionID string) (*session.Manager, error) {
		return s.newSession(sessionID, req.Msg.ViewerID, token)
	})
	if err != nil {
		return nil, toConnectError(s.config, OpenSessionProcedure, err)
	}

	return connect.NewResponse(&OpenSessionResponse{
		SessionID: id,
		Status:    s.status(sess),
	}), nil
}

// CloseSession releases the session's output and object URLs.
func (s *PlayerService) CloseSession(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[Empty], error) {
	if _, err := s.session(ctx, req.Msg.SessionID); err != nil {
		return nil, toConnectError(s.config, CloseSessionProcedure, err)
	}
	if err := s.sessions.Close(req.Msg.SessionID); err != nil {
		return nil, toConnectError(s.config, CloseSessionProcedure, err)
	}
	return connect.NewResponse(&Empty{}), nil
}

// Play plays a catalog track, or toggles it if it is already loaded.
func (s *PlayerService) Play(
	ctx context.Context,
	req *connect.Request[PlayRequest],
) (*connect.Response[StatusResponse], error) {
	return s.command(ctx, PlayProcedure, req.Msg.SessionID, func(sess *session.Manager) error {
		return sess.Play(ctx, req.Msg.TrackID)
	})
}

// PlayPause toggles playback.
func (s *PlayerService) PlayPause(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[StatusResponse], error) {
	return s.command(ctx, PlayPauseProcedure, req.Msg.SessionID, func(sess *session.Manager) error {
		return sess.PlayPause()
	})
}

// Stop stops playback and rewinds.
func (s *PlayerService) Stop(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[StatusResponse], error) {
	return s.command(ctx, StopProcedure, req.Msg.SessionID, func(sess *session.Manager) error {
		return sess.Stop()
	})
}

// Seek moves the playback position.
func (s *PlayerService) Seek(
	ctx context.Context,
	req *connect.Request[SeekRequest],
) (*connect.Response[StatusResponse], error) {
	return s.command(ctx, SeekProcedure, req.Msg.SessionID, func(sess *session.Manager) error {
		return sess.Seek(fromMillis(req.Msg.PositionMs))
	})
}

// SetVolume sets the volume.
func (s *PlayerService) SetVolume(
	ctx context.Context,
	req *connect.Request[SetVolumeRequest],
) (*connect.Response[StatusResponse], error) {
	return s.command(ctx, SetVolumeProcedure, req.Msg.SessionID, func(sess *session.Manager) error {
		return sess.SetVolume(req.Msg.Volume)
	})
}

// Next moves to the next playlist track.
func (s *PlayerService) Next(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[StatusResponse], error) {
	return s.command(ctx, NextProcedure, req.Msg.SessionID, func(sess *session.Manager) error {
		return sess.Next(ctx)
	})
}

// Previous moves to the previous playlist track.
func (s *PlayerService) Previous(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[StatusResponse], error) {
	return s.command(ctx, PreviousProcedure, req.Msg.SessionID, func(sess *session.Manager) error {
		return sess.Previous(ctx)
	})
}

// GetStatus returns the session status.
func (s *PlayerService) GetStatus(
	ctx context.Context,
	req *connect.Request[SessionRequest],
) (*connect.Response[StatusResponse], error) {
	sess, err := s.session(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(s.config, GetStatusProcedure, err)
	}
	return connect.NewResponse(&StatusResponse{Status: s.status(sess)}), nil
}

// UploadPreview plays audio selected for upload through an object URL.
func (s *PlayerService) UploadPreview(
	ctx context.Context,
	req *connect.Request[UploadPreviewRequest],
) (*connect.Response[UploadPreviewResponse], error) {
	sess, err := s.session(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(s.config, UploadPreviewProcedure, err)
	}

	t, err := sess.PreviewUpload(ctx, req.Msg.FileName, req.Msg.Data)
	if err != nil {
		return nil, toConnectError(s.config, UploadPreviewProcedure, err)
	}

	return connect.NewResponse(&UploadPreviewResponse{
		ObjectURL: t.AudioURL,
		Track:     toTrackInfo(t),
		Status:    s.status(sess),
	}), nil
}

// RevokePreview releases an upload preview URL.
func (s *PlayerService) RevokePreview(
	ctx context.Context,
	req *connect.Request[RevokePreviewRequest],
) (*connect.Response[RevokePreviewResponse], error) {
	sess, err := s.session(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, toConnectError(s.config, RevokePreviewProcedure, err)
	}
	return connect.NewResponse(&RevokePreviewResponse{
		Revoked: sess.RevokeUpload(req.Msg.ObjectURL),
	}), nil
}

// SubscribeEvents streams the initial status followed by playback events
// until the client goes away or the session is closed.
func (s *PlayerService) SubscribeEvents(
	ctx context.Context,
	req *connect.Request[SessionRequest],
	stream *connect.ServerStream[EventMessage],
) error {
	sess, err := s.session(ctx, req.Msg.SessionID)
	if err != nil {
		return toConnectError(s.config, SubscribeEventsProcedure, err)
	}

	events := notification.NewStream(eventBuffer)
	subscriptionID := sess.Subscribe(events)
	defer sess.Unsubscribe(subscriptionID)

	var seq uint64
	seq++
	if err := stream.Send(&EventMessage{
		Type:       EventTypeInitialState,
		SequenceNo: seq,
		Status:     s.status(sess),
	}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sess.Done():
			return nil
		case <-events.Ready():
			for _, e := range events.Drain() {
				seq++
				if err := stream.Send(s.eventMessage(sess, e, seq)); err != nil {
					zlog.Debug().Msgf("event stream closed: session_id=%s error=%v", sess.ID(), err)
					return err
				}
			}
		}
	}
}

func (s *PlayerService) eventMessage(sess *session.Manager, e playback.Event, seq uint64) *EventMessage {
	msg := &EventMessage{
		Type:       e.Type.String(),
		SequenceNo: seq,
		Status:     toStatus(e.Snapshot, s.config.PreviewLimit()),
	}
	if e.Err != nil {
		_, messageCode := errorCode(e.Err)
		msg.Message = s.config.GetMessage(messageCode)
	}
	tracks, index := sess.Playlist()
	msg.Status.Playlist = trackInfos(tracks)
	msg.Status.CurrentIndex = index
	return msg
}

// command runs fn on the session and returns the resulting status.
func (s *PlayerService) command(
	ctx context.Context,
	procedure string,
	sessionID string,
	fn func(sess *session.Manager) error,
) (*connect.Response[StatusResponse], error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, toConnectError(s.config, procedure, err)
	}
	if err := fn(sess); err != nil {
		return nil, toConnectError(s.config, procedure, err)
	}
	return connect.NewResponse(&StatusResponse{
		Status:  s.status(sess),
		Message: s.config.GetMessage("success"),
	}), nil
}

// session returns the session if the caller's token opened it.
func (s *PlayerService) session(ctx context.Context, sessionID string) (*session.Manager, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.OwnedBy(viewerToken(ctx)) {
		return nil, registry.ErrSessionNotFound
	}
	return sess, nil
}

func (s *PlayerService) status(sess *session.Manager) Status {
	status := toStatus(sess.Snapshot(), s.config.PreviewLimit())
	tracks, index := sess.Playlist()
	status.Playlist = trackInfos(tracks)
	status.CurrentIndex = index
	return status
}

// NewPlayerServiceHandler builds an HTTP handler serving every PlayerService
// procedure under the service path.
func NewPlayerServiceHandler(svc *PlayerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(OpenSessionProcedure, connect.NewUnaryHandler(OpenSessionProcedure, svc.OpenSession, opts...))
	mux.Handle(CloseSessionProcedure, connect.NewUnaryHandler(CloseSessionProcedure, svc.CloseSession, opts...))
	mux.Handle(PlayProcedure, connect.NewUnaryHandler(PlayProcedure, svc.Play, opts...))
	mux.Handle(PlayPauseProcedure, connect.NewUnaryHandler(PlayPauseProcedure, svc.PlayPause, opts...))
	mux.Handle(StopProcedure, connect.NewUnaryHandler(StopProcedure, svc.Stop, opts...))
	mux.Handle(SeekProcedure, connect.NewUnaryHandler(SeekProcedure, svc.Seek, opts...))
	mux.Handle(SetVolumeProcedure, connect.NewUnaryHandler(SetVolumeProcedure, svc.SetVolume, opts...))
	mux.Handle(NextProcedure, connect.NewUnaryHandler(NextProcedure, svc.Next, opts...))
	mux.Handle(PreviousProcedure, connect.NewUnaryHandler(PreviousProcedure, svc.Previous, opts...))
	mux.Handle(GetStatusProcedure, connect.NewUnaryHandler(GetStatusProcedure, svc.GetStatus, opts...))
	mux.Handle(UploadPreviewProcedure, connect.NewUnaryHandler(UploadPreviewProcedure, svc.UploadPreview, opts...))
	mux.Handle(RevokePreviewProcedure, connect.NewUnaryHandler(RevokePreviewProcedure, svc.RevokePreview, opts...))
	mux.Handle(SubscribeEventsProcedure, connect.NewServerStreamHandler(SubscribeEventsProcedure, svc.SubscribeEvents, opts...))

	return "/" + PlayerServiceName + "/", mux
}
