package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// PlayerServiceClient is a client for the PlayerService.
type PlayerServiceClient struct {
	openSession     *connect.Client[OpenSessionRequest, OpenSessionResponse]
	closeSession    *connect.Client[SessionRequest, Empty]
	play            *connect.Client[PlayRequest, StatusResponse]
	playPause       *connect.Client[SessionRequest, StatusResponse]
	stop            *connect.Client[SessionRequest, StatusResponse]
	seek            *connect.Client[SeekRequest, StatusResponse]
	setVolume       *connect.Client[SetVolumeRequest, StatusResponse]
	next            *connect.Client[SessionRequest, StatusResponse]
	previous        *connect.Client[SessionRequest, StatusResponse]
	getStatus       *connect.Client[SessionRequest, StatusResponse]
	uploadPreview   *connect.Client[UploadPreviewRequest, UploadPreviewResponse]
	revokePreview   *connect.Client[RevokePreviewRequest, RevokePreviewResponse]
	subscribeEvents *connect.Client[SessionRequest, EventMessage]
}

// NewPlayerServiceClient creates a client that authenticates every call with
// the viewer's bearer token.
func NewPlayerServiceClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *PlayerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(NewTokenInterceptor(token)),
	}, opts...)

	return &PlayerServiceClient{
		openSession:     connect.NewClient[OpenSessionRequest, OpenSessionResponse](httpClient, baseURL+OpenSessionProcedure, opts...),
		closeSession:    connect.NewClient[SessionRequest, Empty](httpClient, baseURL+CloseSessionProcedure, opts...),
		play:            connect.NewClient[PlayRequest, StatusResponse](httpClient, baseURL+PlayProcedure, opts...),
		playPause:       connect.NewClient[SessionRequest, StatusResponse](httpClient, baseURL+PlayPauseProcedure, opts...),
		stop:            connect.NewClient[SessionRequest, StatusResponse](httpClient, baseURL+StopProcedure, opts...),
		seek:            connect.NewClient[SeekRequest, StatusResponse](httpClient, baseURL+SeekProcedure, opts...),
		setVolume:       connect.NewClient[SetVolumeRequest, StatusResponse](httpClient, baseURL+SetVolumeProcedure, opts...),
		next:            connect.NewClient[SessionRequest, StatusResponse](httpClient, baseURL+NextProcedure, opts...),
		previous:        connect.NewClient[SessionRequest, StatusResponse](httpClient, baseURL+PreviousProcedure, opts...),
		getStatus:       connect.NewClient[SessionRequest, StatusResponse](httpClient, baseURL+GetStatusProcedure, opts...),
		uploadPreview:   connect.NewClient[UploadPreviewRequest, UploadPreviewResponse](httpClient, baseURL+UploadPreviewProcedure, opts...),
		revokePreview:   connect.NewClient[RevokePreviewRequest, RevokePreviewResponse](httpClient, baseURL+RevokePreviewProcedure, opts...),
		subscribeEvents: connect.NewClient[SessionRequest, EventMessage](httpClient, baseURL+SubscribeEventsProcedure, opts...),
	}
}

// OpenSession calls PlayerService.OpenSession.
func (c *PlayerServiceClient) OpenSession(ctx context.Context, req *OpenSessionRequest) (*OpenSessionResponse, error) {
	return unary(ctx, c.openSession, req)
}

// CloseSession calls PlayerService.CloseSession.
func (c *PlayerServiceClient) CloseSession(ctx context.Context, sessionID string) error {
	_, err := unary(ctx, c.closeSession, &SessionRequest{SessionID: sessionID})
	return err
}

// Play calls PlayerService.Play.
func (c *PlayerServiceClient) Play(ctx context.Context, req *PlayRequest) (*StatusResponse, error) {
	return unary(ctx, c.play, req)
}

// PlayPause calls PlayerService.PlayPause.
func (c *PlayerServiceClient) PlayPause(ctx context.Context, sessionID string) (*StatusResponse, error) {
	return unary(ctx, c.playPause, &SessionRequest{SessionID: sessionID})
}

// Stop calls PlayerService.Stop.
func (c *PlayerServiceClient) Stop(ctx context.Context, sessionID string) (*StatusResponse, error) {
	return unary(ctx, c.stop, &SessionRequest{SessionID: sessionID})
}

// Seek calls PlayerService.Seek.
func (c *PlayerServiceClient) Seek(ctx context.Context, req *SeekRequest) (*StatusResponse, error) {
	return unary(ctx, c.seek, req)
}

// SetVolume calls PlayerService.SetVolume.
func (c *PlayerServiceClient) SetVolume(ctx context.Context, req *SetVolumeRequest) (*StatusResponse, error) {
	return unary(ctx, c.setVolume, req)
}

// Next calls PlayerService.Next.
func (c *PlayerServiceClient) Next(ctx context.Context, sessionID string) (*StatusResponse, error) {
	return unary(ctx, c.next, &SessionRequest{SessionID: sessionID})
}

// Previous calls PlayerService.Previous.
func (c *PlayerServiceClient) Previous(ctx context.Context, sessionID string) (*StatusResponse, error) {
	return unary(ctx, c.previous, &SessionRequest{SessionID: sessionID})
}

// GetStatus calls PlayerService.GetStatus.
func (c *PlayerServiceClient) GetStatus(ctx context.Context, sessionID string) (*StatusResponse, error) {
	return unary(ctx, c.getStatus, &SessionRequest{SessionID: sessionID})
}

// UploadPreview calls PlayerService.UploadPreview.
func (c *PlayerServiceClient) UploadPreview(ctx context.Context, req *UploadPreviewRequest) (*UploadPreviewResponse, error) {
	return unary(ctx, c.uploadPreview, req)
}

// RevokePreview calls PlayerService.RevokePreview.
func (c *PlayerServiceClient) RevokePreview(ctx context.Context, req *RevokePreviewRequest) (*RevokePreviewResponse, error) {
	return unary(ctx, c.revokePreview, req)
}

// SubscribeEvents calls PlayerService.SubscribeEvents.
func (c *PlayerServiceClient) SubscribeEvents(ctx context.Context, sessionID string) (*connect.ServerStreamForClient[EventMessage], error) {
	return c.subscribeEvents.CallServerStream(ctx, connect.NewRequest(&SessionRequest{SessionID: sessionID}))
}

func unary[Req, Res any](ctx context.Context, client *connect.Client[Req, Res], req *Req) (*Res, error) {
	res, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}
