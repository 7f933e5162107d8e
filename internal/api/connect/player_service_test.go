package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/kamerplay/internal/app/session"
	"github.com/osa030/kamerplay/internal/app/session/registry"
	"github.com/osa030/kamerplay/internal/infra/catalog"
	"github.com/osa030/kamerplay/internal/infra/config"
)

const viewerTokenValue = "viewer-token"

type testEnv struct {
	api      *httptest.Server
	sessions *registry.Registry[*session.Manager]
	client   *PlayerServiceClient
}

func newCatalogServer(t *testing.T) *httptest.Server {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/sounds/s1":
			_, _ = w.Write([]byte(`{"sound":{"id":"s1","title":"Bikutsi Morning","audioUrl":"` + server.URL + `/audio/s1.mp3","isFree":true,"durationSeconds":30}}`))
		case "/sounds/p1":
			_, _ = w.Write([]byte(`{"sound":{"id":"p1","title":"Douala Nights","previewUrl":"` + server.URL + `/audio/p1-preview.mp3","price":500,"durationSeconds":180}}`))
		case "/sounds/n1":
			_, _ = w.Write([]byte(`{"sound":{"id":"n1","title":"Silent","isFree":true}}`))
		case "/sounds/purchased":
			_, _ = w.Write([]byte(`{"sounds":[]}`))
		case "/sounds/favorites":
			_, _ = w.Write([]byte(`{"sounds":[{"id":"s1","title":"Bikutsi Morning","audioUrl":"` + server.URL + `/audio/s1.mp3","isFree":true,"durationSeconds":30}]}`))
		case "/audio/s1.mp3", "/audio/p1-preview.mp3":
			_, _ = w.Write([]byte("not really audio"))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"not found"}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()

	catalogServer := newCatalogServer(t)
	cfg, err := config.Parse([]byte(`
catalog:
  base_url: ` + catalogServer.URL + `
playback:
  output:
    type: clock
    settings:
      tick_ms: 20
uploads:
  max_size_mb: 1
`))
	require.NoError(t, err)

	catalogClient, err := catalog.New(catalog.Config{BaseURL: cfg.Catalog.BaseURL, Timeout: cfg.CatalogTimeout()})
	require.NoError(t, err)
	factory, err := session.NewFactory(cfg, catalogClient, nil, nil)
	require.NoError(t, err)

	sessions := registry.New[*session.Manager](2)
	t.Cleanup(sessions.CloseAll)

	svc := NewPlayerService(sessions, factory.New, cfg)
	path, handler := NewPlayerServiceHandler(svc, connect.WithInterceptors(NewAuthInterceptor()))
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	api := httptest.NewServer(mux)
	t.Cleanup(api.Close)

	return &testEnv{
		api:      api,
		sessions: sessions,
		client:   NewPlayerServiceClient(api.Client(), api.URL, token),
	}
}

func (e *testEnv) open(t *testing.T) string {
	t.Helper()
	res, err := e.client.OpenSession(context.Background(), &OpenSessionRequest{ViewerID: "viewer-1"})
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionID)
	return res.SessionID
}

func assertCode(t *testing.T, err error, code connect.Code, errorCode string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, connect.CodeOf(err))

	if errorCode != "" {
		var connectErr *connect.Error
		require.True(t, errors.As(err, &connectErr))
		assert.Equal(t, errorCode, connectErr.Meta().Get("X-Error-Code"))
	}
}

func TestPlayerService_RequiresToken(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.client.OpenSession(context.Background(), &OpenSessionRequest{})
	assertCode(t, err, connect.CodeUnauthenticated, "")

	stream, err := env.client.SubscribeEvents(context.Background(), "whatever")
	if err == nil {
		assert.False(t, stream.Receive())
		err = stream.Err()
		_ = stream.Close()
	}
	assertCode(t, err, connect.CodeUnauthenticated, "")
}

func TestPlayerService_PlayFlow(t *testing.T) {
	env := newTestEnv(t, viewerTokenValue)
	ctx := context.Background()

	opened, err := env.client.OpenSession(ctx, &OpenSessionRequest{ViewerID: "viewer-1"})
	require.NoError(t, err)
	assert.Equal(t, "idle", opened.Status.State)
	assert.Nil(t, opened.Status.Track)
	assert.Equal(t, int64(20000), opened.Status.PreviewLimitMs)
	id := opened.SessionID

	res, err := env.client.Play(ctx, &PlayRequest{SessionID: id, TrackID: "s1"})
	require.NoError(t, err)
	require.NotNil(t, res.Status.Track)
	assert.Equal(t, "s1", res.Status.Track.ID)
	assert.True(t, res.Status.Playing)
	assert.False(t, res.Status.PreviewMode)
	assert.Equal(t, int64(30000), res.Status.DurationMs)
	require.Len(t, res.Status.Playlist, 1)
	assert.Equal(t, 0, res.Status.CurrentIndex)
	assert.Equal(t, "OK", res.Message)

	res, err = env.client.PlayPause(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "paused", res.Status.State)

	res, err = env.client.Seek(ctx, &SeekRequest{SessionID: id, PositionMs: 12000})
	require.NoError(t, err)
	assert.Equal(t, int64(12000), res.Status.PositionMs)

	res, err = env.client.SetVolume(ctx, &SetVolumeRequest{SessionID: id, Volume: 0.4})
	require.NoError(t, err)
	assert.InDelta(t, 0.4, res.Status.Volume, 0.0001)

	res, err = env.client.Stop(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "stopped", res.Status.State)
	assert.Equal(t, int64(0), res.Status.PositionMs)

	// Paid track outside the library plays as a capped preview.
	res, err = env.client.Play(ctx, &PlayRequest{SessionID: id, TrackID: "p1"})
	require.NoError(t, err)
	assert.True(t, res.Status.PreviewMode)
	assert.Equal(t, -1, res.Status.CurrentIndex)

	// Single-track playlist: next and previous are no-ops.
	_, err = env.client.Next(ctx, id)
	require.NoError(t, err)
	_, err = env.client.Previous(ctx, id)
	require.NoError(t, err)

	status, err := env.client.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "p1", status.Status.Track.ID)

	require.NoError(t, env.client.CloseSession(ctx, id))
	assert.Equal(t, 0, env.sessions.Count())

	_, err = env.client.GetStatus(ctx, id)
	assertCode(t, err, connect.CodeNotFound, "session_not_found")
}

func TestPlayerService_Errors(t *testing.T) {
	env := newTestEnv(t, viewerTokenValue)
	ctx := context.Background()
	id := env.open(t)

	tests := []struct {
		name      string
		call      func() error
		code      connect.Code
		errorCode string
	}{
		{
			name: "unknown session",
			call: func() error {
				_, err := env.client.GetStatus(ctx, "missing")
				return err
			},
			code:      connect.CodeNotFound,
			errorCode: "session_not_found",
		},
		{
			name: "unknown track",
			call: func() error {
				_, err := env.client.Play(ctx, &PlayRequest{SessionID: id, TrackID: "missing"})
				return err
			},
			code:      connect.CodeNotFound,
			errorCode: "track_not_found",
		},
		{
			name: "no playable source",
			call: func() error {
				_, err := env.client.Play(ctx, &PlayRequest{SessionID: id, TrackID: "n1"})
				return err
			},
			code:      connect.CodeFailedPrecondition,
			errorCode: "no_playable_source",
		},
		{
			name: "unsupported upload",
			call: func() error {
				_, err := env.client.UploadPreview(ctx, &UploadPreviewRequest{SessionID: id, FileName: "cover.png", Data: []byte("png")})
				return err
			},
			code:      connect.CodeInvalidArgument,
			errorCode: "invalid_upload",
		},
		{
			name: "upload too large",
			call: func() error {
				_, err := env.client.UploadPreview(ctx, &UploadPreviewRequest{SessionID: id, FileName: "demo.mp3", Data: make([]byte, 2<<20)})
				return err
			},
			code:      connect.CodeInvalidArgument,
			errorCode: "upload_too_large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertCode(t, tt.call(), tt.code, tt.errorCode)
		})
	}
}

func TestPlayerService_SessionOwnership(t *testing.T) {
	env := newTestEnv(t, viewerTokenValue)
	id := env.open(t)

	other := NewPlayerServiceClient(env.api.Client(), env.api.URL, "other-token")
	_, err := other.GetStatus(context.Background(), id)
	assertCode(t, err, connect.CodeNotFound, "session_not_found")

	err = other.CloseSession(context.Background(), id)
	assertCode(t, err, connect.CodeNotFound, "session_not_found")
	assert.Equal(t, 1, env.sessions.Count())
}

func TestPlayerService_SessionLimit(t *testing.T) {
	env := newTestEnv(t, viewerTokenValue)
	env.open(t)
	env.open(t)

	_, err := env.client.OpenSession(context.Background(), &OpenSessionRequest{})
	assertCode(t, err, connect.CodeResourceExhausted, "default_error")
}

func TestPlayerService_UploadPreview(t *testing.T) {
	env := newTestEnv(t, viewerTokenValue)
	ctx := context.Background()
	id := env.open(t)

	res, err := env.client.UploadPreview(ctx, &UploadPreviewRequest{SessionID: id, FileName: "my demo.mp3", Data: []byte("not really audio")})
	require.NoError(t, err)
	assert.Contains(t, res.ObjectURL, "blob:")
	assert.Equal(t, res.ObjectURL, res.Track.ID)
	assert.Equal(t, "my demo", res.Track.Title)
	assert.True(t, res.Track.IsFree)
	require.NotNil(t, res.Status.Track)
	assert.False(t, res.Status.PreviewMode)

	revoked, err := env.client.RevokePreview(ctx, &RevokePreviewRequest{SessionID: id, ObjectURL: res.ObjectURL})
	require.NoError(t, err)
	assert.True(t, revoked.Revoked)

	revoked, err = env.client.RevokePreview(ctx, &RevokePreviewRequest{SessionID: id, ObjectURL: res.ObjectURL})
	require.NoError(t, err)
	assert.False(t, revoked.Revoked)
}

func TestPlayerService_SubscribeEvents(t *testing.T) {
	env := newTestEnv(t, viewerTokenValue)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id := env.open(t)

	stream, err := env.client.SubscribeEvents(ctx, id)
	require.NoError(t, err)
	defer stream.Close()

	require.True(t, stream.Receive())
	first := stream.Msg()
	assert.Equal(t, EventTypeInitialState, first.Type)
	assert.Equal(t, uint64(1), first.SequenceNo)
	assert.Equal(t, "idle", first.Status.State)

	_, err = env.client.Play(ctx, &PlayRequest{SessionID: id, TrackID: "s1"})
	require.NoError(t, err)

	var loaded *EventMessage
	lastSeq := first.SequenceNo
	for loaded == nil && stream.Receive() {
		msg := stream.Msg()
		assert.Greater(t, msg.SequenceNo, lastSeq)
		lastSeq = msg.SequenceNo
		if msg.Type == "track_loaded" {
			loaded = msg
		}
	}
	require.NotNil(t, loaded)
	require.NotNil(t, loaded.Status.Track)
	assert.Equal(t, "s1", loaded.Status.Track.ID)
	assert.Equal(t, 0, loaded.Status.CurrentIndex)

	// Closing the session ends the stream.
	require.NoError(t, env.client.CloseSession(ctx, id))
	for stream.Receive() {
	}
	assert.NoError(t, stream.Err())
}
