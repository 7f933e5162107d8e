package connect

import (
	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/kamerplay/internal/app/playback"
	"github.com/osa030/kamerplay/internal/app/resolver"
	"github.com/osa030/kamerplay/internal/app/session"
	"github.com/osa030/kamerplay/internal/app/session/registry"
	"github.com/osa030/kamerplay/internal/infra/catalog"
	"github.com/osa030/kamerplay/internal/infra/config"
)

// errorCode maps err to a connect code and a message code.
func errorCode(err error) (connect.Code, string) {
	switch {
	case errors.Is(err, registry.ErrSessionNotFound), errors.Is(err, session.ErrSessionClosed):
		return connect.CodeNotFound, "session_not_found"
	case errors.Is(err, catalog.ErrTrackNotFound):
		return connect.CodeNotFound, "track_not_found"
	case errors.Is(err, resolver.ErrNoPlayableSource):
		return connect.CodeFailedPrecondition, "no_playable_source"
	case errors.Is(err, playback.ErrPlaybackRejected):
		return connect.CodeAborted, "playback_rejected"
	case errors.Is(err, session.ErrInvalidUpload):
		return connect.CodeInvalidArgument, "invalid_upload"
	case errors.Is(err, session.ErrUploadTooLarge):
		return connect.CodeInvalidArgument, "upload_too_large"
	case errors.Is(err, registry.ErrTooManySessions):
		return connect.CodeResourceExhausted, "default_error"
	default:
		return connect.CodeInternal, "default_error"
	}
}

// toConnectError converts a domain error into a connect error carrying the
// configured user-facing message.
func toConnectError(cfg *config.Config, procedure string, err error) error {
	code, messageCode := errorCode(err)
	if code == connect.CodeInternal {
		zlog.Error().Msgf("rpc failed: procedure=%s error=%v", procedure, err)
	} else {
		zlog.Debug().Msgf("rpc rejected: procedure=%s code=%s error=%v", procedure, code, err)
	}

	connectErr := connect.NewError(code, errors.New(cfg.GetMessage(messageCode)))
	connectErr.Meta().Set("X-Error-Code", messageCode)
	return connectErr
}
