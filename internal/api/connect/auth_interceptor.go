// Package connect provides the PlayerService over Connect RPC.
package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

const (
	// AuthorizationHeader carries the viewer's bearer token.
	AuthorizationHeader = "Authorization"

	bearerPrefix = "Bearer "
)

var errMissingToken = errors.New("missing bearer token")

type tokenKey struct{}

// viewerToken returns the bearer token stored by the auth interceptor.
func viewerToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

func bearerToken(h interface{ Get(string) string }) (string, bool) {
	v := h.Get(AuthorizationHeader)
	if len(v) <= len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(v[len(bearerPrefix):])
	return token, token != ""
}

// authInterceptor requires a viewer bearer token on every PlayerService call
// and makes it available to the handlers. The token itself is validated by
// the catalog API it is forwarded to.
type authInterceptor struct{}

// NewAuthInterceptor creates the viewer authentication interceptor.
func NewAuthInterceptor() connect.Interceptor {
	return authInterceptor{}
}

func (authInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		token, ok := bearerToken(req.Header())
		if !ok {
			return nil, connect.NewError(connect.CodeUnauthenticated, errMissingToken)
		}
		return next(context.WithValue(ctx, tokenKey{}, token), req)
	}
}

func (authInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (authInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		token, ok := bearerToken(conn.RequestHeader())
		if !ok {
			return connect.NewError(connect.CodeUnauthenticated, errMissingToken)
		}
		return next(context.WithValue(ctx, tokenKey{}, token), conn)
	}
}

// NewTokenInterceptor attaches token as the bearer credential of client calls.
func NewTokenInterceptor(token string) connect.Interceptor {
	return tokenInterceptor{token: token}
}

type tokenInterceptor struct {
	token string
}

func (i tokenInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			req.Header().Set(AuthorizationHeader, bearerPrefix+i.token)
		}
		return next(ctx, req)
	}
}

func (i tokenInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		conn.RequestHeader().Set(AuthorizationHeader, bearerPrefix+i.token)
		return conn
	}
}

func (i tokenInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
