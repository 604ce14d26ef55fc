// Package connect provides the WorkoutService Connect RPC surface.
package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"
)

const (
	// APITokenHeader is the header name for the API access token.
	APITokenHeader = "X-API-Token"
	// SpotifyTokenHeader carries the user access token for BuildPlaylist.
	SpotifyTokenHeader = "X-Spotify-Token"
)

// NewAPITokenInterceptor creates an interceptor that requires the configured
// API token on every call. An empty token disables the check.
func NewAPITokenInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		if token == "" {
			return next
		}
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			got := req.Header().Get(APITokenHeader)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return nil, connect.NewError(connect.CodeUnauthenticated, nil)
			}
			return next(ctx, req)
		}
	}
}
