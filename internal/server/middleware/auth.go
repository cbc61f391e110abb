// Package middleware provides HTTP middleware for authentication and
// request logging.
package middleware

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// Auth returns a middleware guarding the admin surface with a static API
// key. The key is accepted as "Authorization: Bearer {key}" or "X-API-Key".
// An empty configured key disables the check (local development).
func Auth(apiKey string, logger log.Logger) middleware.Middleware {
	helper := log.NewHelper(logger)

	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if apiKey == "" {
				return handler(ctx, req)
			}

			presented := extractAPIKey(ctx)
			if presented == "" {
				helper.Warnw("request rejected: missing API key")
				return nil, errors.Unauthorized("UNAUTHORIZED", "missing API key")
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
				helper.Warnw("request rejected: invalid API key", "key", maskAPIKey(presented))
				return nil, errors.Unauthorized("UNAUTHORIZED", "invalid API key")
			}

			return handler(ctx, req)
		}
	}
}

// extractAPIKey pulls the API key from the Authorization or X-API-Key header.
func extractAPIKey(ctx context.Context) string {
	tr, ok := transport.FromServerContext(ctx)
	if !ok {
		return ""
	}
	ht, ok := tr.(http.Transporter)
	if !ok {
		return ""
	}

	req := ht.Request()
	if auth := req.Header.Get("Authorization"); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return req.Header.Get("X-API-Key")
}

// maskAPIKey keeps only the first 8 characters for logging.
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8] + "..."
}
