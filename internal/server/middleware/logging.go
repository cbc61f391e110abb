package middleware

import (
	"context"
	"time"

	pkglog "LeadLane/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// RequestLogger logs one line per request with method, path, status code and
// latency.
func RequestLogger(logger log.Logger) middleware.Middleware {
	helper := log.NewHelper(logger)

	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			start := time.Now()
			requestID := pkglog.GenerateRequestID()

			var method, path string
			if tr, ok := transport.FromServerContext(ctx); ok {
				if ht, ok := tr.(http.Transporter); ok {
					method = ht.Request().Method
					path = ht.Request().URL.Path
				}
			}

			reply, err := handler(ctx, req)

			code := 200
			if err != nil {
				code = int(errors.FromError(err).Code)
			}
			elapsed := time.Since(start)

			if err != nil {
				helper.Warnw(
					"request_id", requestID,
					"method", method,
					"path", path,
					"code", code,
					"latency_ms", elapsed.Milliseconds(),
					"error", err.Error(),
				)
			} else {
				helper.Infow(
					"request_id", requestID,
					"method", method,
					"path", path,
					"code", code,
					"latency_ms", elapsed.Milliseconds(),
				)
			}

			return reply, err
		}
	}
}
