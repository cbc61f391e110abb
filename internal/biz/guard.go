package biz

import (
	"context"
	"errors"
	"net"
	"strings"

	"LeadLane/internal/conf"
	"LeadLane/internal/model"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// errRateLimited feeds the breaker when limiter exhaustion is configured to
// count as a failure signal.
var errRateLimited = errors.New("rate limit exhausted")

// OutboundGuard is the worker-facing entry point in front of every external
// call: Acquire before dialing, Report with the outcome. It consults the
// rate limiter first, then the circuit breaker, and keeps the two signal
// paths separate so self-inflicted throttling does not trip the breaker
// unless explicitly configured to.
type OutboundGuard struct {
	limiter *RateLimiterUseCase
	breaker *CircuitBreakerUsecase
	logger  *log.Helper

	treatLimitAsFailure bool
}

// NewOutboundGuard creates the guard.
func NewOutboundGuard(c *conf.Breaker, limiter *RateLimiterUseCase, breaker *CircuitBreakerUsecase, logger log.Logger) *OutboundGuard {
	return &OutboundGuard{
		limiter:             limiter,
		breaker:             breaker,
		logger:              log.NewHelper(logger),
		treatLimitAsFailure: c.TreatLimitAsFailure,
	}
}

// Acquire reports whether a call to the service may proceed. A rejection is
// cheap and local: no outbound call is made, and the returned error carries
// a structured retry-after hint instead of a raw dependency error.
func (g *OutboundGuard) Acquire(ctx context.Context, service model.ThirdPartyService) error {
	allowed, retryAfter := g.limiter.Allow(ctx, service)
	if !allowed {
		if g.treatLimitAsFailure {
			g.breaker.RecordFailure(ctx, service, errRateLimited, "rate_limited")
		}
		return NewRateLimitExceededError(service, retryAfter)
	}

	allowed, reason := g.breaker.ShouldAllowRequest(ctx, service)
	if !allowed {
		return kerrors.New(
			503,
			"CIRCUIT_OPEN",
			reason,
		).WithMetadata(map[string]string{
			"service":     service.String(),
			"retry_after": g.breaker.RecoveryTimeout().String(),
		})
	}

	return nil
}

// Report records the outcome of a call made after a successful Acquire and
// returns whether this outcome caused (or kept) the circuit open, so the
// caller can short-circuit retries immediately.
func (g *OutboundGuard) Report(ctx context.Context, service model.ThirdPartyService, callErr error) bool {
	if callErr == nil {
		if err := g.breaker.RecordSuccess(ctx, service); err != nil {
			g.logger.Warnw("failed to record success", "service", service, "error", err)
		}
		return false
	}
	return g.breaker.RecordFailure(ctx, service, callErr, ClassifyError(callErr))
}

// ClassifyError buckets an upstream error into the advisory error kind
// stored with the failure entry.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}

	var ke *kerrors.Error
	if errors.As(err, &ke) {
		switch {
		case ke.Code == 429:
			return "rate_limited"
		case ke.Code == 401 || ke.Code == 403:
			return "auth"
		case ke.Code >= 500:
			return "server_error"
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return "rate_limited"
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return "network"
	default:
		return "unknown"
	}
}
