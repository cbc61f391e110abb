package biz

import (
	"context"
	"fmt"
	"time"

	"LeadLane/internal/conf"
	"LeadLane/internal/model"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// serviceLimit is one service's fixed-window budget.
type serviceLimit struct {
	requests int64
	period   time.Duration
}

// RateLimiterUseCase implements per-service fixed-window rate limiting on
// Redis counters. Budgets are configured per service, independently of the
// breaker's thresholds. Limiter state has its own lifecycle and resets each
// window.
//
// Redis degradation: on store failure the limiter logs a warning and allows
// the request.
type RateLimiterUseCase struct {
	repo   RateLimitRepo
	limits map[model.ThirdPartyService]serviceLimit
	logger *log.Helper
}

// NewRateLimiterUseCase creates the rate limiter from the configured
// per-service budgets. Budget validation happens at config load.
func NewRateLimiterUseCase(c *conf.RateLimit, repo RateLimitRepo, logger log.Logger) *RateLimiterUseCase {
	limits := make(map[model.ThirdPartyService]serviceLimit)
	if c != nil {
		for name, svcLimit := range c.Services {
			service, err := model.ParseService(name)
			if err != nil {
				continue
			}
			limits[service] = serviceLimit{
				requests: int64(svcLimit.Requests),
				period:   svcLimit.Period.AsDuration(),
			}
		}
	}
	return &RateLimiterUseCase{
		repo:   repo,
		limits: limits,
		logger: log.NewHelper(logger),
	}
}

// Allow reports whether one more request to the service fits the current
// window. When rejected, retryAfter tells the caller how long until the
// window resets.
func (uc *RateLimiterUseCase) Allow(ctx context.Context, service model.ThirdPartyService) (bool, time.Duration) {
	limit, ok := uc.limits[service]
	if !ok || limit.requests <= 0 {
		// No budget configured, allow request
		return true, 0
	}

	count, err := uc.repo.IncrementRequests(ctx, service, limit.period)
	if err != nil {
		uc.logger.Warnf("rate limit check failed for %s: %v (request allowed)", service, err)
		return true, 0
	}

	if count > limit.requests {
		retryAfter, err := uc.repo.RetryAfter(ctx, service)
		if err != nil || retryAfter <= 0 {
			retryAfter = limit.period
		}
		uc.logger.Warnw("rate limit exceeded",
			"service", service,
			"current", count,
			"limit", limit.requests,
			"retry_after", retryAfter)
		return false, retryAfter
	}

	return true, 0
}

// Remaining returns how many requests are left in the service's current
// window, for client-facing error messages. Returns the full budget when no
// window is active and -1 when the service has no budget configured.
func (uc *RateLimiterUseCase) Remaining(ctx context.Context, service model.ThirdPartyService) int64 {
	limit, ok := uc.limits[service]
	if !ok || limit.requests <= 0 {
		return -1
	}
	count, err := uc.repo.GetRequestCount(ctx, service)
	if err != nil {
		uc.logger.Warnf("failed to read rate limit count for %s: %v", service, err)
		return limit.requests
	}
	remaining := limit.requests - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// NewRateLimitExceededError builds the structured 429 returned to callers
// when a service's window is exhausted.
func NewRateLimitExceededError(service model.ThirdPartyService, retryAfter time.Duration) *errors.Error {
	return errors.New(
		429,
		"RATE_LIMIT_EXCEEDED",
		fmt.Sprintf("rate limit exceeded for %s: retry after %s", service, retryAfter),
	).WithMetadata(map[string]string{
		"service":     service.String(),
		"retry_after": retryAfter.String(),
	})
}
