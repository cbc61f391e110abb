package biz

import (
	"context"
	"time"

	"LeadLane/internal/model"
)

// RateLimitRepo defines the interface for rate limit accounting.
// Following Kratos v2 DDD architecture, interfaces are defined in the biz
// layer; the implementation lives in the data layer on Redis fixed-window
// counters.
type RateLimitRepo interface {
	// IncrementRequests bumps the service's window counter, setting the
	// window expiry on the first increment, and returns the new count.
	IncrementRequests(ctx context.Context, service model.ThirdPartyService, period time.Duration) (int64, error)

	// GetRequestCount returns the current window count, 0 when no window
	// is active.
	GetRequestCount(ctx context.Context, service model.ThirdPartyService) (int64, error)

	// RetryAfter returns how long until the current window expires, 0 when
	// no window is active.
	RetryAfter(ctx context.Context, service model.ThirdPartyService) (time.Duration, error)
}
