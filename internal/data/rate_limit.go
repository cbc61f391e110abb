package data

import (
	"context"
	"fmt"
	"time"

	"LeadLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// RateLimitRepo implements biz.RateLimitRepo on Redis fixed-window counters.
// Following Kratos v2 DDD architecture, the interface is defined in the biz
// layer.
type RateLimitRepo struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewRateLimitRepo creates a new rate limit repository.
func NewRateLimitRepo(rdb *redis.Client, logger log.Logger) *RateLimitRepo {
	return &RateLimitRepo{
		rdb:    rdb,
		logger: log.NewHelper(logger),
	}
}

// IncrementRequests increments the service's window counter, setting the
// window expiry on the first increment (atomic INCR + EXPIRE), and returns
// the new count.
func (r *RateLimitRepo) IncrementRequests(ctx context.Context, service model.ThirdPartyService, period time.Duration) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := rateLimitKey(service)

	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment request count: %w", err)
	}

	if count == 1 {
		if err := r.rdb.Expire(ctx, key, period).Err(); err != nil {
			r.logger.Warnf("failed to set rate limit expiration for %s: %v", service, err)
			// Don't return error, counter is still incremented
		}
	}

	return count, nil
}

// GetRequestCount retrieves the current window count. Returns 0 if no
// window is active.
func (r *RateLimitRepo) GetRequestCount(ctx context.Context, service model.ThirdPartyService) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	count, err := r.rdb.Get(ctx, rateLimitKey(service)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get request count: %w", err)
	}
	return count, nil
}

// RetryAfter returns the remaining lifetime of the current window, 0 when no
// window is active.
func (r *RateLimitRepo) RetryAfter(ctx context.Context, service model.ThirdPartyService) (time.Duration, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	ttl, err := r.rdb.TTL(ctx, rateLimitKey(service)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get window TTL: %w", err)
	}
	if ttl < 0 {
		// -1 no expiry, -2 no key; either way there is nothing to wait for.
		return 0, nil
	}
	return ttl, nil
}

// rateLimitKey generates the fixed-window counter key.
// Format: ratelimit:{service}
func rateLimitKey(service model.ThirdPartyService) string {
	return fmt.Sprintf("ratelimit:%s", service)
}
