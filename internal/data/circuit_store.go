package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"LeadLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// CircuitStore implements biz.CircuitStore on Redis. One logical slot per
// service, shared by every worker and API process:
//
//	circuit:{S}                     string JSON, TTL 2x failure window
//	circuit:{S}:failures            sorted set (score = unix seconds), TTL failure window
//	circuit:{S}:half_open_successes counter, TTL recovery timeout
//	queue:paused:{S}                string JSON, TTL 1h safety net
//
// All mutation goes through atomic Redis primitives; no in-process state is
// kept, so a trip written by one process is visible to all others on their
// next read.
type CircuitStore struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewCircuitStore creates a new circuit state store.
func NewCircuitStore(data *Data, logger log.Logger) *CircuitStore {
	return &CircuitStore{
		rdb:    data.GetRedisClient(),
		logger: log.NewHelper(logger),
	}
}

// GetRecord reads the circuit record for a service. Returns (nil, nil) when
// no record exists; absence always means closed.
func (s *CircuitStore) GetRecord(ctx context.Context, service model.ThirdPartyService) (*model.CircuitRecord, error) {
	if s.rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	raw, err := s.rdb.Get(ctx, circuitKey(service)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get circuit record: %w", err)
	}

	var record model.CircuitRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		// A corrupt record is treated as absent rather than blocking traffic.
		s.logger.Warnw("corrupt circuit record, treating as closed",
			"service", service, "error", err)
		return nil, nil
	}
	return &record, nil
}

// SetRecord overwrites the circuit record with the given TTL.
func (s *CircuitStore) SetRecord(ctx context.Context, service model.ThirdPartyService, record *model.CircuitRecord, ttl time.Duration) error {
	if s.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal circuit record: %w", err)
	}
	if err := s.rdb.Set(ctx, circuitKey(service), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set circuit record: %w", err)
	}
	return nil
}

// DeleteRecord removes the circuit record.
func (s *CircuitStore) DeleteRecord(ctx context.Context, service model.ThirdPartyService) error {
	if s.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := s.rdb.Del(ctx, circuitKey(service)).Err(); err != nil {
		return fmt.Errorf("failed to delete circuit record: %w", err)
	}
	return nil
}

// AddFailure appends one failure entry to the sliding window, prunes entries
// older than the window and returns the surviving cardinality. The member
// embeds the timestamp so distinct failures in the same second stay distinct.
func (s *CircuitStore) AddFailure(ctx context.Context, service model.ThirdPartyService, at time.Time, errorKind string, window time.Duration) (int64, error) {
	if s.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := failuresKey(service)
	member := fmt.Sprintf("%d:%s", at.UnixNano(), errorKind)

	if err := s.rdb.ZAdd(ctx, key, redis.Z{
		Score:  float64(at.Unix()),
		Member: member,
	}).Err(); err != nil {
		return 0, fmt.Errorf("failed to add failure entry: %w", err)
	}

	// Opportunistic prune on every write keeps the cardinality equal to the
	// live failure count.
	cutoff := at.Add(-window).Unix()
	if err := s.rdb.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return 0, fmt.Errorf("failed to prune failure window: %w", err)
	}

	if err := s.rdb.Expire(ctx, key, window).Err(); err != nil {
		s.logger.Warnw("failed to set failure window TTL", "service", service, "error", err)
	}

	count, err := s.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count failure window: %w", err)
	}
	return count, nil
}

// FailureCount prunes and returns the live failure count without adding an
// entry.
func (s *CircuitStore) FailureCount(ctx context.Context, service model.ThirdPartyService, asOf time.Time, window time.Duration) (int64, error) {
	if s.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := failuresKey(service)
	cutoff := asOf.Add(-window).Unix()
	if err := s.rdb.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return 0, fmt.Errorf("failed to prune failure window: %w", err)
	}

	count, err := s.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count failure window: %w", err)
	}
	return count, nil
}

// ClearFailures deletes the failure window.
func (s *CircuitStore) ClearFailures(ctx context.Context, service model.ThirdPartyService) error {
	if s.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := s.rdb.Del(ctx, failuresKey(service)).Err(); err != nil {
		return fmt.Errorf("failed to clear failure window: %w", err)
	}
	return nil
}

// IncrHalfOpenSuccesses increments the probe success counter and returns the
// new count. The TTL is set on first increment so an abandoned probe phase
// expires on its own.
func (s *CircuitStore) IncrHalfOpenSuccesses(ctx context.Context, service model.ThirdPartyService, ttl time.Duration) (int64, error) {
	if s.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := halfOpenKey(service)
	count, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment half-open success count: %w", err)
	}

	if count == 1 {
		if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			s.logger.Warnw("failed to set half-open counter TTL", "service", service, "error", err)
		}
	}
	return count, nil
}

// ClearHalfOpenSuccesses deletes the probe success counter.
func (s *CircuitStore) ClearHalfOpenSuccesses(ctx context.Context, service model.ThirdPartyService) error {
	if s.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := s.rdb.Del(ctx, halfOpenKey(service)).Err(); err != nil {
		return fmt.Errorf("failed to clear half-open success count: %w", err)
	}
	return nil
}

// SetPauseFlag overwrites the queue pause flag. A single SET, never a
// read-modify-write.
func (s *CircuitStore) SetPauseFlag(ctx context.Context, service model.ThirdPartyService, info *model.PauseInfo, ttl time.Duration) error {
	if s.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal pause info: %w", err)
	}
	if err := s.rdb.Set(ctx, pausedKey(service), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set pause flag: %w", err)
	}
	return nil
}

// ClearPauseFlag deletes the queue pause flag.
func (s *CircuitStore) ClearPauseFlag(ctx context.Context, service model.ThirdPartyService) error {
	if s.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := s.rdb.Del(ctx, pausedKey(service)).Err(); err != nil {
		return fmt.Errorf("failed to clear pause flag: %w", err)
	}
	return nil
}

// GetPauseFlag reads the queue pause flag. Returns (nil, nil) when absent.
func (s *CircuitStore) GetPauseFlag(ctx context.Context, service model.ThirdPartyService) (*model.PauseInfo, error) {
	if s.rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	raw, err := s.rdb.Get(ctx, pausedKey(service)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pause flag: %w", err)
	}

	var info model.PauseInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		s.logger.Warnw("corrupt pause flag, treating as absent",
			"service", service, "error", err)
		return nil, nil
	}
	return &info, nil
}

// circuitKey generates the circuit record key. Format: circuit:{service}
func circuitKey(service model.ThirdPartyService) string {
	return fmt.Sprintf("circuit:%s", service)
}

// failuresKey generates the failure window key. Format: circuit:{service}:failures
func failuresKey(service model.ThirdPartyService) string {
	return fmt.Sprintf("circuit:%s:failures", service)
}

// halfOpenKey generates the probe counter key. Format: circuit:{service}:half_open_successes
func halfOpenKey(service model.ThirdPartyService) string {
	return fmt.Sprintf("circuit:%s:half_open_successes", service)
}

// pausedKey generates the pause flag key. Format: queue:paused:{service}
func pausedKey(service model.ThirdPartyService) string {
	return fmt.Sprintf("queue:paused:%s", service)
}
