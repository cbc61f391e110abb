package biz

import (
	"context"
	"time"

	"LeadLane/internal/model"
)

// CircuitStore defines the shared-store operations the circuit breaker needs.
// Following Kratos v2 DDD architecture, the interface is defined in the biz
// layer and implemented in the data layer on Redis. Every method delegates
// to an atomic store primitive so callers need no in-process locking, and an
// in-memory fake is enough to test the breaker logic.
type CircuitStore interface {
	// Circuit record operations. GetRecord returns (nil, nil) when no record
	// exists, which always means the circuit is closed.
	GetRecord(ctx context.Context, service model.ThirdPartyService) (*model.CircuitRecord, error)
	SetRecord(ctx context.Context, service model.ThirdPartyService, record *model.CircuitRecord, ttl time.Duration) error
	DeleteRecord(ctx context.Context, service model.ThirdPartyService) error

	// Failure window operations. AddFailure appends one entry, prunes entries
	// older than the window and returns the surviving cardinality.
	AddFailure(ctx context.Context, service model.ThirdPartyService, at time.Time, errorKind string, window time.Duration) (int64, error)
	FailureCount(ctx context.Context, service model.ThirdPartyService, asOf time.Time, window time.Duration) (int64, error)
	ClearFailures(ctx context.Context, service model.ThirdPartyService) error

	// Half-open success counter operations. The counter expires after ttl so
	// an abandoned probe phase cleans itself up.
	IncrHalfOpenSuccesses(ctx context.Context, service model.ThirdPartyService, ttl time.Duration) (int64, error)
	ClearHalfOpenSuccesses(ctx context.Context, service model.ThirdPartyService) error

	// Queue pause flag operations. SetPauseFlag is a single idempotent
	// overwrite, never a read-modify-write, so a pause always wins over a
	// racing resume issued before the pause's side effects finish.
	// GetPauseFlag returns (nil, nil) when the flag is absent.
	SetPauseFlag(ctx context.Context, service model.ThirdPartyService, info *model.PauseInfo, ttl time.Duration) error
	ClearPauseFlag(ctx context.Context, service model.ThirdPartyService) error
	GetPauseFlag(ctx context.Context, service model.ThirdPartyService) (*model.PauseInfo, error)
}
