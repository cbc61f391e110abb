package biz

import (
	"context"
	"time"
)

// AuditLogger defines the interface for the persistent circuit audit trail.
type AuditLogger interface {
	// LogCircuitBroken logs an automatic circuit trip.
	LogCircuitBroken(ctx context.Context, service string, reason string, failureCount int64, brokenAt time.Time)

	// LogCircuitRecovered logs a circuit closing after successful probes.
	LogCircuitRecovered(ctx context.Context, service string, recoverTime time.Duration, probeCount int64)

	// LogManualPause logs an operator pause override.
	LogManualPause(ctx context.Context, service string, reason string)

	// LogManualResume logs an operator resume override.
	LogManualResume(ctx context.Context, service string)
}
