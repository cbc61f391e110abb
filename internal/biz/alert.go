package biz

import (
	"context"

	"LeadLane/internal/model"
)

// AlertService defines the interface for operator-facing transition alerts.
// The breaker emits exactly one event per actual state transition.
type AlertService interface {
	// NotifyCircuitOpened sends a critical alert when a circuit trips open.
	NotifyCircuitOpened(ctx context.Context, event *model.CircuitEvent) error

	// NotifyCircuitHalfOpen sends an info alert when an open circuit starts
	// probing for recovery.
	NotifyCircuitHalfOpen(ctx context.Context, event *model.CircuitEvent) error

	// NotifyCircuitClosed sends an info alert when a circuit recovers.
	NotifyCircuitClosed(ctx context.Context, event *model.CircuitEvent) error
}
