package data

import (
	"context"

	"LeadLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// LogAlertService implements biz.AlertService by writing structured log
// events. The log stream is the alert channel operators tail in production;
// an HTTP webhook sink can replace this without touching the breaker.
type LogAlertService struct {
	logger *log.Helper
}

// NewLogAlertService creates a new log-backed alert service.
func NewLogAlertService(logger log.Logger) *LogAlertService {
	return &LogAlertService{
		logger: log.NewHelper(logger),
	}
}

// NotifyCircuitOpened emits a critical alert for a circuit trip.
func (s *LogAlertService) NotifyCircuitOpened(ctx context.Context, event *model.CircuitEvent) error {
	s.logger.Errorw("ALERT circuit opened",
		"severity", "critical",
		"service", event.Service,
		"old_state", event.OldState,
		"new_state", event.NewState,
		"failure_reason", event.FailureReason,
		"failure_count", event.FailureCount,
		"timestamp", event.Timestamp)
	return nil
}

// NotifyCircuitHalfOpen emits an info alert for the start of recovery probing.
func (s *LogAlertService) NotifyCircuitHalfOpen(ctx context.Context, event *model.CircuitEvent) error {
	s.logger.Infow("ALERT circuit half-open",
		"severity", "info",
		"service", event.Service,
		"old_state", event.OldState,
		"new_state", event.NewState,
		"timestamp", event.Timestamp)
	return nil
}

// NotifyCircuitClosed emits an info alert for a recovered circuit.
func (s *LogAlertService) NotifyCircuitClosed(ctx context.Context, event *model.CircuitEvent) error {
	s.logger.Infow("ALERT circuit closed",
		"severity", "info",
		"service", event.Service,
		"old_state", event.OldState,
		"new_state", event.NewState,
		"timestamp", event.Timestamp)
	return nil
}
