package data

import (
	"context"
	"encoding/json"
	"time"

	"LeadLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// CircuitAuditLog is the GORM model for the circuit_audit_logs table.
type CircuitAuditLog struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	Service   string    `gorm:"column:service;type:varchar(50);not null;index"`
	EventType string    `gorm:"column:event_type;type:varchar(50);not null"`
	Details   string    `gorm:"column:details;type:json"` // JSON string
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (CircuitAuditLog) TableName() string {
	return "circuit_audit_logs"
}

// AuditLoggerImpl implements biz.AuditLogger with an async channel so a slow
// database never blocks the breaker's hot path.
type AuditLoggerImpl struct {
	db      *gorm.DB
	logChan chan *CircuitAuditLog
	logger  *log.Helper
}

// NewAuditLogger creates a new audit logger with async channel.
func NewAuditLogger(db *gorm.DB, logger log.Logger) *AuditLoggerImpl {
	al := &AuditLoggerImpl{
		db:      db,
		logChan: make(chan *CircuitAuditLog, 1000), // Buffer to prevent blocking
		logger:  log.NewHelper(logger),
	}

	go al.start()

	return al
}

// start processes audit log events from the channel.
func (a *AuditLoggerImpl) start() {
	for event := range a.logChan {
		ctx := context.Background()
		if err := a.db.WithContext(ctx).Create(event).Error; err != nil {
			a.logger.Errorw("failed to write circuit audit log",
				"service", event.Service,
				"event_type", event.EventType,
				"error", err)
		} else {
			a.logger.Debugw("circuit audit log written",
				"service", event.Service,
				"event_type", event.EventType)
		}
	}
}

// enqueue queues one event without blocking; full channel drops the event
// with a warning.
func (a *AuditLoggerImpl) enqueue(service, eventType string, details map[string]interface{}) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		a.logger.Errorw("failed to marshal audit log details", "error", err)
		return
	}

	event := &CircuitAuditLog{
		Service:   service,
		EventType: eventType,
		Details:   string(detailsJSON),
	}

	select {
	case a.logChan <- event:
		// Successfully queued
	default:
		a.logger.Warnw("audit log channel full, dropping event",
			"service", service,
			"event_type", eventType)
	}
}

// LogCircuitBroken logs an automatic circuit trip.
func (a *AuditLoggerImpl) LogCircuitBroken(ctx context.Context, service string, reason string, failureCount int64, brokenAt time.Time) {
	a.enqueue(service, model.AuditEventCircuitBroken, map[string]interface{}{
		"reason":        reason,
		"failure_count": failureCount,
		"broken_at":     brokenAt.UTC().Format(time.RFC3339),
	})
}

// LogCircuitRecovered logs a circuit closing after successful probes.
func (a *AuditLoggerImpl) LogCircuitRecovered(ctx context.Context, service string, recoverTime time.Duration, probeCount int64) {
	a.enqueue(service, model.AuditEventCircuitRecovered, map[string]interface{}{
		"recover_time_seconds": recoverTime.Seconds(),
		"probe_count":          probeCount,
	})
}

// LogManualPause logs an operator pause override.
func (a *AuditLoggerImpl) LogManualPause(ctx context.Context, service string, reason string) {
	a.enqueue(service, model.AuditEventManualPause, map[string]interface{}{
		"reason": reason,
	})
}

// LogManualResume logs an operator resume override.
func (a *AuditLoggerImpl) LogManualResume(ctx context.Context, service string) {
	a.enqueue(service, model.AuditEventManualResume, map[string]interface{}{})
}
