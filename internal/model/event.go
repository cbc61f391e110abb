package model

import "time"

// CircuitEvent describes a single circuit state transition. One event is
// emitted per actual transition; two workers racing on the same trip must
// not produce a burst of duplicates.
type CircuitEvent struct {
	Service       ThirdPartyService `json:"service"`
	OldState      CircuitState      `json:"old_state"`
	NewState      CircuitState      `json:"new_state"`
	FailureReason string            `json:"failure_reason,omitempty"`
	FailureCount  int64             `json:"failure_count,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Audit event type constants persisted to the circuit_audit_logs table.
const (
	AuditEventCircuitBroken    = "CIRCUIT_BROKEN"
	AuditEventCircuitRecovered = "CIRCUIT_RECOVERED"
	AuditEventManualPause      = "MANUAL_PAUSE"
	AuditEventManualResume     = "MANUAL_RESUME"
)
