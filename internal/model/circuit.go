package model

import "time"

// CircuitState is the per-service circuit breaker state.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

func (s CircuitState) String() string {
	return string(s)
}

// CircuitMetadata carries advisory context about the last trip. It is never
// consulted for allow/deny decisions.
type CircuitMetadata struct {
	LastError    string `json:"last_error,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	FailureCount int64  `json:"failure_count,omitempty"`
	Manual       bool   `json:"manual,omitempty"`
}

// CircuitRecord is the authoritative per-service record stored under
// circuit:{service}. Absence of the record always means CLOSED.
type CircuitRecord struct {
	State    CircuitState    `json:"state"`
	OpenedAt time.Time       `json:"opened_at,omitempty"`
	Metadata CircuitMetadata `json:"metadata,omitempty"`
}

// PauseInfo is the payload of the queue pause flag stored under
// queue:paused:{service}. Presence of the flag means no new work depending
// on the service should be dispatched.
type PauseInfo struct {
	Service  string    `json:"service"`
	PausedAt time.Time `json:"paused_at"`
	Reason   string    `json:"reason"`
}

// ServiceStatus is one entry of the operator-facing status snapshot.
type ServiceStatus struct {
	Service          ThirdPartyService `json:"service"`
	CircuitState     CircuitState      `json:"circuit_state"`
	QueuePaused      bool              `json:"queue_paused"`
	PauseInfo        *PauseInfo        `json:"pause_info,omitempty"`
	FailureCount     int64             `json:"failure_count"`
	FailureThreshold int32             `json:"failure_threshold"`
}
