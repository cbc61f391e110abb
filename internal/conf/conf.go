package conf

import "google.golang.org/protobuf/types/known/durationpb"

// Bootstrap is the top-level configuration tree.
type Bootstrap struct {
	Server    *Server
	Data      *Data
	Auth      *Auth
	Breaker   *Breaker
	RateLimit *RateLimit
	Log       *Log
}

// Server holds transport configuration.
type Server struct {
	Http *Server_HTTP
}

// Server_HTTP holds the HTTP listener configuration.
type Server_HTTP struct {
	Network string
	Addr    string
	Timeout *durationpb.Duration
}

// Data holds data source configuration.
type Data struct {
	Database *Data_Database
	Redis    *Data_Redis
}

// Data_Database holds the relational store connection settings.
type Data_Database struct {
	Driver string
	Source string
}

// Data_Redis holds the shared state store connection settings.
type Data_Redis struct {
	Network      string
	Addr         string
	ReadTimeout  *durationpb.Duration
	WriteTimeout *durationpb.Duration
}

// Auth guards the admin surface (pause/resume endpoints).
type Auth struct {
	ApiKey string
}

// Breaker holds the circuit breaker thresholds. All values are externally
// configurable; invalid values are fatal at startup.
type Breaker struct {
	// FailureThreshold is the number of failures inside FailureWindow that
	// trips a circuit from closed to open.
	FailureThreshold int32
	// FailureWindow is the trailing window in which failures are counted.
	FailureWindow *durationpb.Duration
	// RecoveryTimeout is how long an open circuit waits before the next
	// state read promotes it to half-open.
	RecoveryTimeout *durationpb.Duration
	// SuccessThreshold is the number of consecutive half-open successes
	// required to close a circuit again.
	SuccessThreshold int32
	// TreatLimitAsFailure routes rate limiter rejections into the failure
	// window. Off by default: self-inflicted throttling should not trip
	// the breaker unless explicitly requested.
	TreatLimitAsFailure bool
}

// RateLimit holds the per-service request budgets, independent of the
// breaker thresholds.
type RateLimit struct {
	Services map[string]*RateLimit_Service
}

// RateLimit_Service is one service's fixed-window budget.
type RateLimit_Service struct {
	Requests int32
	Period   *durationpb.Duration
}

// Log holds logging configuration.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}
