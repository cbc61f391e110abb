// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables,
// with CLI flag overrides.
package conf

import (
	"fmt"
	"strings"
	"time"

	"LeadLane/internal/model"

	"github.com/spf13/viper"
	"google.golang.org/protobuf/types/known/durationpb"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with LEADLANE_.
//
// Configuration priority: CLI flags > Environment variables > Config file > Defaults
//
// Commonly overridden environment variables:
//   - MYSQL_DSN or LEADLANE_DATA_DATABASE_SOURCE: MySQL connection string
//   - LEADLANE_DATA_REDIS_ADDR: Redis address
//   - ADMIN_API_KEY or LEADLANE_AUTH_API_KEY: admin surface API key
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	setDefaults(v)

	// Enable environment variable support with LEADLANE_ prefix
	v.SetEnvPrefix("LEADLANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow direct environment variable names (without LEADLANE_ prefix)
	// for required fields
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "LEADLANE_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "LEADLANE_DATA_REDIS_ADDR")
	_ = v.BindEnv("auth.api_key", "ADMIN_API_KEY", "LEADLANE_AUTH_API_KEY")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// If config file is specified but not found, return error
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	bc := &Bootstrap{
		Server: &Server{
			Http: &Server_HTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: durationpb.New(v.GetDuration("server.http.timeout")),
			},
		},
		Data: &Data{
			Database: &Data_Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Data_Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				ReadTimeout:  durationpb.New(v.GetDuration("data.redis.read_timeout")),
				WriteTimeout: durationpb.New(v.GetDuration("data.redis.write_timeout")),
			},
		},
		Auth: &Auth{
			ApiKey: v.GetString("auth.api_key"),
		},
		Breaker: &Breaker{
			FailureThreshold:    v.GetInt32("breaker.failure_threshold"),
			FailureWindow:       durationpb.New(v.GetDuration("breaker.failure_window")),
			RecoveryTimeout:     durationpb.New(v.GetDuration("breaker.recovery_timeout")),
			SuccessThreshold:    v.GetInt32("breaker.success_threshold"),
			TreatLimitAsFailure: v.GetBool("breaker.treat_limit_as_failure"),
		},
		RateLimit: &RateLimit{
			Services: loadRateLimits(v),
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// loadRateLimits reads per-service rate limit budgets. Services without an
// explicit entry fall back to the default budget.
func loadRateLimits(v *viper.Viper) map[string]*RateLimit_Service {
	limits := make(map[string]*RateLimit_Service)

	defaultRequests := v.GetInt32("rate_limit.default.requests")
	defaultPeriod := v.GetDuration("rate_limit.default.period")

	for _, svc := range model.AllServices() {
		name := svc.String()
		requests := defaultRequests
		period := defaultPeriod

		if v.IsSet("rate_limit.services." + name + ".requests") {
			requests = v.GetInt32("rate_limit.services." + name + ".requests")
		}
		if v.IsSet("rate_limit.services." + name + ".period") {
			period = v.GetDuration("rate_limit.services." + name + ".period")
		}

		limits[name] = &RateLimit_Service{
			Requests: requests,
			Period:   durationpb.New(period),
		}
	}

	return limits
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 60*time.Second)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	// Note: data.database.source (MYSQL_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// Breaker defaults
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.failure_window", 300*time.Second)
	v.SetDefault("breaker.recovery_timeout", 60*time.Second)
	v.SetDefault("breaker.success_threshold", 3)
	v.SetDefault("breaker.treat_limit_as_failure", false)

	// Rate limit defaults (applied to every service without an override)
	v.SetDefault("rate_limit.default.requests", 60)
	v.SetDefault("rate_limit.default.period", 60*time.Second)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration fields are present and valid.
// Configuration errors are the only class of error that should be fatal.
func Validate(bc *Bootstrap) error {
	var problems []string

	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		problems = append(problems, "data.database.source (MYSQL_DSN) is required")
	}

	if bc.Breaker == nil {
		problems = append(problems, "breaker configuration is required")
	} else {
		if bc.Breaker.FailureThreshold <= 0 {
			problems = append(problems, fmt.Sprintf("breaker.failure_threshold must be positive, got %d", bc.Breaker.FailureThreshold))
		}
		if bc.Breaker.FailureWindow.AsDuration() <= 0 {
			problems = append(problems, "breaker.failure_window must be positive")
		}
		if bc.Breaker.RecoveryTimeout.AsDuration() <= 0 {
			problems = append(problems, "breaker.recovery_timeout must be positive")
		}
		if bc.Breaker.SuccessThreshold <= 0 {
			problems = append(problems, fmt.Sprintf("breaker.success_threshold must be positive, got %d", bc.Breaker.SuccessThreshold))
		}
	}

	if bc.RateLimit != nil {
		for name, limit := range bc.RateLimit.Services {
			if _, err := model.ParseService(name); err != nil {
				problems = append(problems, fmt.Sprintf("rate_limit.services.%s: unknown service", name))
				continue
			}
			if limit.Requests <= 0 {
				problems = append(problems, fmt.Sprintf("rate_limit.services.%s.requests must be positive, got %d", name, limit.Requests))
			}
			if limit.Period.AsDuration() <= 0 {
				problems = append(problems, fmt.Sprintf("rate_limit.services.%s.period must be positive", name))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return nil
}
