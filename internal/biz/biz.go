// Package biz contains business logic layer implementations.
// This layer holds the fault-tolerance coordination rules: circuit breaker,
// queue pause propagation, rate limiting and the outbound guard.
package biz

import (
	"LeadLane/internal/data"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewCircuitBreakerUsecase,
	NewQueuePauseCoordinator,
	NewRateLimiterUseCase,
	NewOutboundGuard,
	// Import data layer providers
	data.NewCircuitStore,
	data.NewRateLimitRepo,
	data.NewJobRepo,
	data.NewCampaignRepo,
	data.NewAuditLogger,
	data.NewLogAlertService,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(CircuitStore), new(*data.CircuitStore)),
	wire.Bind(new(RateLimitRepo), new(*data.RateLimitRepo)),
	wire.Bind(new(JobRepo), new(*data.JobRepo)),
	wire.Bind(new(CampaignRepo), new(*data.CampaignRepo)),
	wire.Bind(new(AuditLogger), new(*data.AuditLoggerImpl)),
	wire.Bind(new(AlertService), new(*data.LogAlertService)),
)
