package biz

import (
	"context"
	"fmt"
	"time"

	"LeadLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// pauseFlagTTL is the safety net on queue pause flags so that a crashed
// process cannot leave a service paused forever. The flag is re-asserted by
// the breaker while the circuit stays open.
const pauseFlagTTL = time.Hour

// JobRepo defines the job store operations the pause coordinator needs.
// Implemented in the data layer on GORM.
type JobRepo interface {
	// PauseJobsForService marks pending/processing jobs that depend on the
	// service as paused and returns how many rows changed.
	PauseJobsForService(ctx context.Context, service model.ThirdPartyService, reason string) (int64, error)
	// ResumeJobsForService returns paused jobs for the service to pending.
	ResumeJobsForService(ctx context.Context, service model.ThirdPartyService) (int64, error)
	// GetPausedJobsByService lists the jobs currently parked for a service.
	GetPausedJobsByService(ctx context.Context, service model.ThirdPartyService) ([]*model.Job, error)
	// CountJobsByStatus returns job counts grouped by status, for the
	// status surface.
	CountJobsByStatus(ctx context.Context) (map[string]int64, error)
}

// CampaignRepo defines the campaign store operations the pause coordinator
// needs. Implemented in the data layer on GORM.
type CampaignRepo interface {
	// PauseRunningCampaigns pauses running campaigns with a status message
	// naming the failed service and returns how many rows changed.
	PauseRunningCampaigns(ctx context.Context, service model.ThirdPartyService, message string) (int64, error)
	// ResumeCircuitPausedCampaigns returns campaigns paused by the breaker
	// to running. Only called once no service remains paused.
	ResumeCircuitPausedCampaigns(ctx context.Context) (int64, error)
}

// QueuePauseCoordinator translates circuit transitions into "stop dispatching
// new work depending on this service" and the inverse. The pause flag in the
// shared store is the contract dispatch logic honors; job/campaign updates
// in the relational store park in-flight work as paused rather than failed.
//
// Pause and Resume are idempotent: each flag write is a single overwrite,
// never a read-modify-write, so a pause always wins over a racing resume
// issued before the pause's side effects finish.
type QueuePauseCoordinator struct {
	store     CircuitStore
	jobs      JobRepo
	campaigns CampaignRepo
	logger    *log.Helper

	now func() time.Time
}

// NewQueuePauseCoordinator creates the pause coordinator.
func NewQueuePauseCoordinator(store CircuitStore, jobs JobRepo, campaigns CampaignRepo, logger log.Logger) *QueuePauseCoordinator {
	return &QueuePauseCoordinator{
		store:     store,
		jobs:      jobs,
		campaigns: campaigns,
		logger:    log.NewHelper(logger),
		now:       time.Now,
	}
}

// Pause marks the service as paused and parks its dependent work. Calling it
// twice produces the same end state with no duplicate side effects.
func (c *QueuePauseCoordinator) Pause(ctx context.Context, service model.ThirdPartyService, reason string) error {
	info := &model.PauseInfo{
		Service:  service.String(),
		PausedAt: c.now(),
		Reason:   reason,
	}
	if err := c.store.SetPauseFlag(ctx, service, info, pauseFlagTTL); err != nil {
		// Best effort: the open circuit record still blocks dispatch.
		c.logger.Warnw("failed to set queue pause flag (degraded mode)",
			"service", service, "error", err)
	}

	pausedJobs, err := c.jobs.PauseJobsForService(ctx, service, reason)
	if err != nil {
		return fmt.Errorf("failed to pause jobs for %s: %w", service, err)
	}

	message := fmt.Sprintf("circuit_breaker: %s unavailable (%s)", service, reason)
	pausedCampaigns, err := c.campaigns.PauseRunningCampaigns(ctx, service, message)
	if err != nil {
		return fmt.Errorf("failed to pause campaigns for %s: %w", service, err)
	}

	c.logger.Infow("service queue paused",
		"service", service,
		"reason", reason,
		"jobs_paused", pausedJobs,
		"campaigns_paused", pausedCampaigns)
	return nil
}

// Resume clears the pause flag and returns parked work to a dispatchable
// state. Campaigns only resume once no other service remains paused, so a
// partial recovery does not restart work that still depends on a down
// dependency.
func (c *QueuePauseCoordinator) Resume(ctx context.Context, service model.ThirdPartyService) error {
	if err := c.store.ClearPauseFlag(ctx, service); err != nil {
		c.logger.Warnw("failed to clear queue pause flag (degraded mode)",
			"service", service, "error", err)
	}

	resumedJobs, err := c.jobs.ResumeJobsForService(ctx, service)
	if err != nil {
		return fmt.Errorf("failed to resume jobs for %s: %w", service, err)
	}

	var resumedCampaigns int64
	if len(c.PausedServices(ctx)) == 0 {
		resumedCampaigns, err = c.campaigns.ResumeCircuitPausedCampaigns(ctx)
		if err != nil {
			return fmt.Errorf("failed to resume campaigns after %s recovery: %w", service, err)
		}
	}

	c.logger.Infow("service queue resumed",
		"service", service,
		"jobs_resumed", resumedJobs,
		"campaigns_resumed", resumedCampaigns)
	return nil
}

// IsPaused reports whether the service's queue is paused, with the pause
// info when present. Used by dispatch logic to skip work and by the status
// surface. Store errors degrade to "not paused": the open circuit record is
// the authoritative guard.
func (c *QueuePauseCoordinator) IsPaused(ctx context.Context, service model.ThirdPartyService) (bool, *model.PauseInfo) {
	info, err := c.store.GetPauseFlag(ctx, service)
	if err != nil {
		c.logger.Warnw("failed to read queue pause flag (degraded mode: assume not paused)",
			"service", service, "error", err)
		return false, nil
	}
	return info != nil, info
}

// PausedServices returns every service whose queue is currently paused.
func (c *QueuePauseCoordinator) PausedServices(ctx context.Context) []model.ThirdPartyService {
	var paused []model.ThirdPartyService
	for _, service := range model.AllServices() {
		if ok, _ := c.IsPaused(ctx, service); ok {
			paused = append(paused, service)
		}
	}
	return paused
}

// PausedJobs lists the jobs parked for a service, for the recovery endpoint.
func (c *QueuePauseCoordinator) PausedJobs(ctx context.Context, service model.ThirdPartyService) ([]*model.Job, error) {
	return c.jobs.GetPausedJobsByService(ctx, service)
}

// JobCounts returns job counts grouped by status for the status surface.
func (c *QueuePauseCoordinator) JobCounts(ctx context.Context) (map[string]int64, error) {
	return c.jobs.CountJobsByStatus(ctx)
}
