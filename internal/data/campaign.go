package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"LeadLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// circuitPausePrefix marks campaigns paused by the breaker, as opposed to
// campaigns an operator paused for business reasons. Only the former are
// auto-resumed on recovery.
const circuitPausePrefix = "circuit_breaker:"

// CampaignRepo implements biz.CampaignRepo on GORM.
type CampaignRepo struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewCampaignRepo creates a new campaign repository.
func NewCampaignRepo(db *gorm.DB, logger log.Logger) *CampaignRepo {
	return &CampaignRepo{
		db:     db,
		logger: log.NewHelper(logger),
	}
}

// PauseRunningCampaigns pauses running campaigns with a status message naming
// the failed service.
func (r *CampaignRepo) PauseRunningCampaigns(ctx context.Context, service model.ThirdPartyService, message string) (int64, error) {
	if !strings.HasPrefix(message, circuitPausePrefix) {
		message = circuitPausePrefix + " " + message
	}

	result := runWithRetry(r.logger, "pause_campaigns", func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&model.Campaign{}).
			Where("status = ?", model.CampaignRunning).
			Updates(map[string]interface{}{
				"status":         model.CampaignPaused,
				"status_message": message,
				"updated_at":     time.Now(),
			})
	})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to pause campaigns: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		r.logger.Infow("campaigns paused",
			"service", service,
			"count", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

// ResumeCircuitPausedCampaigns returns breaker-paused campaigns to running.
// Operator-paused campaigns (no circuit_breaker prefix) are left alone.
func (r *CampaignRepo) ResumeCircuitPausedCampaigns(ctx context.Context) (int64, error) {
	result := runWithRetry(r.logger, "resume_campaigns", func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&model.Campaign{}).
			Where("status = ? AND status_message LIKE ?", model.CampaignPaused, circuitPausePrefix+"%").
			Updates(map[string]interface{}{
				"status":         model.CampaignRunning,
				"status_message": "resumed after service recovery",
				"updated_at":     time.Now(),
			})
	})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to resume campaigns: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		r.logger.Infow("campaigns resumed after recovery", "count", result.RowsAffected)
	}
	return result.RowsAffected, nil
}
