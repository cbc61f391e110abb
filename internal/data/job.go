package data

import (
	"context"
	"fmt"
	"time"

	"LeadLane/internal/model"
	pkgerrors "LeadLane/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// runWithRetry runs a bulk update and reruns it once when the first attempt
// hits a transient error. Pause/resume UPDATEs race with the dispatcher's row
// locks, and a deadlock rolls the whole statement back.
func runWithRetry(logger *log.Helper, op string, update func() *gorm.DB) *gorm.DB {
	result := update()
	if result.Error != nil && pkgerrors.IsRetryable(result.Error) {
		logger.Warnw("transient database error, retrying once",
			"op", op, "error", result.Error)
		result = update()
	}
	return result
}

// JobRepo implements biz.JobRepo on GORM. Pause/resume are bulk UPDATEs
// guarded by status predicates, so repeated calls affect zero rows instead
// of duplicating side effects.
type JobRepo struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewJobRepo creates a new job repository.
func NewJobRepo(db *gorm.DB, logger log.Logger) *JobRepo {
	return &JobRepo{
		db:     db,
		logger: log.NewHelper(logger),
	}
}

// PauseJobsForService marks pending/processing jobs that depend on the
// service as paused. In-flight work is parked, not failed.
func (r *JobRepo) PauseJobsForService(ctx context.Context, service model.ThirdPartyService, reason string) (int64, error) {
	result := runWithRetry(r.logger, "pause_jobs", func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&model.Job{}).
			Where("service = ? AND status IN ?", service, []model.JobStatus{model.JobPending, model.JobProcessing}).
			Updates(map[string]interface{}{
				"status":     model.JobPaused,
				"error":      fmt.Sprintf("paused: %s unavailable (%s)", service, reason),
				"updated_at": time.Now(),
			})
	})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to pause jobs: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		r.logger.Infow("jobs paused for service",
			"service", service,
			"count", result.RowsAffected,
			"reason", reason)
	}
	return result.RowsAffected, nil
}

// ResumeJobsForService returns paused jobs for the service to pending so the
// dispatcher picks them back up.
func (r *JobRepo) ResumeJobsForService(ctx context.Context, service model.ThirdPartyService) (int64, error) {
	result := runWithRetry(r.logger, "resume_jobs", func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&model.Job{}).
			Where("service = ? AND status = ?", service, model.JobPaused).
			Updates(map[string]interface{}{
				"status":     model.JobPending,
				"error":      "",
				"updated_at": time.Now(),
			})
	})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to resume jobs: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		r.logger.Infow("jobs resumed for service",
			"service", service,
			"count", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

// GetPausedJobsByService lists the jobs currently parked for a service.
func (r *JobRepo) GetPausedJobsByService(ctx context.Context, service model.ThirdPartyService) ([]*model.Job, error) {
	var jobs []*model.Job
	err := r.db.WithContext(ctx).
		Where("service = ? AND status = ?", service, model.JobPaused).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list paused jobs: %w", err)
	}
	return jobs, nil
}

// CountJobsByStatus returns job counts grouped by status.
func (r *JobRepo) CountJobsByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&model.Job{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
