// Package service exposes the operator-facing HTTP surface: queue and
// circuit status plus the pause/resume admin operations.
package service

import (
	"time"

	"LeadLane/internal/biz"
	"LeadLane/internal/model"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// QueueService implements the queue-management API.
type QueueService struct {
	breaker *biz.CircuitBreakerUsecase
	pauser  *biz.QueuePauseCoordinator
	limiter *biz.RateLimiterUseCase
	logger  *log.Helper
}

// NewQueueService creates a new QueueService instance.
func NewQueueService(breaker *biz.CircuitBreakerUsecase, pauser *biz.QueuePauseCoordinator, limiter *biz.RateLimiterUseCase, logger log.Logger) *QueueService {
	return &QueueService{
		breaker: breaker,
		pauser:  pauser,
		limiter: limiter,
		logger:  log.NewHelper(logger),
	}
}

// apiResponse is the response envelope shared by every endpoint.
type apiResponse struct {
	Status string                 `json:"status"`
	Data   map[string]interface{} `json:"data"`
}

func success(data map[string]interface{}) *apiResponse {
	return &apiResponse{Status: "success", Data: data}
}

// servicePauseRequest is the body of POST /pause-service.
type servicePauseRequest struct {
	Service string `json:"service"`
	Reason  string `json:"reason"`
}

// serviceResumeRequest is the body of POST /resume-service.
type serviceResumeRequest struct {
	Service string `json:"service"`
}

// RegisterRoutes attaches the queue-management API to the HTTP server.
func (s *QueueService) RegisterRoutes(srv *http.Server) {
	r := srv.Route("/api/v1/queue-management")
	r.GET("/status", s.getQueueStatus)
	r.GET("/circuit-breakers", s.getCircuitBreakers)
	r.POST("/pause-service", s.pauseService)
	r.POST("/resume-service", s.resumeService)
	r.GET("/paused-jobs/{service}", s.getPausedJobs)
}

// getQueueStatus returns the combined queue and circuit breaker status.
func (s *QueueService) getQueueStatus(ctx http.Context) error {
	statuses := s.breaker.GetStatus(ctx)

	jobCounts, err := s.pauser.JobCounts(ctx)
	if err != nil {
		s.logger.Errorw("failed to count jobs for status", "error", err)
		return errors.InternalServer("STATUS_UNAVAILABLE", "error getting queue status")
	}

	return ctx.Result(200, success(map[string]interface{}{
		"services":   statuses,
		"job_counts": jobCounts,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}))
}

// getCircuitBreakers returns the per-service circuit snapshot with recent
// transitions.
func (s *QueueService) getCircuitBreakers(ctx http.Context) error {
	statuses := s.breaker.GetStatus(ctx)

	breakers := make(map[string]interface{}, len(statuses))
	for _, st := range statuses {
		breakers[st.Service.String()] = st
	}

	return ctx.Result(200, success(map[string]interface{}{
		"circuit_breakers":   breakers,
		"recent_transitions": s.breaker.RecentTransitions(),
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	}))
}

// pauseService manually pauses a service and its related queues.
func (s *QueueService) pauseService(ctx http.Context) error {
	var req servicePauseRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.BadRequest("INVALID_REQUEST", "invalid request body")
	}

	service, err := model.ParseService(req.Service)
	if err != nil {
		return errors.BadRequest("INVALID_SERVICE", err.Error())
	}

	reason := req.Reason
	if reason == "" {
		reason = "manual_pause"
	}

	s.logger.Infow("manual pause requested", "service", service, "reason", reason)
	s.breaker.ManuallyPause(ctx, service, reason)

	pausedJobs, err := s.pauser.PausedJobs(ctx, service)
	if err != nil {
		s.logger.Warnw("failed to list paused jobs after manual pause",
			"service", service, "error", err)
	}

	return ctx.Result(200, success(map[string]interface{}{
		"service":     service.String(),
		"paused":      true,
		"reason":      reason,
		"jobs_paused": len(pausedJobs),
		"message":     "service " + service.String() + " paused successfully",
	}))
}

// resumeService manually resumes a service and its related queues.
func (s *QueueService) resumeService(ctx http.Context) error {
	var req serviceResumeRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.BadRequest("INVALID_REQUEST", "invalid request body")
	}

	service, err := model.ParseService(req.Service)
	if err != nil {
		return errors.BadRequest("INVALID_SERVICE", err.Error())
	}

	s.logger.Infow("manual resume requested", "service", service)
	s.breaker.ManuallyResume(ctx, service)

	return ctx.Result(200, success(map[string]interface{}{
		"service": service.String(),
		"resumed": true,
		"message": "service " + service.String() + " resumed successfully",
	}))
}

// getPausedJobs lists the jobs parked for one service.
func (s *QueueService) getPausedJobs(ctx http.Context) error {
	raw := ctx.Vars().Get("service")
	service, err := model.ParseService(raw)
	if err != nil {
		return errors.BadRequest("INVALID_SERVICE", err.Error())
	}

	jobs, err := s.pauser.PausedJobs(ctx, service)
	if err != nil {
		s.logger.Errorw("failed to list paused jobs", "service", service, "error", err)
		return errors.InternalServer("PAUSED_JOBS_UNAVAILABLE", "error getting paused jobs")
	}

	return ctx.Result(200, success(map[string]interface{}{
		"service":     service.String(),
		"paused_jobs": jobs,
		"count":       len(jobs),
	}))
}
