package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"sync"
	"testing"
	"time"

	"LeadLane/internal/biz"
	"LeadLane/internal/conf"
	"LeadLane/internal/data"
	"LeadLane/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"
)

// fakeJobRepo is an in-memory biz.JobRepo for HTTP-level tests.
type fakeJobRepo struct {
	mu         sync.Mutex
	pausedJobs map[model.ThirdPartyService][]*model.Job
	counts     map[string]int64
}

func (f *fakeJobRepo) PauseJobsForService(ctx context.Context, service model.ThirdPartyService, reason string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.pausedJobs[service])), nil
}

func (f *fakeJobRepo) ResumeJobsForService(ctx context.Context, service model.ThirdPartyService) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.pausedJobs[service]))
	delete(f.pausedJobs, service)
	return n, nil
}

func (f *fakeJobRepo) GetPausedJobsByService(ctx context.Context, service model.ThirdPartyService) ([]*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pausedJobs[service], nil
}

func (f *fakeJobRepo) CountJobsByStatus(ctx context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts, nil
}

// fakeCampaignRepo is an in-memory biz.CampaignRepo.
type fakeCampaignRepo struct{}

func (f *fakeCampaignRepo) PauseRunningCampaigns(ctx context.Context, service model.ThirdPartyService, message string) (int64, error) {
	return 1, nil
}

func (f *fakeCampaignRepo) ResumeCircuitPausedCampaigns(ctx context.Context) (int64, error) {
	return 1, nil
}

// noopAudit discards audit events.
type noopAudit struct{}

func (noopAudit) LogCircuitBroken(ctx context.Context, service string, reason string, failureCount int64, brokenAt time.Time) {
}
func (noopAudit) LogCircuitRecovered(ctx context.Context, service string, recoverTime time.Duration, probeCount int64) {
}
func (noopAudit) LogManualPause(ctx context.Context, service string, reason string) {}
func (noopAudit) LogManualResume(ctx context.Context, service string)               {}

type queueTestEnv struct {
	baseURL string
	store   *data.CircuitStore
	jobs    *fakeJobRepo
	mr      *miniredis.Miniredis
}

func setupQueueServer(t *testing.T) *queueTestEnv {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	logger := log.DefaultLogger
	d, _, err := data.NewData(&conf.Data{}, logger, rdb)
	require.NoError(t, err)
	store := data.NewCircuitStore(d, logger)

	jobs := &fakeJobRepo{
		pausedJobs: map[model.ThirdPartyService][]*model.Job{
			model.ServiceApollo: {
				{TaskID: "task-1", Name: "fetch batch 1", JobType: model.JobFetchLeads, Service: model.ServiceApollo, Status: model.JobPaused},
			},
		},
		counts: map[string]int64{"pending": 4, "paused": 1},
	}

	pauser := biz.NewQueuePauseCoordinator(store, jobs, &fakeCampaignRepo{}, logger)
	breaker := biz.NewCircuitBreakerUsecase(&conf.Breaker{
		FailureThreshold: 5,
		FailureWindow:    durationpb.New(300 * time.Second),
		RecoveryTimeout:  durationpb.New(60 * time.Second),
		SuccessThreshold: 3,
	}, store, pauser, data.NewLogAlertService(logger), noopAudit{}, logger)
	limiter := biz.NewRateLimiterUseCase(&conf.RateLimit{}, nil, logger)

	svc := NewQueueService(breaker, pauser, limiter, logger)

	srv := http.NewServer(http.Address("127.0.0.1:0"))
	svc.RegisterRoutes(srv)

	endpoint, err := srv.Endpoint()
	require.NoError(t, err)

	go func() { _ = srv.Start(context.Background()) }()
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	return &queueTestEnv{
		baseURL: endpoint.String() + "/api/v1/queue-management",
		store:   store,
		jobs:    jobs,
		mr:      mr,
	}
}

// envelope is the shared response wrapper.
type envelope struct {
	Status string                 `json:"status"`
	Data   map[string]interface{} `json:"data"`
}

func getJSON(t *testing.T, url string) (int, *envelope) {
	t.Helper()
	resp, err := nethttp.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	if resp.StatusCode == nethttp.StatusOK {
		require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	}
	return resp.StatusCode, &env
}

func postJSON(t *testing.T, url string, payload interface{}) (int, *envelope) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := nethttp.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	if resp.StatusCode == nethttp.StatusOK {
		require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	}
	return resp.StatusCode, &env
}

func TestQueueStatusEndpoint(t *testing.T) {
	env := setupQueueServer(t)

	code, got := getJSON(t, env.baseURL+"/status")
	require.Equal(t, nethttp.StatusOK, code)
	assert.Equal(t, "success", got.Status)

	services, ok := got.Data["services"].([]interface{})
	require.True(t, ok)
	assert.Len(t, services, 5)

	counts, ok := got.Data["job_counts"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(4), counts["pending"])
}

func TestCircuitBreakersEndpoint(t *testing.T) {
	env := setupQueueServer(t)

	code, got := getJSON(t, env.baseURL+"/circuit-breakers")
	require.Equal(t, nethttp.StatusOK, code)
	assert.Equal(t, "success", got.Status)

	breakers, ok := got.Data["circuit_breakers"].(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, breakers, "apollo")

	apollo := breakers["apollo"].(map[string]interface{})
	assert.Equal(t, "closed", apollo["circuit_state"])
}

func TestPauseAndResumeServiceEndpoints(t *testing.T) {
	env := setupQueueServer(t)
	ctx := context.Background()

	code, got := postJSON(t, env.baseURL+"/pause-service", map[string]string{
		"service": "apollo",
		"reason":  "operator request",
	})
	require.Equal(t, nethttp.StatusOK, code)
	assert.Equal(t, "success", got.Status)
	assert.Equal(t, true, got.Data["paused"])
	assert.Equal(t, "operator request", got.Data["reason"])

	info, err := env.store.GetPauseFlag(ctx, model.ServiceApollo)
	require.NoError(t, err)
	require.NotNil(t, info)
	record, err := env.store.GetRecord(ctx, model.ServiceApollo)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, model.CircuitOpen, record.State)

	code, got = postJSON(t, env.baseURL+"/resume-service", map[string]string{
		"service": "apollo",
	})
	require.Equal(t, nethttp.StatusOK, code)
	assert.Equal(t, true, got.Data["resumed"])

	info, err = env.store.GetPauseFlag(ctx, model.ServiceApollo)
	require.NoError(t, err)
	assert.Nil(t, info)
	record, err = env.store.GetRecord(ctx, model.ServiceApollo)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestPauseServiceRejectsUnknownService(t *testing.T) {
	env := setupQueueServer(t)

	code, _ := postJSON(t, env.baseURL+"/pause-service", map[string]string{
		"service": "hunter",
	})
	assert.Equal(t, nethttp.StatusBadRequest, code)
}

func TestPausedJobsEndpoint(t *testing.T) {
	env := setupQueueServer(t)

	code, got := getJSON(t, env.baseURL+"/paused-jobs/apollo")
	require.Equal(t, nethttp.StatusOK, code)
	assert.Equal(t, "success", got.Status)
	assert.Equal(t, float64(1), got.Data["count"])

	jobs, ok := got.Data["paused_jobs"].([]interface{})
	require.True(t, ok)
	require.Len(t, jobs, 1)
	first := jobs[0].(map[string]interface{})
	assert.Equal(t, "task-1", first["task_id"])

	code, _ = getJSON(t, env.baseURL+"/paused-jobs/hunter")
	assert.Equal(t, nethttp.StatusBadRequest, code)
}
