package biz

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"LeadLane/internal/model"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newGuardFixture(t *testing.T, treatLimitAsFailure bool) (*OutboundGuard, *breakerFixture, *MockRateLimitRepo) {
	f := newBreakerFixture(t)

	limitRepo := new(MockRateLimitRepo)
	limiter := NewRateLimiterUseCase(testRateLimitConf(), limitRepo, log.DefaultLogger)

	c := testBreakerConf()
	c.TreatLimitAsFailure = treatLimitAsFailure
	guard := NewOutboundGuard(c, limiter, f.uc, log.DefaultLogger)
	return guard, f, limitRepo
}

func TestGuard_AcquireAllows(t *testing.T) {
	guard, _, limitRepo := newGuardFixture(t, false)
	ctx := context.Background()

	limitRepo.On("IncrementRequests", mock.Anything, model.ServiceApollo, mock.Anything).Return(int64(1), nil)

	assert.NoError(t, guard.Acquire(ctx, model.ServiceApollo))
}

func TestGuard_AcquireRejectsOnRateLimit(t *testing.T) {
	guard, f, limitRepo := newGuardFixture(t, false)
	ctx := context.Background()

	limitRepo.On("IncrementRequests", mock.Anything, model.ServiceOpenAI, mock.Anything).Return(int64(3), nil)
	limitRepo.On("RetryAfter", mock.Anything, model.ServiceOpenAI).Return(30*time.Second, nil)

	err := guard.Acquire(ctx, model.ServiceOpenAI)
	require.Error(t, err)

	var ke *kerrors.Error
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, int32(429), ke.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", ke.Reason)
	assert.Equal(t, "30s", ke.Metadata["retry_after"])

	// By default limiter exhaustion does not feed the breaker.
	count, storeErr := f.store.FailureCount(ctx, model.ServiceOpenAI, f.clock, 300*time.Second)
	require.NoError(t, storeErr)
	assert.Equal(t, int64(0), count)
}

func TestGuard_RateLimitCanFeedBreaker(t *testing.T) {
	guard, f, limitRepo := newGuardFixture(t, true)
	ctx := context.Background()

	limitRepo.On("IncrementRequests", mock.Anything, model.ServiceOpenAI, mock.Anything).Return(int64(3), nil)
	limitRepo.On("RetryAfter", mock.Anything, model.ServiceOpenAI).Return(30*time.Second, nil)

	require.Error(t, guard.Acquire(ctx, model.ServiceOpenAI))

	count, err := f.store.FailureCount(ctx, model.ServiceOpenAI, f.clock, 300*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGuard_AcquireRejectsWhenCircuitOpen(t *testing.T) {
	guard, f, limitRepo := newGuardFixture(t, false)
	ctx := context.Background()
	f.expectPause(model.ServiceApollo)

	limitRepo.On("IncrementRequests", mock.Anything, model.ServiceApollo, mock.Anything).Return(int64(1), nil)

	for i := 0; i < 5; i++ {
		f.advance(time.Second)
		f.uc.RecordFailure(ctx, model.ServiceApollo, errors.New("timeout"), "timeout")
	}

	err := guard.Acquire(ctx, model.ServiceApollo)
	require.Error(t, err)

	var ke *kerrors.Error
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, int32(503), ke.Code)
	assert.Equal(t, "CIRCUIT_OPEN", ke.Reason)
	assert.Equal(t, "apollo", ke.Metadata["service"])
	assert.Equal(t, "1m0s", ke.Metadata["retry_after"])
}

func TestGuard_ReportOutcomes(t *testing.T) {
	guard, f, _ := newGuardFixture(t, false)
	ctx := context.Background()
	f.expectPause(model.ServiceApollo)

	for i := 0; i < 4; i++ {
		f.advance(time.Second)
		assert.False(t, guard.Report(ctx, model.ServiceApollo, errors.New("connection timeout")))
	}
	f.advance(time.Second)
	assert.True(t, guard.Report(ctx, model.ServiceApollo, errors.New("connection timeout")))

	assert.Equal(t, model.CircuitOpen, f.uc.GetCircuitState(ctx, model.ServiceApollo))

	// Success reporting never trips.
	assert.False(t, guard.Report(ctx, model.ServiceOpenAI, nil))
}

type fakeNetError struct {
	timeout bool
}

func (e *fakeNetError) Error() string   { return "dial tcp: i/o problem" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return false }

var _ net.Error = (*fakeNetError)(nil)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: "timeout"},
		{name: "net timeout", err: &fakeNetError{timeout: true}, want: "timeout"},
		{name: "net other", err: &fakeNetError{}, want: "network"},
		{name: "upstream 429", err: kerrors.New(429, "TOO_MANY", "slow down"), want: "rate_limited"},
		{name: "upstream 401", err: kerrors.New(401, "UNAUTHORIZED", "bad key"), want: "auth"},
		{name: "upstream 403", err: kerrors.New(403, "FORBIDDEN", "no access"), want: "auth"},
		{name: "upstream 500", err: kerrors.New(500, "INTERNAL", "boom"), want: "server_error"},
		{name: "timeout string", err: errors.New("request timeout waiting for response"), want: "timeout"},
		{name: "rate limit string", err: errors.New("429 rate limit hit"), want: "rate_limited"},
		{name: "refused string", err: errors.New("connection refused"), want: "network"},
		{name: "anything else", err: errors.New("weird"), want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}
