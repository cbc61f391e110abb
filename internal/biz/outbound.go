package biz

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"LeadLane/internal/model"
	"LeadLane/pkg/httpclient"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// Doer is the subset of *http.Client used by GuardedClient.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// GuardedClient wraps an outbound HTTP client with the guard: every request
// passes Acquire first, and its outcome is reported back to the breaker.
// API client implementations build on this instead of a bare http.Client.
type GuardedClient struct {
	guard  *OutboundGuard
	client Doer
}

// NewGuardedClient builds a guarded client; proxyURL may be empty.
func NewGuardedClient(guard *OutboundGuard, proxyURL string, timeout time.Duration) (*GuardedClient, error) {
	client, err := httpclient.New(proxyURL, timeout)
	if err != nil {
		return nil, fmt.Errorf("build outbound client: %w", err)
	}
	return &GuardedClient{guard: guard, client: client}, nil
}

// NewGuardedClientWithDoer is like NewGuardedClient with an explicit Doer.
func NewGuardedClientWithDoer(guard *OutboundGuard, client Doer) *GuardedClient {
	return &GuardedClient{guard: guard, client: client}
}

// Do executes the request on behalf of the given service. Rejections by the
// limiter or breaker return before any network traffic. HTTP status codes of
// 429 and 5xx count as failures; everything else below 500 is a success from
// the availability standpoint even when the API call itself failed.
func (c *GuardedClient) Do(ctx context.Context, service model.ThirdPartyService, req *http.Request) (*http.Response, error) {
	if err := c.guard.Acquire(ctx, service); err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		c.guard.Report(ctx, service, err)
		return nil, err
	}

	if callErr := statusError(resp.StatusCode); callErr != nil {
		c.guard.Report(ctx, service, callErr)
		return resp, nil
	}

	c.guard.Report(ctx, service, nil)
	return resp, nil
}

// statusError maps a degraded HTTP status to a failure signal for the
// breaker, or nil when the response does not indicate service trouble.
func statusError(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return kerrors.New(429, "UPSTREAM_RATE_LIMITED", "upstream returned 429")
	case code >= 500:
		return kerrors.New(code, "UPSTREAM_ERROR", fmt.Sprintf("upstream returned %d", code))
	default:
		return nil
	}
}
