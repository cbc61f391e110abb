package biz

import (
	"context"
	"fmt"
	"time"

	"LeadLane/internal/conf"
	"LeadLane/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// recentEventCap bounds the in-process ring of recent transition events kept
// for the status surface. The ring is advisory only: allow/deny decisions
// always go to the shared store.
const recentEventCap = 64

// CircuitBreakerUsecase owns the per-service circuit state machine
// (closed / open / half-open). Authoritative state lives in the shared store,
// not in process memory, so every worker sees a trip immediately and the
// methods are safe to call from any number of goroutines without locking.
//
// Store outages never propagate: reads default to closed/allowed and writes
// are best-effort (fail-open). Losing fault isolation is preferable to the
// store taking the application down with it.
type CircuitBreakerUsecase struct {
	store  CircuitStore
	pauser *QueuePauseCoordinator
	alerts AlertService
	audit  AuditLogger
	logger *log.Helper

	failureThreshold int64
	failureWindow    time.Duration
	recoveryTimeout  time.Duration
	successThreshold int64

	recent *expirable.LRU[string, *model.CircuitEvent]

	// now is swapped out in tests to drive virtual time.
	now func() time.Time
}

// NewCircuitBreakerUsecase creates the circuit breaker coordinator.
// Threshold validation happens at config load; c is trusted here.
func NewCircuitBreakerUsecase(
	c *conf.Breaker,
	store CircuitStore,
	pauser *QueuePauseCoordinator,
	alerts AlertService,
	audit AuditLogger,
	logger log.Logger,
) *CircuitBreakerUsecase {
	return &CircuitBreakerUsecase{
		store:            store,
		pauser:           pauser,
		alerts:           alerts,
		audit:            audit,
		logger:           log.NewHelper(logger),
		failureThreshold: int64(c.FailureThreshold),
		failureWindow:    c.FailureWindow.AsDuration(),
		recoveryTimeout:  c.RecoveryTimeout.AsDuration(),
		successThreshold: int64(c.SuccessThreshold),
		recent:           expirable.NewLRU[string, *model.CircuitEvent](recentEventCap, nil, 24*time.Hour),
		now:              time.Now,
	}
}

// promoteState returns the effective state of a stored record at the given
// instant, and whether that is a promotion the caller should write back.
// It is a pure function of (record, now): an open record whose recovery
// timeout has elapsed is half-open, a missing record is closed.
func promoteState(record *model.CircuitRecord, now time.Time, recoveryTimeout time.Duration) (model.CircuitState, bool) {
	if record == nil {
		return model.CircuitClosed, false
	}
	if record.State == model.CircuitOpen && now.After(record.OpenedAt.Add(recoveryTimeout)) {
		return model.CircuitHalfOpen, true
	}
	return record.State, false
}

// recordTTL is the TTL on the circuit record. Expiry is cleanup, not a
// correctness mechanism: absence always means closed.
func (uc *CircuitBreakerUsecase) recordTTL() time.Duration {
	return 2 * uc.failureWindow
}

// GetCircuitState returns the current state for a service. A read can cause
// a state promotion: an open circuit whose recovery timeout has elapsed is
// rewritten to half-open and that state is returned, no success or failure
// call required.
func (uc *CircuitBreakerUsecase) GetCircuitState(ctx context.Context, service model.ThirdPartyService) model.CircuitState {
	record, err := uc.store.GetRecord(ctx, service)
	if err != nil {
		uc.logger.Warnw("failed to read circuit record (degraded mode: assume closed)",
			"service", service, "error", err)
		return model.CircuitClosed
	}

	state, promoted := promoteState(record, uc.now(), uc.recoveryTimeout)
	if promoted {
		uc.enterHalfOpen(ctx, service, record)
	}
	return state
}

// enterHalfOpen writes back the open→half-open promotion and emits the
// transition event.
func (uc *CircuitBreakerUsecase) enterHalfOpen(ctx context.Context, service model.ThirdPartyService, record *model.CircuitRecord) {
	updated := &model.CircuitRecord{
		State:    model.CircuitHalfOpen,
		OpenedAt: record.OpenedAt,
		Metadata: record.Metadata,
	}
	if err := uc.store.SetRecord(ctx, service, updated, uc.recordTTL()); err != nil {
		uc.logger.Warnw("failed to write half-open promotion (will retry on next read)",
			"service", service, "error", err)
		return
	}

	uc.logger.Infow("circuit entering half-open",
		"service", service,
		"opened_at", record.OpenedAt,
		"recovery_timeout", uc.recoveryTimeout)

	uc.emitTransition(ctx, &model.CircuitEvent{
		Service:       service,
		OldState:      model.CircuitOpen,
		NewState:      model.CircuitHalfOpen,
		FailureReason: record.Metadata.LastError,
		FailureCount:  record.Metadata.FailureCount,
		Timestamp:     uc.now(),
	})
}

// ShouldAllowRequest reports whether a call to the service may proceed.
// Open circuits reject; closed and half-open circuits allow. A missing
// record or an unreachable store defaults to allow.
func (uc *CircuitBreakerUsecase) ShouldAllowRequest(ctx context.Context, service model.ThirdPartyService) (bool, string) {
	switch uc.GetCircuitState(ctx, service) {
	case model.CircuitOpen:
		return false, fmt.Sprintf("circuit open for %s: service unavailable, retry after %s", service, uc.recoveryTimeout)
	case model.CircuitHalfOpen:
		return true, fmt.Sprintf("circuit half-open for %s: probe traffic allowed", service)
	default:
		return true, "ok"
	}
}

// RecordSuccess reports a successful call outcome.
//
// While closed it clears the failure window so isolated, non-consecutive
// failures never accumulate toward the threshold. While half-open it counts
// consecutive probe successes and closes the circuit at the success
// threshold. Bookkeeping failures are logged and swallowed.
func (uc *CircuitBreakerUsecase) RecordSuccess(ctx context.Context, service model.ThirdPartyService) error {
	switch uc.GetCircuitState(ctx, service) {
	case model.CircuitClosed:
		if err := uc.store.ClearFailures(ctx, service); err != nil {
			uc.logger.Warnw("failed to clear failure window on success",
				"service", service, "error", err)
		}

	case model.CircuitHalfOpen:
		count, err := uc.store.IncrHalfOpenSuccesses(ctx, service, uc.recoveryTimeout)
		if err != nil {
			uc.logger.Warnw("failed to increment half-open success counter",
				"service", service, "error", err)
			return nil
		}
		uc.logger.Debugw("half-open probe succeeded",
			"service", service,
			"success_count", count,
			"success_threshold", uc.successThreshold)
		if count >= uc.successThreshold {
			uc.closeCircuit(ctx, service, model.CircuitHalfOpen, count)
		}

	case model.CircuitOpen:
		// A success while open means the caller bypassed ShouldAllowRequest.
		uc.logger.Debugw("success recorded while circuit open, ignoring", "service", service)
	}
	return nil
}

// RecordFailure reports a failed call outcome and returns whether this call
// caused (or kept) the circuit open, so callers can short-circuit retries.
//
// While closed, the failure joins the sliding window and trips the circuit
// once the pruned window cardinality reaches the threshold. While half-open,
// a single failure reopens the circuit immediately with a fresh failure
// window: half-open already represents a cautious trial, and carrying stale
// entries into the new open period would double-count them.
func (uc *CircuitBreakerUsecase) RecordFailure(ctx context.Context, service model.ThirdPartyService, callErr error, errorKind string) bool {
	now := uc.now()

	record, err := uc.store.GetRecord(ctx, service)
	if err != nil {
		uc.logger.Warnw("failed to read circuit record on failure (degraded mode)",
			"service", service, "error", err)
		return false
	}

	reason := ""
	if callErr != nil {
		reason = callErr.Error()
	}

	state, _ := promoteState(record, now, uc.recoveryTimeout)
	switch state {
	case model.CircuitHalfOpen:
		// Probe failed: fresh trip, bypassing the threshold count.
		if err := uc.store.ClearFailures(ctx, service); err != nil {
			uc.logger.Warnw("failed to reset failure window on reopen",
				"service", service, "error", err)
		}
		uc.tripOpen(ctx, service, model.CircuitHalfOpen, reason, errorKind, 1, false)
		return true

	case model.CircuitOpen:
		// Already open; the failure only refreshes advisory metadata.
		if _, err := uc.store.AddFailure(ctx, service, now, errorKind, uc.failureWindow); err != nil {
			uc.logger.Warnw("failed to record failure while open",
				"service", service, "error", err)
		}
		return true

	default:
		count, err := uc.store.AddFailure(ctx, service, now, errorKind, uc.failureWindow)
		if err != nil {
			uc.logger.Warnw("failed to record failure (degraded mode)",
				"service", service, "error", err)
			return false
		}
		if count >= uc.failureThreshold {
			uc.tripOpen(ctx, service, model.CircuitClosed, reason, errorKind, count, false)
			return true
		}
		uc.logger.Debugw("failure recorded",
			"service", service,
			"error_kind", errorKind,
			"failure_count", count,
			"failure_threshold", uc.failureThreshold)
		return false
	}
}

// tripOpen transitions a circuit to open, pauses the service's queue and
// emits the transition. Two workers racing here may both write the open
// record; the last writer wins and both sets of side effects are idempotent.
func (uc *CircuitBreakerUsecase) tripOpen(ctx context.Context, service model.ThirdPartyService, oldState model.CircuitState, reason, errorKind string, failureCount int64, manual bool) {
	now := uc.now()

	record := &model.CircuitRecord{
		State:    model.CircuitOpen,
		OpenedAt: now,
		Metadata: model.CircuitMetadata{
			LastError:    reason,
			ErrorKind:    errorKind,
			FailureCount: failureCount,
			Manual:       manual,
		},
	}
	if err := uc.store.SetRecord(ctx, service, record, uc.recordTTL()); err != nil {
		uc.logger.Warnw("failed to write open circuit record (degraded mode)",
			"service", service, "error", err)
	}
	if err := uc.store.ClearHalfOpenSuccesses(ctx, service); err != nil {
		uc.logger.Warnw("failed to clear half-open success counter",
			"service", service, "error", err)
	}

	if err := uc.pauser.Pause(ctx, service, reason); err != nil {
		uc.logger.Errorw("failed to pause queue for tripped service",
			"service", service, "error", err)
	}

	uc.logger.Errorw("circuit opened",
		"service", service,
		"old_state", oldState,
		"reason", reason,
		"error_kind", errorKind,
		"failure_count", failureCount,
		"manual", manual)

	if manual {
		uc.audit.LogManualPause(ctx, service.String(), reason)
	} else {
		uc.audit.LogCircuitBroken(ctx, service.String(), reason, failureCount, now)
	}

	uc.emitTransition(ctx, &model.CircuitEvent{
		Service:       service,
		OldState:      oldState,
		NewState:      model.CircuitOpen,
		FailureReason: reason,
		FailureCount:  failureCount,
		Timestamp:     now,
	})
}

// closeCircuit transitions a circuit back to closed, deletes all breaker
// state for the service and resumes its queue.
func (uc *CircuitBreakerUsecase) closeCircuit(ctx context.Context, service model.ThirdPartyService, oldState model.CircuitState, probeCount int64) {
	now := uc.now()

	var openedAt time.Time
	if record, err := uc.store.GetRecord(ctx, service); err == nil && record != nil {
		openedAt = record.OpenedAt
	}

	if err := uc.store.DeleteRecord(ctx, service); err != nil {
		uc.logger.Warnw("failed to delete circuit record on close",
			"service", service, "error", err)
	}
	if err := uc.store.ClearFailures(ctx, service); err != nil {
		uc.logger.Warnw("failed to clear failure window on close",
			"service", service, "error", err)
	}
	if err := uc.store.ClearHalfOpenSuccesses(ctx, service); err != nil {
		uc.logger.Warnw("failed to clear half-open success counter on close",
			"service", service, "error", err)
	}

	if err := uc.pauser.Resume(ctx, service); err != nil {
		uc.logger.Errorw("failed to resume queue for recovered service",
			"service", service, "error", err)
	}

	recoverTime := time.Duration(0)
	if !openedAt.IsZero() {
		recoverTime = now.Sub(openedAt)
	}

	uc.logger.Infow("circuit closed",
		"service", service,
		"old_state", oldState,
		"probe_count", probeCount,
		"recover_time", recoverTime)

	uc.audit.LogCircuitRecovered(ctx, service.String(), recoverTime, probeCount)

	uc.emitTransition(ctx, &model.CircuitEvent{
		Service:   service,
		OldState:  oldState,
		NewState:  model.CircuitClosed,
		Timestamp: now,
	})
}

// ManuallyPause is the operator override for opening a circuit. It goes
// through the same transition side effects as an automatic trip so
// downstream consumers cannot distinguish manual from automatic action.
func (uc *CircuitBreakerUsecase) ManuallyPause(ctx context.Context, service model.ThirdPartyService, reason string) {
	oldState := uc.GetCircuitState(ctx, service)
	if reason == "" {
		reason = "manual_pause"
	}
	uc.tripOpen(ctx, service, oldState, reason, "manual", 0, true)
}

// ManuallyResume is the operator override for closing a circuit. The end
// state is identical to the circuit never having opened.
func (uc *CircuitBreakerUsecase) ManuallyResume(ctx context.Context, service model.ThirdPartyService) {
	oldState := uc.GetCircuitState(ctx, service)
	if err := uc.store.DeleteRecord(ctx, service); err != nil {
		uc.logger.Warnw("failed to delete circuit record on manual resume",
			"service", service, "error", err)
	}
	if err := uc.store.ClearFailures(ctx, service); err != nil {
		uc.logger.Warnw("failed to clear failure window on manual resume",
			"service", service, "error", err)
	}
	if err := uc.store.ClearHalfOpenSuccesses(ctx, service); err != nil {
		uc.logger.Warnw("failed to clear half-open success counter on manual resume",
			"service", service, "error", err)
	}

	if err := uc.pauser.Resume(ctx, service); err != nil {
		uc.logger.Errorw("failed to resume queue on manual resume",
			"service", service, "error", err)
	}

	uc.audit.LogManualResume(ctx, service.String())

	if oldState != model.CircuitClosed {
		uc.emitTransition(ctx, &model.CircuitEvent{
			Service:   service,
			OldState:  oldState,
			NewState:  model.CircuitClosed,
			Timestamp: uc.now(),
		})
	}
}

// GetStatus returns the operator-facing snapshot for every known service:
// circuit state, pause flag and info, live failure count and the configured
// threshold.
func (uc *CircuitBreakerUsecase) GetStatus(ctx context.Context) []*model.ServiceStatus {
	now := uc.now()
	statuses := make([]*model.ServiceStatus, 0, len(model.AllServices()))

	for _, service := range model.AllServices() {
		status := &model.ServiceStatus{
			Service:          service,
			CircuitState:     uc.GetCircuitState(ctx, service),
			FailureThreshold: int32(uc.failureThreshold),
		}

		paused, info := uc.pauser.IsPaused(ctx, service)
		status.QueuePaused = paused
		status.PauseInfo = info

		count, err := uc.store.FailureCount(ctx, service, now, uc.failureWindow)
		if err != nil {
			uc.logger.Warnw("failed to read failure count for status",
				"service", service, "error", err)
		} else {
			status.FailureCount = count
		}

		statuses = append(statuses, status)
	}
	return statuses
}

// RecentTransitions returns the last observed transition per service from
// the in-process ring. Advisory only; entries age out after 24h.
func (uc *CircuitBreakerUsecase) RecentTransitions() []*model.CircuitEvent {
	events := make([]*model.CircuitEvent, 0, uc.recent.Len())
	for _, key := range uc.recent.Keys() {
		if event, ok := uc.recent.Get(key); ok {
			events = append(events, event)
		}
	}
	return events
}

// emitTransition notifies the alert sink about one actual state change.
// Debounce is by old-vs-new comparison in the callers, never by locking.
func (uc *CircuitBreakerUsecase) emitTransition(ctx context.Context, event *model.CircuitEvent) {
	if event.OldState == event.NewState {
		return
	}

	uc.recent.Add(event.Service.String(), event)

	var err error
	switch event.NewState {
	case model.CircuitOpen:
		err = uc.alerts.NotifyCircuitOpened(ctx, event)
	case model.CircuitHalfOpen:
		err = uc.alerts.NotifyCircuitHalfOpen(ctx, event)
	case model.CircuitClosed:
		err = uc.alerts.NotifyCircuitClosed(ctx, event)
	}
	if err != nil {
		uc.logger.Warnw("failed to emit circuit transition alert",
			"service", event.Service,
			"old_state", event.OldState,
			"new_state", event.NewState,
			"error", err)
	}
}

// RecoveryTimeout exposes the configured recovery timeout for user-facing
// retry-after hints.
func (uc *CircuitBreakerUsecase) RecoveryTimeout() time.Duration {
	return uc.recoveryTimeout
}

// Sweep reads every service's circuit once and reconciles pause flags with
// circuit state. The read alone matters for idle services: promotion to
// half-open happens on read, and a service nobody is calling would otherwise
// stay open past its recovery timeout. Reconciliation covers flags that
// expired while a circuit stayed open and flags orphaned by a crashed
// process.
func (uc *CircuitBreakerUsecase) Sweep(ctx context.Context) {
	for _, service := range model.AllServices() {
		state := uc.GetCircuitState(ctx, service)
		paused, _ := uc.pauser.IsPaused(ctx, service)

		switch {
		case state == model.CircuitOpen && !paused:
			uc.logger.Warnw("sweep: open circuit without pause flag, re-asserting",
				"service", service)
			if err := uc.pauser.Pause(ctx, service, "recovery sweep: circuit open"); err != nil {
				uc.logger.Errorw("sweep: failed to re-assert pause",
					"service", service, "error", err)
			}

		case state == model.CircuitClosed && paused:
			uc.logger.Warnw("sweep: closed circuit with stale pause flag, resuming",
				"service", service)
			if err := uc.pauser.Resume(ctx, service); err != nil {
				uc.logger.Errorw("sweep: failed to clear stale pause",
					"service", service, "error", err)
			}
		}
	}
}
