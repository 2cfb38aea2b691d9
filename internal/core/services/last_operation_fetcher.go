package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
)

// Outcomes of a single reconciliation attempt.
const (
	OutcomeCommitted = "committed"
	OutcomeStale     = "stale"
	OutcomePending   = "pending"
	OutcomeGone      = "gone"
	OutcomeRetry     = "retry"
)

// Ensure LastOperationFetcher implements Job
var _ driven.Job = (*LastOperationFetcher)(nil)

// LastOperationFetcher polls the broker for a service's last operation and
// commits the terminal result. Each attempt runs under a fresh owner, so a
// job never shares locks with the caller that scheduled it.
type LastOperationFetcher struct {
	serviceID string
	cfg       LifecycleConfig
}

func newLastOperationFetcher(cfg LifecycleConfig, serviceID string) *LastOperationFetcher {
	return &LastOperationFetcher{serviceID: serviceID, cfg: cfg}
}

func (j *LastOperationFetcher) ServiceID() string {
	return j.serviceID
}

func (j *LastOperationFetcher) Task() *domain.Task {
	return domain.NewFetchLastOperationTask(j.serviceID)
}

// Perform runs one attempt. While the broker reports the operation in
// progress, or after a failed attempt, the job reschedules itself after the
// retry delay. It stops once the result is committed or superseded, or once
// the service no longer exists.
func (j *LastOperationFetcher) Perform(ctx context.Context) {
	ctx = domain.WithOwner(ctx, domain.NewOwnerID())
	logger := j.cfg.Logger.With("service_id", j.serviceID)

	outcome, err := j.attempt(ctx)
	if err != nil {
		logger.Warn("reconciliation attempt failed", "error", err, "retry_in", j.cfg.RetryDelay)
		outcome = OutcomeRetry
	}
	j.cfg.Metrics.ObserveJobAttempt(outcome)

	switch outcome {
	case OutcomePending, OutcomeRetry:
		j.reschedule(ctx)
	case OutcomeStale:
		logger.Info("operation superseded, dropping result")
	case OutcomeGone:
		logger.Debug("service gone, stopping reconciliation")
	}
}

func (j *LastOperationFetcher) attempt(ctx context.Context) (outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	store := j.cfg.Store
	service, err := store.Load(ctx, j.serviceID)
	if errors.Is(err, domain.ErrNotFound) {
		return OutcomeGone, nil
	}
	if err != nil {
		return "", fmt.Errorf("load service: %w", err)
	}
	if service.LastOperation == nil {
		return OutcomeGone, nil
	}
	intended := *service.LastOperation

	result, err := j.cfg.Broker.FetchLastOperation(ctx, j.serviceID)
	if err != nil {
		return "", fmt.Errorf("fetch last operation: %w", err)
	}
	if err := result.Validate(); err != nil {
		return "", fmt.Errorf("fetch last operation: %w", err)
	}
	if !result.State.IsTerminal() {
		return OutcomePending, nil
	}

	outcome = OutcomeStale
	err = store.Transaction(ctx, func(ctx context.Context) error {
		locked, err := store.Lock(ctx, j.serviceID)
		if err != nil {
			return err
		}
		_, ok, err := commitResult(ctx, store, locked, intended, result)
		if err != nil {
			return err
		}
		if ok {
			outcome = OutcomeCommitted
			j.cfg.Metrics.ObserveOperation(*locked.LastOperation)
		}
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return OutcomeGone, nil
	}
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (j *LastOperationFetcher) reschedule(ctx context.Context) {
	if err := j.cfg.Scheduler.RescheduleIn(ctx, j.cfg.RetryDelay, j); err != nil {
		j.cfg.Logger.Error("failed to reschedule reconciliation",
			"service_id", j.serviceID,
			"error", err,
		)
	}
}
