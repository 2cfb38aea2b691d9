package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
	"github.com/custodia-labs/broker-core/internal/metrics"
)

// DefaultRetryDelay is how long a reconciliation job waits after a failed attempt.
const DefaultRetryDelay = 5 * time.Second

// LifecycleConfig holds the dependencies shared by the provisioning,
// deprovisioning and reconciliation code.
type LifecycleConfig struct {
	Store      driven.ServiceStore
	Broker     driven.BrokerClient
	Scheduler  driven.JobScheduler
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	RetryDelay time.Duration
}

func (c LifecycleConfig) withDefaults() LifecycleConfig {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	return c
}

// commitResult applies result to the locked service, but only while the
// service's current operation is still the intended one. A successful
// deprovision deletes the record; anything else is written back.
// The caller must hold the service lock. The returned service is nil when the
// record was deleted.
func commitResult(
	ctx context.Context,
	store driven.ServiceStore,
	locked *domain.Service,
	intended domain.Operation,
	result domain.OperationResult,
) (*domain.Service, bool, error) {
	if !domain.SameOperation(locked.LastOperation, &intended) {
		return locked, false, nil
	}

	op := intended
	op.Apply(result)
	locked.LastOperation = &op

	if op.IsSuccessfulDeprovision() {
		if err := store.Delete(ctx, locked); err != nil {
			return nil, false, fmt.Errorf("delete service %s: %w", locked.ID, err)
		}
		return nil, true, nil
	}

	if err := store.Update(ctx, locked); err != nil {
		return nil, false, fmt.Errorf("update service %s: %w", locked.ID, err)
	}
	return locked, true, nil
}

// startJob hands a reconciliation job for serviceID to the scheduler.
func startJob(ctx context.Context, cfg LifecycleConfig, serviceID string) error {
	job := newLastOperationFetcher(cfg, serviceID)
	if err := cfg.Scheduler.Schedule(ctx, job); err != nil {
		return fmt.Errorf("schedule reconciliation for %s: %w", serviceID, err)
	}
	return nil
}

// recordFailure marks the intended operation FAILED after the broker call
// that started it returned an error, so the service is not left blocked by
// an operation nobody is polling.
func recordFailure(ctx context.Context, cfg LifecycleConfig, serviceID string, intended domain.Operation, cause error) {
	result := domain.OperationResult{
		State:   domain.OperationStateFailed,
		Message: cause.Error(),
	}
	err := cfg.Store.Transaction(ctx, func(ctx context.Context) error {
		locked, err := cfg.Store.Lock(ctx, serviceID)
		if err != nil {
			return err
		}
		_, committed, err := commitResult(ctx, cfg.Store, locked, intended, result)
		if committed {
			cfg.Metrics.ObserveOperation(*locked.LastOperation)
		}
		return err
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		cfg.Logger.Error("failed to record broker failure",
			"service_id", serviceID,
			"operation_type", intended.Type,
			"error", err,
		)
	}
}
