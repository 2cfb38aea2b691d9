package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driving"
)

// Ensure deprovisionService implements DeprovisionService
var _ driving.DeprovisionService = (*deprovisionService)(nil)

type deprovisionService struct {
	cfg LifecycleConfig
}

// NewDeprovisionService creates a new DeprovisionService
func NewDeprovisionService(cfg LifecycleConfig) driving.DeprovisionService {
	return &deprovisionService{cfg: cfg.withDefaults()}
}

// Deprovision implements the four-step deprovisioning flow:
//  1. under lock, replace the current operation with an in-progress deprovision
//  2. ask the broker to deprovision (no lock held)
//  3. lock the service
//  4. schedule reconciliation, or commit the broker's terminal result
//
// An in-progress provision may be superseded; any other in-progress
// operation is rejected with domain.ErrOperationInProgress.
func (s *deprovisionService) Deprovision(ctx context.Context, serviceID string) error {
	if serviceID == "" {
		return fmt.Errorf("deprovision: %w", domain.ErrInvalidInput)
	}
	ctx = domain.EnsureOwner(ctx)
	store := s.cfg.Store
	logger := s.cfg.Logger.With("service_id", serviceID, "operation_type", domain.OperationTypeDeprovision)

	operation := domain.NewOperation(domain.OperationTypeDeprovision)
	err := store.Transaction(ctx, func(ctx context.Context) error {
		service, err := store.Lock(ctx, serviceID)
		if err != nil {
			return err
		}
		if last := service.LastOperation; last != nil && last.IsInProgress() && last.Type != domain.OperationTypeProvision {
			return domain.ErrOperationInProgress
		}
		if service.LastOperation != nil && service.LastOperation.IsInProgress() {
			logger.Info("superseding in-progress provision")
		}
		op := operation
		service.LastOperation = &op
		return store.Update(ctx, service)
	})
	if err != nil {
		return fmt.Errorf("deprovision service %s: %w", serviceID, err)
	}
	s.cfg.Metrics.ObserveOperation(operation)
	logger.Info("deprovisioning service")

	result, err := s.cfg.Broker.Deprovision(ctx, serviceID)
	if err == nil {
		err = result.Validate()
	}
	if err != nil {
		recordFailure(ctx, s.cfg, serviceID, operation, err)
		return fmt.Errorf("deprovision service %s: %w", serviceID, err)
	}

	err = store.Transaction(ctx, func(ctx context.Context) error {
		locked, err := store.Lock(ctx, serviceID)
		if err != nil {
			return err
		}

		if !result.State.IsTerminal() {
			return startJob(ctx, s.cfg, serviceID)
		}

		_, ok, err := commitResult(ctx, store, locked, operation, result)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("deprovision result superseded", "current_operation", locked.LastOperation)
			return nil
		}
		s.cfg.Metrics.ObserveOperation(*locked.LastOperation)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deprovision service %s: %w", serviceID, err)
	}

	logger.Info("deprovision requested", "state", result.State)
	return nil
}
