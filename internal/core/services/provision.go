package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driving"
)

// Ensure provisionService implements ProvisionService
var _ driving.ProvisionService = (*provisionService)(nil)

type provisionService struct {
	cfg LifecycleConfig
}

// NewProvisionService creates a new ProvisionService
func NewProvisionService(cfg LifecycleConfig) driving.ProvisionService {
	return &provisionService{cfg: cfg.withDefaults()}
}

// Provision implements the four-step provisioning flow:
//  1. store the service with a new in-progress provision operation
//  2. ask the broker to provision it (no lock held)
//  3. lock the service
//  4. schedule reconciliation, or commit the broker's terminal result
func (s *provisionService) Provision(ctx context.Context, newService *domain.Service) (*domain.Service, error) {
	if newService == nil {
		return nil, fmt.Errorf("provision: %w", domain.ErrInvalidInput)
	}
	ctx = domain.EnsureOwner(ctx)
	store := s.cfg.Store

	operation := domain.NewOperation(domain.OperationTypeProvision)
	pending := newService.Clone()
	pending.ID = ""
	pending.LastOperation = &operation

	service, err := store.Create(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	s.cfg.Metrics.ObserveOperation(operation)

	logger := s.cfg.Logger.With("service_id", service.ID, "operation_type", operation.Type)
	logger.Info("provisioning service", "plan_id", service.PlanID)

	result, err := s.cfg.Broker.Provision(ctx, service)
	if err == nil {
		err = result.Validate()
	}
	if err != nil {
		recordFailure(ctx, s.cfg, service.ID, operation, err)
		return nil, fmt.Errorf("provision service %s: %w", service.ID, err)
	}

	finalized := service
	err = store.Transaction(ctx, func(ctx context.Context) error {
		locked, err := store.Lock(ctx, service.ID)
		if err != nil {
			return err
		}

		if !result.State.IsTerminal() {
			return startJob(ctx, s.cfg, service.ID)
		}

		committed, ok, err := commitResult(ctx, store, locked, operation, result)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("provision result superseded", "current_operation", locked.LastOperation)
			return nil
		}
		s.cfg.Metrics.ObserveOperation(*committed.LastOperation)
		finalized = committed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("provision service %s: %w", service.ID, err)
	}

	logger.Info("provision requested", "state", result.State)
	return finalized, nil
}
