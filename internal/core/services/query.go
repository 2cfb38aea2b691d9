package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
	"github.com/custodia-labs/broker-core/internal/core/ports/driving"
)

// Ensure serviceQuery implements ServiceQuery
var _ driving.ServiceQuery = (*serviceQuery)(nil)

type serviceQuery struct {
	store driven.ServiceStore
}

// NewServiceQuery creates a new ServiceQuery
func NewServiceQuery(store driven.ServiceStore) driving.ServiceQuery {
	return &serviceQuery{store: store}
}

func (q *serviceQuery) Get(ctx context.Context, serviceID string) (*domain.Service, error) {
	return q.store.Load(ctx, serviceID)
}

func (q *serviceQuery) LastOperation(ctx context.Context, serviceID string) (*domain.Operation, error) {
	service, err := q.store.Load(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if service.LastOperation == nil {
		return nil, fmt.Errorf("service %s has no operation: %w", serviceID, domain.ErrNotFound)
	}
	op := *service.LastOperation
	return &op, nil
}
