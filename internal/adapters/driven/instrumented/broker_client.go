package instrumented

import (
	"context"

	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BrokerClient = (*BrokerClient)(nil)

type BrokerClient struct {
	inner driven.BrokerClient
	tracer
}

func NewBrokerClient(inner driven.BrokerClient, hook Hook) *BrokerClient {
	return &BrokerClient{inner: inner, tracer: tracer{hook: hook}}
}

func (b *BrokerClient) Provision(ctx context.Context, service *domain.Service) (result domain.OperationResult, err error) {
	done := b.trace(ctx, "Provision", serviceID(service))
	defer func() { done(err) }()
	return b.inner.Provision(ctx, service)
}

func (b *BrokerClient) Deprovision(ctx context.Context, serviceID string) (result domain.OperationResult, err error) {
	done := b.trace(ctx, "Deprovision", serviceID)
	defer func() { done(err) }()
	return b.inner.Deprovision(ctx, serviceID)
}

func (b *BrokerClient) FetchLastOperation(ctx context.Context, serviceID string) (result domain.OperationResult, err error) {
	done := b.trace(ctx, "FetchLastOperation", serviceID)
	defer func() { done(err) }()
	return b.inner.FetchLastOperation(ctx, serviceID)
}
