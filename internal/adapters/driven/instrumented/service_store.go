package instrumented

import (
	"context"

	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ServiceStore = (*ServiceStore)(nil)

type ServiceStore struct {
	inner driven.ServiceStore
	tracer
}

func NewServiceStore(inner driven.ServiceStore, hook Hook) *ServiceStore {
	return &ServiceStore{inner: inner, tracer: tracer{hook: hook}}
}

func (s *ServiceStore) Create(ctx context.Context, service *domain.Service) (created *domain.Service, err error) {
	done := s.trace(ctx, "Create", "")
	defer func() { done(err) }()
	return s.inner.Create(ctx, service)
}

func (s *ServiceStore) Load(ctx context.Context, id string) (service *domain.Service, err error) {
	done := s.trace(ctx, "Load", id)
	defer func() { done(err) }()
	return s.inner.Load(ctx, id)
}

func (s *ServiceStore) Lock(ctx context.Context, id string) (service *domain.Service, err error) {
	done := s.trace(ctx, "Lock", id)
	defer func() { done(err) }()
	return s.inner.Lock(ctx, id)
}

func (s *ServiceStore) Update(ctx context.Context, service *domain.Service) (err error) {
	done := s.trace(ctx, "Update", serviceID(service))
	defer func() { done(err) }()
	return s.inner.Update(ctx, service)
}

func (s *ServiceStore) Delete(ctx context.Context, service *domain.Service) (err error) {
	done := s.trace(ctx, "Delete", serviceID(service))
	defer func() { done(err) }()
	return s.inner.Delete(ctx, service)
}

func (s *ServiceStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	done := s.trace(ctx, "Transaction", "")
	defer func() { done(err) }()
	return s.inner.Transaction(ctx, fn)
}

func (s *ServiceStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}
