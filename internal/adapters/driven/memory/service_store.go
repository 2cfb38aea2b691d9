// Package memory provides the in-memory ServiceStore.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/broker-core/internal/adapters/driven/locking"
	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ServiceStore = (*ServiceStore)(nil)

// ServiceStore keeps services in a map. Reads and writes copy values in and
// out so callers never share memory with stored records.
type ServiceStore struct {
	mu       sync.RWMutex
	services map[string]*domain.Service
	locks    *locking.Table
}

// NewServiceStore creates an empty in-memory store.
func NewServiceStore() *ServiceStore {
	return &ServiceStore{
		services: make(map[string]*domain.Service),
		locks:    locking.NewTable(),
	}
}

// Create assigns a fresh ID and stores a copy of the service.
func (s *ServiceStore) Create(ctx context.Context, service *domain.Service) (*domain.Service, error) {
	if service == nil {
		return nil, fmt.Errorf("create service: %w", domain.ErrInvalidInput)
	}

	created := service.Clone()
	created.ID = uuid.NewString()
	now := time.Now()
	created.CreatedAt = now
	created.UpdatedAt = now

	s.mu.Lock()
	s.services[created.ID] = created
	s.mu.Unlock()

	return created.Clone(), nil
}

// Load returns a snapshot of the service without consulting the lock table.
func (s *ServiceStore) Load(ctx context.Context, id string) (*domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	service, ok := s.services[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return service.Clone(), nil
}

// Lock takes the service's lock for the owner in ctx and returns the current snapshot.
func (s *ServiceStore) Lock(ctx context.Context, id string) (*domain.Service, error) {
	fresh, err := s.locks.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}

	service, err := s.Load(ctx, id)
	if err != nil {
		if fresh {
			s.locks.Release(ctx, id)
		}
		return nil, fmt.Errorf("lock service %s: %w", id, err)
	}
	return service, nil
}

// Update replaces the stored service with a copy of the given one.
func (s *ServiceStore) Update(ctx context.Context, service *domain.Service) error {
	if service == nil || service.ID == "" {
		return fmt.Errorf("update service: id is required: %w", domain.ErrInvalidInput)
	}
	if err := s.locks.Check(ctx, service.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.services[service.ID]; !ok {
		return fmt.Errorf("update service %s: %w", service.ID, domain.ErrNotFound)
	}
	updated := service.Clone()
	updated.UpdatedAt = time.Now()
	s.services[service.ID] = updated
	return nil
}

// Delete removes the service.
func (s *ServiceStore) Delete(ctx context.Context, service *domain.Service) error {
	if service == nil || service.ID == "" {
		return fmt.Errorf("delete service: id is required: %w", domain.ErrInvalidInput)
	}
	if err := s.locks.Check(ctx, service.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.services, service.ID)
	return nil
}

// Transaction runs fn and releases every lock held by the calling owner afterwards.
func (s *ServiceStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.locks.Transaction(ctx, fn)
}

// Ping always succeeds for the in-memory store.
func (s *ServiceStore) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of stored services.
func (s *ServiceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.services)
}
