// Package redis provides a Redis-backed ServiceStore.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/broker-core/internal/adapters/driven/locking"
	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ServiceStore = (*ServiceStore)(nil)

const servicePrefix = "broker:service:"

// ServiceStore keeps each service as a JSON document under its own key.
// Locks live in a process-local table; Redis only holds the records.
type ServiceStore struct {
	client *redis.Client
	locks  *locking.Table
}

// NewServiceStore creates a new Redis-backed ServiceStore
func NewServiceStore(client *redis.Client) *ServiceStore {
	return &ServiceStore{
		client: client,
		locks:  locking.NewTable(),
	}
}

func serviceKey(id string) string {
	return servicePrefix + id
}

// Create assigns a fresh ID and stores the service with SETNX.
func (s *ServiceStore) Create(ctx context.Context, service *domain.Service) (*domain.Service, error) {
	if service == nil {
		return nil, fmt.Errorf("create service: %w", domain.ErrInvalidInput)
	}

	created := service.Clone()
	created.ID = uuid.NewString()
	now := time.Now()
	created.CreatedAt = now
	created.UpdatedAt = now

	data, err := json.Marshal(created)
	if err != nil {
		return nil, fmt.Errorf("marshal service: %w", err)
	}

	ok, err := s.client.SetNX(ctx, serviceKey(created.ID), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("create service %s: %w", created.ID, domain.ErrAlreadyExists)
	}
	return created, nil
}

// Load reads the service without consulting the lock table.
func (s *ServiceStore) Load(ctx context.Context, id string) (*domain.Service, error) {
	data, err := s.client.Get(ctx, serviceKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}

	var service domain.Service
	if err := json.Unmarshal(data, &service); err != nil {
		return nil, fmt.Errorf("unmarshal service: %w", err)
	}
	return &service, nil
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

// Update overwrites an existing record using SET XX.
func (s *ServiceStore) Update(ctx context.Context, service *domain.Service) error {
	if service == nil || service.ID == "" {
		return fmt.Errorf("update service: id is required: %w", domain.ErrInvalidInput)
	}
	if err := s.locks.Check(ctx, service.ID); err != nil {
		return err
	}

	updated := service.Clone()
	updated.UpdatedAt = time.Now()
	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("marshal service: %w", err)
	}

	ok, err := s.client.SetXX(ctx, serviceKey(service.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	if !ok {
		return fmt.Errorf("update service %s: %w", service.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes the service's key.
func (s *ServiceStore) Delete(ctx context.Context, service *domain.Service) error {
	if service == nil || service.ID == "" {
		return fmt.Errorf("delete service: id is required: %w", domain.ErrInvalidInput)
	}
	if err := s.locks.Check(ctx, service.ID); err != nil {
		return err
	}

	if err := s.client.Del(ctx, serviceKey(service.ID)).Err(); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	return nil
}

// Transaction runs fn and releases every lock held by the calling owner afterwards.
func (s *ServiceStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.locks.Transaction(ctx, fn)
}

// Ping checks if Redis is reachable
func (s *ServiceStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
