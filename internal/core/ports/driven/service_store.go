package driven

import (
	"context"

	"github.com/custodia-labs/broker-core/internal/core/domain"
)

// ServiceStore persists services and serializes lifecycle actions on the
// same service through per-ID advisory locks.
//
// Locks are owned by the execution context carried in ctx (see
// domain.WithOwner). Every value passed in or returned is detached from
// the store's internal state.
type ServiceStore interface {
	// Create assigns a fresh ID and persists a copy of the service.
	Create(ctx context.Context, service *domain.Service) (*domain.Service, error)

	// Load returns a snapshot without consulting locks.
	// The snapshot may be stale by the time the caller acts on it.
	// Returns domain.ErrNotFound if the service does not exist.
	Load(ctx context.Context, id string) (*domain.Service, error)

	// Lock acquires the service's lock for the owner in ctx and returns the current snapshot.
	// Returns domain.ErrLocked if another owner holds it, domain.ErrNotFound if the service does not exist.
	Lock(ctx context.Context, id string) (*domain.Service, error)

	// Update replaces the stored service.
	// Requires that the owner in ctx holds the lock, or that nobody does.
	Update(ctx context.Context, service *domain.Service) error

	// Delete removes the service. Same locking precondition as Update.
	Delete(ctx context.Context, service *domain.Service) error

	// Transaction runs fn and afterwards releases every lock held by the
	// owner in ctx, including locks taken before fn was called.
	// It provides no atomicity across the services touched inside fn.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Ping checks if the backend is healthy.
	Ping(ctx context.Context) error
}
