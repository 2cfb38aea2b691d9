// Package locking provides the process-local advisory lock table shared by
// the ServiceStore adapters.
package locking

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/broker-core/internal/core/domain"
)

// Table maps service IDs to the owner currently holding their lock.
// The mutex only guards the map itself and is never held while callers run
// business logic.
type Table struct {
	mu     sync.Mutex
	owners map[string]domain.OwnerID
}

// NewTable creates an empty lock table.
func NewTable() *Table {
	return &Table{
		owners: make(map[string]domain.OwnerID),
	}
}

// Acquire records the owner in ctx as the holder of id.
// Re-acquiring a lock already held by the same owner succeeds.
// It reports whether the lock was newly taken by this call.
func (t *Table) Acquire(ctx context.Context, id string) (bool, error) {
	owner, ok := domain.OwnerFromContext(ctx)
	if !ok {
		return false, fmt.Errorf("lock service %s without an owner: %w", id, domain.ErrInvalidInput)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	holder, held := t.owners[id]
	if held && holder != owner {
		return false, fmt.Errorf("service %s: %w", id, domain.ErrLocked)
	}
	t.owners[id] = owner
	return !held, nil
}

// Check verifies that the caller may write id: either nobody holds the
// lock or the owner in ctx does. A context without an owner passes only
// when the lock is free.
func (t *Table) Check(ctx context.Context, id string) error {
	owner, _ := domain.OwnerFromContext(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	holder, held := t.owners[id]
	if held && holder != owner {
		return fmt.Errorf("service %s: %w", id, domain.ErrLocked)
	}
	return nil
}

// Release drops the lock on id if the owner in ctx holds it.
func (t *Table) Release(ctx context.Context, id string) {
	owner, ok := domain.OwnerFromContext(ctx)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.owners[id] == owner {
		delete(t.owners, id)
	}
}

// ReleaseAll drops every lock held by owner and returns how many were released.
func (t *Table) ReleaseAll(owner domain.OwnerID) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	released := 0
	for id, holder := range t.owners {
		if holder == owner {
			delete(t.owners, id)
			released++
		}
	}
	return released
}

// Holder returns the owner holding id, if any.
func (t *Table) Holder(id string) (domain.OwnerID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	holder, ok := t.owners[id]
	return holder, ok
}

// Transaction runs fn under an owner (the one in ctx, or a fresh one) and
// releases every lock that owner holds once fn returns or panics.
func (t *Table) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx = domain.EnsureOwner(ctx)
	owner, _ := domain.OwnerFromContext(ctx)
	defer t.ReleaseAll(owner)

	return fn(ctx)
}
