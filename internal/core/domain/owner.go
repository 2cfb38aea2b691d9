package domain

import (
	"context"

	"github.com/google/uuid"
)

// OwnerID identifies one logical execution context (a request, a job run).
// Service locks are held by an owner and released together when its
// transaction ends.
type OwnerID string

type ownerContextKey struct{}

// NewOwnerID returns a fresh, unique owner token.
func NewOwnerID() OwnerID {
	return OwnerID(uuid.NewString())
}

// WithOwner returns a copy of ctx carrying the given owner.
func WithOwner(ctx context.Context, owner OwnerID) context.Context {
	return context.WithValue(ctx, ownerContextKey{}, owner)
}

// OwnerFromContext extracts the owner from ctx, if any.
func OwnerFromContext(ctx context.Context) (OwnerID, bool) {
	if ctx == nil {
		return "", false
	}
	owner, ok := ctx.Value(ownerContextKey{}).(OwnerID)
	return owner, ok && owner != ""
}

// EnsureOwner returns ctx unchanged if it already carries an owner,
// otherwise a derived context with a fresh one.
func EnsureOwner(ctx context.Context) context.Context {
	if _, ok := OwnerFromContext(ctx); ok {
		return ctx
	}
	return WithOwner(ctx, NewOwnerID())
}
