package driving

import (
	"context"

	"github.com/custodia-labs/broker-core/internal/core/domain"
)

// ProvisionService starts the provisioning of new services
type ProvisionService interface {
	// Provision stores the service with an in-progress provision operation and
	// asks the broker to create it. If the broker finishes immediately the
	// returned service carries the terminal operation; otherwise a
	// reconciliation job is scheduled and the creation snapshot is returned.
	Provision(ctx context.Context, newService *domain.Service) (*domain.Service, error)
}

// DeprovisionService tears services down
type DeprovisionService interface {
	// Deprovision replaces the service's current operation with an in-progress
	// deprovision and asks the broker to remove it.
	// Returns domain.ErrOperationInProgress if a non-provision operation is still running.
	Deprovision(ctx context.Context, serviceID string) error
}

// ServiceQuery reads services without taking locks
type ServiceQuery interface {
	// Get returns a snapshot of the service
	Get(ctx context.Context, serviceID string) (*domain.Service, error)

	// LastOperation returns the service's current operation
	LastOperation(ctx context.Context, serviceID string) (*domain.Operation, error)
}
