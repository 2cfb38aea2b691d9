package driven

import (
	"context"

	"github.com/custodia-labs/broker-core/internal/core/domain"
)

// BrokerClient talks to the external provisioning backend.
// Transport and decoding failures are returned as errors, never encoded as a state.
type BrokerClient interface {
	// Provision starts provisioning the given (already stored) service.
	Provision(ctx context.Context, service *domain.Service) (domain.OperationResult, error)

	// Deprovision starts tearing down the service.
	Deprovision(ctx context.Context, serviceID string) (domain.OperationResult, error)

	// FetchLastOperation polls the state of the service's last operation.
	FetchLastOperation(ctx context.Context, serviceID string) (domain.OperationResult, error)
}
