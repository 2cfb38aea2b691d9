package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BrokerClient = (*Simulated)(nil)

// SimulatedConfig controls how the simulated broker answers.
type SimulatedConfig struct {
	// Polls is how many FetchLastOperation calls an operation stays in progress.
	// Zero completes operations synchronously.
	Polls int

	// FailPlanID makes every provision of this plan end in FAILED.
	FailPlanID string
}

type simulatedOp struct {
	opType domain.OperationType
	fail   bool
	polls  int
}

// Simulated is an in-memory broker for local runs. Operations succeed
// after a fixed number of polls.
type Simulated struct {
	cfg SimulatedConfig

	mu  sync.Mutex
	ops map[string]*simulatedOp
}

// NewSimulated creates a simulated broker.
func NewSimulated(cfg SimulatedConfig) *Simulated {
	return &Simulated{
		cfg: cfg,
		ops: make(map[string]*simulatedOp),
	}
}

// Provision starts a simulated provision.
func (s *Simulated) Provision(ctx context.Context, service *domain.Service) (domain.OperationResult, error) {
	if service == nil || service.ID == "" {
		return domain.OperationResult{}, fmt.Errorf("provision: service id is required: %w", domain.ErrInvalidInput)
	}
	fail := s.cfg.FailPlanID != "" && service.PlanID == s.cfg.FailPlanID
	return s.start(service.ID, domain.OperationTypeProvision, fail), nil
}

// Deprovision starts a simulated deprovision.
func (s *Simulated) Deprovision(ctx context.Context, serviceID string) (domain.OperationResult, error) {
	return s.start(serviceID, domain.OperationTypeDeprovision, false), nil
}

// FetchLastOperation advances the service's operation by one poll.
func (s *Simulated) FetchLastOperation(ctx context.Context, serviceID string) (domain.OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ops[serviceID]
	if !ok {
		return domain.OperationResult{}, fmt.Errorf("no operation for service %s: %w", serviceID, domain.ErrNotFound)
	}
	op.polls++
	if op.polls < s.cfg.Polls {
		return domain.OperationResult{State: domain.OperationStateInProgress}, nil
	}
	return s.finish(op), nil
}

func (s *Simulated) start(serviceID string, opType domain.OperationType, fail bool) domain.OperationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := &simulatedOp{opType: opType, fail: fail}
	s.ops[serviceID] = op
	if s.cfg.Polls <= 0 {
		return s.finish(op)
	}
	return domain.OperationResult{State: domain.OperationStateInProgress}
}

// finish must be called with mu held. Finished operations stay in the map so
// repeated polls keep answering the terminal state.
func (s *Simulated) finish(op *simulatedOp) domain.OperationResult {
	if op.fail {
		return domain.OperationResult{State: domain.OperationStateFailed, Message: "simulated failure"}
	}
	return domain.OperationResult{State: domain.OperationStateSucceeded}
}
