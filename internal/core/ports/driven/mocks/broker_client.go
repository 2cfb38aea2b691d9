package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
)

// Ensure MockBrokerClient implements BrokerClient
var _ driven.BrokerClient = (*MockBrokerClient)(nil)

// MockBrokerClient is a mock implementation of BrokerClient for testing.
// Without hooks every call reports an operation still in progress.
type MockBrokerClient struct {
	mu    sync.Mutex
	calls []BrokerCall

	ProvisionFn          func(ctx context.Context, service *domain.Service) (domain.OperationResult, error)
	DeprovisionFn        func(ctx context.Context, serviceID string) (domain.OperationResult, error)
	FetchLastOperationFn func(ctx context.Context, serviceID string) (domain.OperationResult, error)
}

// BrokerCall records one call made to the mock
type BrokerCall struct {
	Method    string
	ServiceID string
}

// NewMockBrokerClient creates a new MockBrokerClient
func NewMockBrokerClient() *MockBrokerClient {
	return &MockBrokerClient{}
}

func (m *MockBrokerClient) record(method, serviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, BrokerCall{Method: method, ServiceID: serviceID})
}

func (m *MockBrokerClient) Provision(ctx context.Context, service *domain.Service) (domain.OperationResult, error) {
	m.record("Provision", service.ID)
	if m.ProvisionFn != nil {
		return m.ProvisionFn(ctx, service)
	}
	return domain.OperationResult{State: domain.OperationStateInProgress}, nil
}

func (m *MockBrokerClient) Deprovision(ctx context.Context, serviceID string) (domain.OperationResult, error) {
	m.record("Deprovision", serviceID)
	if m.DeprovisionFn != nil {
		return m.DeprovisionFn(ctx, serviceID)
	}
	return domain.OperationResult{State: domain.OperationStateInProgress}, nil
}

func (m *MockBrokerClient) FetchLastOperation(ctx context.Context, serviceID string) (domain.OperationResult, error) {
	m.record("FetchLastOperation", serviceID)
	if m.FetchLastOperationFn != nil {
		return m.FetchLastOperationFn(ctx, serviceID)
	}
	return domain.OperationResult{State: domain.OperationStateInProgress}, nil
}

// Calls returns a copy of the recorded calls.
func (m *MockBrokerClient) Calls() []BrokerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BrokerCall(nil), m.calls...)
}

// CallCount returns how many times method was called.
func (m *MockBrokerClient) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}
