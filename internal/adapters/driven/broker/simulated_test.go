package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/broker-core/internal/core/domain"
)

func TestSimulated_Synchronous(t *testing.T) {
	broker := NewSimulated(SimulatedConfig{})
	ctx := context.Background()

	result, err := broker.Provision(ctx, &domain.Service{ID: "svc-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.OperationStateSucceeded, result.State)

	result, err = broker.Deprovision(ctx, "svc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OperationStateSucceeded, result.State)
}

func TestSimulated_CompletesAfterPolls(t *testing.T) {
	broker := NewSimulated(SimulatedConfig{Polls: 3})
	ctx := context.Background()

	result, err := broker.Provision(ctx, &domain.Service{ID: "svc-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.OperationStateInProgress, result.State)

	for i := 0; i < 2; i++ {
		result, err = broker.FetchLastOperation(ctx, "svc-1")
		require.NoError(t, err)
		assert.Equal(t, domain.OperationStateInProgress, result.State, "poll %d", i+1)
	}

	result, err = broker.FetchLastOperation(ctx, "svc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OperationStateSucceeded, result.State)
}

func TestSimulated_FailPlan(t *testing.T) {
	broker := NewSimulated(SimulatedConfig{Polls: 1, FailPlanID: "doomed"})
	ctx := context.Background()

	_, err := broker.Provision(ctx, &domain.Service{ID: "svc-1", PlanID: "doomed"})
	require.NoError(t, err)

	result, err := broker.FetchLastOperation(ctx, "svc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OperationStateFailed, result.State)
	assert.NotEmpty(t, result.Message)
}

func TestSimulated_FinishedDeprovisionKeepsAnswering(t *testing.T) {
	broker := NewSimulated(SimulatedConfig{Polls: 1})
	ctx := context.Background()

	_, err := broker.Deprovision(ctx, "svc-1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		result, err := broker.FetchLastOperation(ctx, "svc-1")
		require.NoError(t, err)
		assert.Equal(t, domain.OperationStateSucceeded, result.State, "poll %d", i+1)
	}
}

func TestSimulated_UnknownService(t *testing.T) {
	_, err := NewSimulated(SimulatedConfig{}).FetchLastOperation(context.Background(), "svc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSimulated_ProvisionNoID(t *testing.T) {
	_, err := NewSimulated(SimulatedConfig{}).Provision(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
