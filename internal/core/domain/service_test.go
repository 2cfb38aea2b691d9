package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Clone(t *testing.T) {
	op := NewOperation(OperationTypeProvision)
	original := &Service{
		ID:            "svc-1",
		Name:          "orders-db",
		PlanID:        "small",
		Parameters:    map[string]string{"region": "eu"},
		LastOperation: &op,
		CreatedAt:     time.Now(),
	}

	clone := original.Clone()
	require.NotNil(t, clone)
	assert.Equal(t, original, clone)

	clone.Parameters["region"] = "us"
	clone.LastOperation.State = OperationStateFailed
	clone.Name = "changed"

	assert.Equal(t, "eu", original.Parameters["region"])
	assert.Equal(t, OperationStateInProgress, original.LastOperation.State)
	assert.Equal(t, "orders-db", original.Name)
}

func TestService_Clone_Nil(t *testing.T) {
	var s *Service
	assert.Nil(t, s.Clone())

	empty := (&Service{}).Clone()
	require.NotNil(t, empty)
	assert.Nil(t, empty.LastOperation)
	assert.Nil(t, empty.Parameters)
}

func TestService_HasOperationInProgress(t *testing.T) {
	s := &Service{}
	assert.False(t, s.HasOperationInProgress())

	op := NewOperation(OperationTypeDeprovision)
	s.LastOperation = &op
	assert.True(t, s.HasOperationInProgress())

	s.LastOperation.State = OperationStateSucceeded
	assert.False(t, s.HasOperationInProgress())
}

func TestNewService(t *testing.T) {
	params := map[string]string{"size": "10GB"}
	s := NewService(ProvisionRequest{Name: "cache", PlanID: "standard", Parameters: params})

	assert.Empty(t, s.ID)
	assert.Nil(t, s.LastOperation)
	assert.Equal(t, "cache", s.Name)
	assert.Equal(t, "standard", s.PlanID)

	params["size"] = "20GB"
	assert.Equal(t, "10GB", s.Parameters["size"])
}
