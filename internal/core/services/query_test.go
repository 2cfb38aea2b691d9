package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/broker-core/internal/core/domain"
)

func TestServiceQuery(t *testing.T) {
	h := newHarness(t)
	query := NewServiceQuery(h.store)
	service := h.seed(t, domain.OperationTypeProvision, domain.OperationStateInProgress)
	ctx := context.Background()

	t.Run("get", func(t *testing.T) {
		got, err := query.Get(ctx, service.ID)
		require.NoError(t, err)
		assert.Equal(t, service, got)
	})

	t.Run("last operation", func(t *testing.T) {
		got, err := query.LastOperation(ctx, service.ID)
		require.NoError(t, err)
		assert.Equal(t, op(domain.OperationTypeProvision, domain.OperationStateInProgress), *got)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := query.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = query.LastOperation(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("no operation", func(t *testing.T) {
		bare, err := h.store.Create(ctx, &domain.Service{Name: "bare"})
		require.NoError(t, err)
		_, err = query.LastOperation(ctx, bare.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
