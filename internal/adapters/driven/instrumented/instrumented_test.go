package instrumented

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/broker-core/internal/adapters/driven/memory"
	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven/mocks"
)

func TestServiceStore_RecordsCalls(t *testing.T) {
	rec := NewRecorder()
	store := NewServiceStore(memory.NewServiceStore(), rec.Hook)
	ctx := context.Background()

	created, err := store.Create(ctx, &domain.Service{Name: "db"})
	require.NoError(t, err)

	_, err = store.Load(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = store.Transaction(ctx, func(ctx context.Context) error {
		locked, err := store.Lock(ctx, created.ID)
		if err != nil {
			return err
		}
		return store.Update(ctx, locked)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Create",
		"Load:missing:not found",
		"Lock:" + created.ID,
		"Update:" + created.ID,
		"Transaction",
	}, rec.Trace())

	calls := rec.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, Before, calls[0].Phase)
}

func TestBrokerClient_RecordsCalls(t *testing.T) {
	rec := NewRecorder()
	broker := NewBrokerClient(mocks.NewMockBrokerClient(), rec.Hook)
	ctx := context.Background()

	_, err := broker.Provision(ctx, &domain.Service{ID: "svc-1"})
	require.NoError(t, err)
	_, err = broker.Deprovision(ctx, "svc-1")
	require.NoError(t, err)
	_, err = broker.FetchLastOperation(ctx, "svc-1")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Provision:svc-1",
		"Deprovision:svc-1",
		"FetchLastOperation:svc-1",
	}, rec.Trace())

	rec.Reset()
	assert.Empty(t, rec.Calls())
}

func TestChain_SkipsNil(t *testing.T) {
	var count int
	hook := Chain(nil, func(context.Context, Call) { count++ }, nil)
	hook(context.Background(), Call{Method: "Load"})
	assert.Equal(t, 1, count)
}

func TestBreakpoint_PausesFirstCaller(t *testing.T) {
	bp := NewBreakpoint(At("FetchLastOperation", Before))
	broker := NewBrokerClient(mocks.NewMockBrokerClient(), bp.Hook)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = broker.FetchLastOperation(ctx, "svc-1")
	}()

	select {
	case <-bp.Reached():
	case <-time.After(time.Second):
		t.Fatal("breakpoint not reached")
	}

	// second caller passes through while the first is paused
	_, err := broker.FetchLastOperation(ctx, "svc-1")
	require.NoError(t, err)

	select {
	case <-done:
		t.Fatal("first caller should still be paused")
	default:
	}

	bp.Release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("first caller not released")
	}
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "before", Before.String())
	assert.Equal(t, "after", After.String())
}
