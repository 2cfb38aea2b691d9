package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/broker-core/internal/adapters/driven/memory"
	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/broker-core/internal/core/ports/driving"
	"github.com/custodia-labs/broker-core/internal/metrics"
)

const testRetryDelay = 7 * time.Second

type harness struct {
	store     *memory.ServiceStore
	broker    *mocks.MockBrokerClient
	scheduler *mocks.MockJobScheduler
	metrics   *metrics.Metrics
	cfg       LifecycleConfig

	provision   driving.ProvisionService
	deprovision driving.DeprovisionService
	jobs        *JobFactory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     memory.NewServiceStore(),
		broker:    mocks.NewMockBrokerClient(),
		scheduler: mocks.NewMockJobScheduler(),
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	h.configure(h.store, h.broker)
	return h
}

// configure rebuilds the services on top of the given store and broker,
// which lets tests slot in instrumented wrappers.
func (h *harness) configure(store driven.ServiceStore, broker driven.BrokerClient) {
	h.cfg = LifecycleConfig{
		Store:      store,
		Broker:     broker,
		Scheduler:  h.scheduler,
		Metrics:    h.metrics,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		RetryDelay: testRetryDelay,
	}
	h.provision = NewProvisionService(h.cfg)
	h.deprovision = NewDeprovisionService(h.cfg)
	h.jobs = NewJobFactory(h.cfg)
}

// seed stores a service whose current operation is op.
func (h *harness) seed(t *testing.T, opType domain.OperationType, state domain.OperationState) *domain.Service {
	t.Helper()
	op := domain.Operation{Type: opType, State: state}
	created, err := h.store.Create(context.Background(), &domain.Service{
		Name:          "orders-db",
		PlanID:        "small",
		LastOperation: &op,
	})
	require.NoError(t, err)
	return created
}

func (h *harness) load(t *testing.T, id string) *domain.Service {
	t.Helper()
	service, err := h.store.Load(context.Background(), id)
	require.NoError(t, err)
	return service
}

// scheduledFetchers returns the reconciliation jobs handed to Schedule.
func (h *harness) scheduledFetchers(t *testing.T) []*LastOperationFetcher {
	t.Helper()
	var out []*LastOperationFetcher
	for _, job := range h.scheduler.Scheduled() {
		fetcher, ok := job.(*LastOperationFetcher)
		require.True(t, ok, "unexpected job type %T", job)
		out = append(out, fetcher)
	}
	return out
}

func resultOf(state domain.OperationState, message string) func(context.Context, string) (domain.OperationResult, error) {
	return func(context.Context, string) (domain.OperationResult, error) {
		return domain.OperationResult{State: state, Message: message}, nil
	}
}

func op(opType domain.OperationType, state domain.OperationState) domain.Operation {
	return domain.Operation{Type: opType, State: state}
}

// lockFree reports whether a fresh owner can lock the service.
func lockFree(t *testing.T, store driven.ServiceStore, id string) bool {
	t.Helper()
	free := false
	_ = store.Transaction(context.Background(), func(ctx context.Context) error {
		_, err := store.Lock(ctx, id)
		free = err == nil
		return nil
	})
	return free
}
