package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/broker-core/internal/adapters/driven/memory"
	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/broker-core/internal/core/services"
)

type recordingJob struct {
	runs chan context.Context
	fn   func(ctx context.Context)
}

func newRecordingJob() *recordingJob {
	return &recordingJob{runs: make(chan context.Context, 16)}
}

func (j *recordingJob) Perform(ctx context.Context) {
	if j.fn != nil {
		j.fn(ctx)
	}
	j.runs <- ctx
}

func (j *recordingJob) Task() *domain.Task {
	return domain.NewFetchLastOperationTask("svc-1")
}

func (j *recordingJob) waitRun(t *testing.T) context.Context {
	t.Helper()
	select {
	case ctx := <-j.runs:
		return ctx
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
		return nil
	}
}

func newTestScheduler(clk *testclock.Clock) *InProcess {
	return NewInProcess(InProcessConfig{
		Clock:  clk,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestInProcess_Schedule(t *testing.T) {
	s := newTestScheduler(testclock.NewClock(time.Now()))
	defer s.Stop()
	job := newRecordingJob()

	// the caller's context may be gone by the time the job runs
	reqCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Schedule(reqCtx, job))
	cancel()

	ctx := job.waitRun(t)
	assert.NoError(t, ctx.Err())
}

func TestInProcess_RescheduleIn(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	s := newTestScheduler(clk)
	defer s.Stop()
	job := newRecordingJob()

	require.NoError(t, s.RescheduleIn(context.Background(), 5*time.Second, job))
	assert.Equal(t, 1, s.Pending())

	select {
	case <-job.runs:
		t.Fatal("job ran before its delay")
	default:
	}

	require.NoError(t, clk.WaitAdvance(5*time.Second, time.Second, 1))
	job.waitRun(t)
	assert.Equal(t, 0, s.Pending())
}

func TestInProcess_Wait(t *testing.T) {
	s := newTestScheduler(testclock.NewClock(time.Now()))
	defer s.Stop()

	var finished atomic.Bool
	job := newRecordingJob()
	job.fn = func(context.Context) {
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	}

	require.NoError(t, s.Schedule(context.Background(), job))
	job.waitRun(t)
	s.Wait()
	assert.True(t, finished.Load())
}

func TestInProcess_Stop(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	s := newTestScheduler(clk)
	job := newRecordingJob()

	require.NoError(t, s.RescheduleIn(context.Background(), time.Minute, job))
	s.Stop()

	assert.Equal(t, 0, s.Pending())
	assert.ErrorIs(t, s.Schedule(context.Background(), job), ErrStopped)
	assert.ErrorIs(t, s.RescheduleIn(context.Background(), time.Second, job), ErrStopped)

	clk.Advance(time.Hour)
	select {
	case <-job.runs:
		t.Fatal("disarmed job ran")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInProcess_StopCancelsRunningJobs(t *testing.T) {
	s := newTestScheduler(testclock.NewClock(time.Now()))
	started := make(chan struct{})
	job := newRecordingJob()
	job.fn = func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}

	require.NoError(t, s.Schedule(context.Background(), job))
	<-started
	s.Stop()

	ctx := job.waitRun(t)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestInProcess_RecoversPanics(t *testing.T) {
	s := newTestScheduler(testclock.NewClock(time.Now()))
	defer s.Stop()

	job := newRecordingJob()
	job.fn = func(context.Context) { panic("boom") }
	require.NoError(t, s.Schedule(context.Background(), job))
	s.Wait()

	next := newRecordingJob()
	require.NoError(t, s.Schedule(context.Background(), next))
	next.waitRun(t)
}

func TestInProcess_ReconcilesProvision(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	s := newTestScheduler(clk)
	defer s.Stop()

	store := memory.NewServiceStore()
	broker := mocks.NewMockBrokerClient()
	var fetches atomic.Int32
	broker.FetchLastOperationFn = func(context.Context, string) (domain.OperationResult, error) {
		if fetches.Add(1) == 1 {
			return domain.OperationResult{State: domain.OperationStateInProgress}, nil
		}
		return domain.OperationResult{State: domain.OperationStateSucceeded}, nil
	}

	cfg := services.LifecycleConfig{
		Store:      store,
		Broker:     broker,
		Scheduler:  s,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		RetryDelay: 5 * time.Second,
	}
	service, err := services.NewProvisionService(cfg).Provision(context.Background(), &domain.Service{Name: "orders-db"})
	require.NoError(t, err)

	// first poll still in progress, so the job waits on the clock
	require.NoError(t, clk.WaitAdvance(5*time.Second, 5*time.Second, 1))

	assert.Eventually(t, func() bool {
		stored, err := store.Load(context.Background(), service.ID)
		return err == nil && stored.LastOperation.State == domain.OperationStateSucceeded
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), fetches.Load())
}
