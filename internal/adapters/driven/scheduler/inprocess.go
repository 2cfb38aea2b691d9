// Package scheduler provides JobScheduler implementations.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
	"github.com/custodia-labs/broker-core/internal/metrics"
)

// ErrStopped is returned when a job is handed to a stopped scheduler.
var ErrStopped = errors.New("scheduler stopped")

// Verify interface compliance
var _ driven.JobScheduler = (*InProcess)(nil)

// InProcessConfig holds configuration for the in-process scheduler.
type InProcessConfig struct {
	Clock   clock.Clock
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// InProcess runs jobs on goroutines in this process. Delayed jobs wait on a
// clock timer, so nothing is held while they wait.
type InProcess struct {
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger

	// jobs run on this context rather than on the caller's
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	idle    *sync.Cond
	running int
	nextID  int
	timers  map[int]clock.Timer
	stopped bool
}

// NewInProcess creates a new in-process scheduler.
func NewInProcess(cfg InProcessConfig) *InProcess {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &InProcess{
		clock:   cfg.Clock,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[int]clock.Timer),
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Schedule starts the job on a new goroutine.
func (s *InProcess) Schedule(_ context.Context, job driven.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	s.start(job)
	return nil
}

// RescheduleIn starts the job once delay has elapsed on the scheduler's clock.
func (s *InProcess) RescheduleIn(_ context.Context, delay time.Duration, job driven.Job) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	id := s.nextID
	s.nextID++
	s.timers[id] = nil
	s.mu.Unlock()

	// the clock may fire f before AfterFunc returns, so s.mu is not held here
	timer := s.clock.AfterFunc(delay, func() { s.fire(id, job) })

	s.mu.Lock()
	if _, armed := s.timers[id]; armed {
		s.timers[id] = timer
	}
	s.mu.Unlock()
	return nil
}

func (s *InProcess) fire(id int, job driven.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, armed := s.timers[id]; !armed {
		return
	}
	delete(s.timers, id)
	if !s.stopped {
		s.start(job)
	}
}

// start must be called with s.mu held.
func (s *InProcess) start(job driven.Job) {
	s.running++
	go s.run(job)
}

func (s *InProcess) run(job driven.Job) {
	s.metrics.JobStarted()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "task_type", job.Task().Type, "panic", r)
		}
		s.metrics.JobFinished()

		s.mu.Lock()
		s.running--
		if s.running == 0 {
			s.idle.Broadcast()
		}
		s.mu.Unlock()
	}()

	job.Perform(s.ctx)
}

// Pending returns the number of armed timers.
func (s *InProcess) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Wait blocks until no job is running. Armed timers are not waited for.
func (s *InProcess) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.running > 0 {
		s.idle.Wait()
	}
}

// Stop disarms pending timers, cancels the jobs' context and waits for
// running jobs to return. Further scheduling fails with ErrStopped.
func (s *InProcess) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, timer := range s.timers {
		if timer != nil {
			timer.Stop()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.cancel()
	s.Wait()
	s.logger.Info("scheduler stopped")
}
