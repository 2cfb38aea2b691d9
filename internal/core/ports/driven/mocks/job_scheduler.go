package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
)

// Ensure MockJobScheduler implements JobScheduler
var _ driven.JobScheduler = (*MockJobScheduler)(nil)

// MockJobScheduler records scheduled jobs without running them.
// Set ScheduleFn or RescheduleInFn to run or fail them instead.
type MockJobScheduler struct {
	mu          sync.Mutex
	scheduled   []driven.Job
	rescheduled []RescheduledJob

	ScheduleFn     func(ctx context.Context, job driven.Job) error
	RescheduleInFn func(ctx context.Context, delay time.Duration, job driven.Job) error
}

// RescheduledJob is a job handed to RescheduleIn together with its delay
type RescheduledJob struct {
	Delay time.Duration
	Job   driven.Job
}

// NewMockJobScheduler creates a new MockJobScheduler
func NewMockJobScheduler() *MockJobScheduler {
	return &MockJobScheduler{}
}

func (m *MockJobScheduler) Schedule(ctx context.Context, job driven.Job) error {
	m.mu.Lock()
	m.scheduled = append(m.scheduled, job)
	fn := m.ScheduleFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, job)
	}
	return nil
}

func (m *MockJobScheduler) RescheduleIn(ctx context.Context, delay time.Duration, job driven.Job) error {
	m.mu.Lock()
	m.rescheduled = append(m.rescheduled, RescheduledJob{Delay: delay, Job: job})
	fn := m.RescheduleInFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, delay, job)
	}
	return nil
}

// Scheduled returns the jobs passed to Schedule.
func (m *MockJobScheduler) Scheduled() []driven.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]driven.Job(nil), m.scheduled...)
}

// Rescheduled returns the jobs passed to RescheduleIn.
func (m *MockJobScheduler) Rescheduled() []RescheduledJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RescheduledJob(nil), m.rescheduled...)
}

// Reset forgets all recorded jobs.
func (m *MockJobScheduler) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduled = nil
	m.rescheduled = nil
}
