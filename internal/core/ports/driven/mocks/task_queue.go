package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
)

// Ensure MockTaskQueue implements TaskQueue
var _ driven.TaskQueue = (*MockTaskQueue)(nil)

// MockTaskQueue is an in-memory TaskQueue for testing.
// Dequeue returns ready tasks in enqueue order and never blocks.
type MockTaskQueue struct {
	mu    sync.Mutex
	tasks []*domain.Task
	acked []string
	nacks map[string]string

	EnqueueFn func(task *domain.Task) error
	DequeueFn func() (*domain.Task, error)
	PingFn    func() error
}

// NewMockTaskQueue creates a new MockTaskQueue
func NewMockTaskQueue() *MockTaskQueue {
	return &MockTaskQueue{nacks: make(map[string]string)}
}

func (m *MockTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	if m.EnqueueFn != nil {
		if err := m.EnqueueFn(task); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *MockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	if m.DequeueFn != nil {
		return m.DequeueFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, task := range m.tasks {
		if task.IsReady() {
			task.MarkProcessing()
			return task, nil
		}
	}
	return nil, nil
}

func (m *MockTaskQueue) Ack(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, taskID)
	if task := m.find(taskID); task != nil {
		task.MarkCompleted()
	}
	return nil
}

func (m *MockTaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nacks[taskID] = reason
	if task := m.find(taskID); task != nil {
		if task.CanRetry() {
			task.Retry(reason)
		} else {
			task.MarkFailed(reason)
		}
	}
	return nil
}

func (m *MockTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(taskID), nil
}

func (m *MockTaskQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &driven.QueueStats{}
	for _, task := range m.tasks {
		switch task.Status {
		case domain.TaskStatusPending:
			stats.PendingCount++
		case domain.TaskStatusProcessing:
			stats.ProcessingCount++
		case domain.TaskStatusCompleted:
			stats.CompletedCount++
		case domain.TaskStatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

func (m *MockTaskQueue) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

func (m *MockTaskQueue) Close() error {
	return nil
}

// Tasks returns all enqueued tasks.
func (m *MockTaskQueue) Tasks() []*domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Task(nil), m.tasks...)
}

// Acked returns the IDs of acknowledged tasks.
func (m *MockTaskQueue) Acked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...)
}

// NackReason returns the reason a task was nacked with, if any.
func (m *MockTaskQueue) NackReason(taskID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reason, ok := m.nacks[taskID]
	return reason, ok
}

func (m *MockTaskQueue) find(taskID string) *domain.Task {
	for _, task := range m.tasks {
		if task.ID == taskID {
			return task
		}
	}
	return nil
}
