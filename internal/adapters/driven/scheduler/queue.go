package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"

	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.JobScheduler = (*Queue)(nil)

// Queue hands jobs to a TaskQueue as tasks. A worker rebuilds and performs
// them, possibly in another process.
type Queue struct {
	queue driven.TaskQueue
	clock clock.Clock
}

// NewQueue creates a queue-backed scheduler. A nil clock means wall time.
func NewQueue(queue driven.TaskQueue, clk clock.Clock) *Queue {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Queue{queue: queue, clock: clk}
}

func (q *Queue) Schedule(ctx context.Context, job driven.Job) error {
	return q.enqueue(ctx, 0, job)
}

func (q *Queue) RescheduleIn(ctx context.Context, delay time.Duration, job driven.Job) error {
	return q.enqueue(ctx, delay, job)
}

func (q *Queue) enqueue(ctx context.Context, delay time.Duration, job driven.Job) error {
	task := job.Task()
	task.ScheduledFor = q.clock.Now().Add(delay)
	if err := q.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s task: %w", task.Type, err)
	}
	return nil
}
