package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/broker-core/internal/core/domain"
)

// Job is a unit of background work.
type Job interface {
	// Perform runs the job. Failures are handled by the job itself.
	Perform(ctx context.Context)

	// Task describes the job so it can be queued and rebuilt later.
	Task() *domain.Task
}

// JobScheduler runs jobs asynchronously. Both calls are fire-and-forget:
// callers get no handle to await or cancel the job. An error means the job
// could not be handed over at all.
type JobScheduler interface {
	// Schedule starts the job as soon as possible.
	Schedule(ctx context.Context, job Job) error

	// RescheduleIn starts the job once delay has elapsed.
	RescheduleIn(ctx context.Context, delay time.Duration, job Job) error
}
