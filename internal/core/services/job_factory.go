package services

import (
	"fmt"

	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
)

// JobFactory builds reconciliation jobs, either directly or from a queued task.
type JobFactory struct {
	cfg LifecycleConfig
}

// NewJobFactory creates a new JobFactory
func NewJobFactory(cfg LifecycleConfig) *JobFactory {
	return &JobFactory{cfg: cfg.withDefaults()}
}

func (f *JobFactory) NewLastOperationFetcher(serviceID string) *LastOperationFetcher {
	return newLastOperationFetcher(f.cfg, serviceID)
}

// FromTask rebuilds the job a task describes.
func (f *JobFactory) FromTask(task *domain.Task) (driven.Job, error) {
	switch task.Type {
	case domain.TaskTypeFetchLastOperation:
		serviceID := task.ServiceID()
		if serviceID == "" {
			return nil, fmt.Errorf("task %s has no service_id: %w", task.ID, domain.ErrInvalidInput)
		}
		return f.NewLastOperationFetcher(serviceID), nil
	default:
		return nil, fmt.Errorf("unknown task type %q: %w", task.Type, domain.ErrInvalidInput)
	}
}
