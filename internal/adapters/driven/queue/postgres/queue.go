package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pg "github.com/custodia-labs/broker-core/internal/adapters/driven/postgres"
	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
)

// Ensure Queue implements TaskQueue
var _ driven.TaskQueue = (*Queue)(nil)

// pollInterval is how often an empty queue is re-checked while waiting.
const pollInterval = 500 * time.Millisecond

// Queue implements TaskQueue using PostgreSQL with SKIP LOCKED for reliable task processing.
// This is the fallback queue when Redis is not available.
type Queue struct {
	db *pg.DB
}

// NewQueue creates a new PostgreSQL-backed task queue.
// Assumes the tasks table exists (see postgres.DB.InitSchema).
func NewQueue(db *pg.DB) *Queue {
	return &Queue{db: db}
}

const taskColumns = `id, type, payload, status, attempts, max_attempts, error,
	created_at, updated_at, started_at, completed_at, scheduled_for`

// Enqueue adds a task to the queue
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return fmt.Errorf("enqueue: %w", domain.ErrInvalidInput)
	}
	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		task.ID,
		task.Type,
		payload,
		task.Status,
		task.Attempts,
		task.MaxAttempts,
		task.Error,
		task.CreatedAt,
		task.UpdatedAt,
		pg.NullTime(task.StartedAt),
		pg.NullTime(task.CompletedAt),
		task.ScheduledFor,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// DequeueWithTimeout retrieves the next task, polling for up to timeout seconds.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	deadline := time.Now().Add(time.Duration(timeout) * time.Second)
	for {
		task, err := q.dequeue(ctx)
		if err != nil || task != nil {
			return task, err
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// dequeue claims the oldest due task using SELECT FOR UPDATE SKIP LOCKED,
// so concurrent workers never receive the same task.
func (q *Queue) dequeue(ctx context.Context) (*domain.Task, error) {
	var task *domain.Task
	err := q.db.Transaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT `+taskColumns+`
			FROM tasks
			WHERE status = $1
			  AND scheduled_for <= NOW()
			ORDER BY scheduled_for ASC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`, domain.TaskStatusPending)

		claimed, err := scanTask(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select task: %w", err)
		}

		claimed.MarkProcessing()
		_, err = tx.ExecContext(ctx, `
			UPDATE tasks
			SET status = $1, started_at = $2, updated_at = $3, attempts = $4
			WHERE id = $5
		`, claimed.Status, pg.NullTime(claimed.StartedAt), claimed.UpdatedAt, claimed.Attempts, claimed.ID)
		if err != nil {
			return fmt.Errorf("update task status: %w", err)
		}

		task = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Ack marks a task as completed
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	now := time.Now()
	result, err := q.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, completed_at = $2, updated_at = $2, error = ''
		WHERE id = $3
	`, domain.TaskStatusCompleted, now, taskID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return expectRow(result, taskID)
}

// Nack marks a task as failed, scheduling a retry while attempts remain
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}

	if task.CanRetry() {
		task.Retry(reason)
	} else {
		task.MarkFailed(reason)
	}

	result, err := q.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, error = $2, updated_at = $3, scheduled_for = $4
		WHERE id = $5
	`, task.Status, task.Error, task.UpdatedAt, task.ScheduledFor, taskID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return expectRow(result, taskID)
}

// GetTask retrieves a task by ID
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// Stats returns queue statistics
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := &driven.QueueStats{}
	for rows.Next() {
		var status domain.TaskStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		switch status {
		case domain.TaskStatusPending:
			stats.PendingCount = count
		case domain.TaskStatusProcessing:
			stats.ProcessingCount = count
		case domain.TaskStatusCompleted:
			stats.CompletedCount = count
		case domain.TaskStatusFailed:
			stats.FailedCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return stats, nil
}

// Ping checks if the database is healthy
func (q *Queue) Ping(ctx context.Context) error {
	return q.db.Ping(ctx)
}

// Close is a no-op; the database pool is shared
func (q *Queue) Close() error {
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task                   domain.Task
		payload                []byte
		startedAt, completedAt sql.NullTime
	)
	err := row.Scan(
		&task.ID,
		&task.Type,
		&payload,
		&task.Status,
		&task.Attempts,
		&task.MaxAttempts,
		&task.Error,
		&task.CreatedAt,
		&task.UpdatedAt,
		&startedAt,
		&completedAt,
		&task.ScheduledFor,
	)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &task.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	task.StartedAt = pg.TimePtr(startedAt)
	task.CompletedAt = pg.TimePtr(completedAt)
	return &task, nil
}

func expectRow(result sql.Result, taskID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	return nil
}
