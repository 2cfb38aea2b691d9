package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
)

const (
	// Stream names
	taskStream     = "broker:tasks"
	taskGroup      = "broker:workers"
	scheduledTasks = "broker:scheduled"

	// Key prefixes
	taskKeyPrefix = "broker:task:"
	msgKeySuffix  = ":msg"

	// Default consumer name prefix
	consumerPrefix = "worker-"

	// Claim timeout - how long before a task is considered abandoned
	claimTimeout = 5 * time.Minute

	// Task records outlive their processing by this much
	taskTTL = 24 * time.Hour
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue using Redis Streams.
// Delayed tasks wait in a sorted set scored by their due time in
// milliseconds and are promoted to the stream when a worker dequeues.
type Queue struct {
	client       *redis.Client
	consumerName string
}

// NewQueue creates a new Redis-backed task queue.
// The consumerName should be unique per worker instance (e.g., hostname + PID).
func NewQueue(client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("%s%d", consumerPrefix, time.Now().UnixNano())
	}

	q := &Queue{
		client:       client,
		consumerName: consumerName,
	}

	ctx := context.Background()
	err := q.client.XGroupCreateMkStream(ctx, taskStream, taskGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return q, nil
}

// Enqueue adds a task to the queue for processing.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return fmt.Errorf("enqueue: %w", domain.ErrInvalidInput)
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, taskKeyPrefix+task.ID, taskData, taskTTL)

	if task.ScheduledFor.After(time.Now()) {
		pipe.ZAdd(ctx, scheduledTasks, redis.Z{
			Score:  float64(task.ScheduledFor.UnixMilli()),
			Member: task.ID,
		})
	} else {
		pipe.XAdd(ctx, streamEntry(task))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// DequeueWithTimeout retrieves the next available task, waiting up to timeout seconds.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	// best effort; a failed promotion is retried on the next dequeue
	_ = q.promoteScheduledTasks(ctx)

	task, err := q.claimAbandonedTask(ctx)
	if err == nil && task != nil {
		return task, nil
	}

	blockDuration := time.Duration(timeout) * time.Second
	if timeout <= 0 {
		blockDuration = 0 // Block forever
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    taskGroup,
		Consumer: q.consumerName,
		Streams:  []string{taskStream, ">"},
		Count:    1,
		Block:    blockDuration,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return q.take(ctx, streams[0].Messages[0])
}

// take loads the task behind a stream message and marks it processing.
// Messages whose task record is gone are dropped.
func (q *Queue) take(ctx context.Context, msg redis.XMessage) (*domain.Task, error) {
	taskID, ok := msg.Values["task_id"].(string)
	if !ok {
		q.drop(ctx, msg.ID)
		return nil, nil
	}

	task, err := q.GetTask(ctx, taskID)
	if errors.Is(err, domain.ErrNotFound) {
		q.drop(ctx, msg.ID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task data: %w", err)
	}

	task.MarkProcessing()
	taskData, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, taskKeyPrefix+task.ID, taskData, taskTTL)
	pipe.Set(ctx, taskKeyPrefix+task.ID+msgKeySuffix, msg.ID, taskTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to mark task processing: %w", err)
	}

	return task, nil
}

func (q *Queue) drop(ctx context.Context, msgID string) {
	q.client.XAck(ctx, taskStream, taskGroup, msgID)
	q.client.XDel(ctx, taskStream, msgID)
}

// Ack acknowledges successful completion of a task.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	task.MarkCompleted()
	return q.finish(ctx, task)
}

// Nack indicates task processing failed and should be retried.
// Retries go through the scheduled set with the task's backoff.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	if task.CanRetry() {
		task.Retry(reason)
	} else {
		task.MarkFailed(reason)
	}
	return q.finish(ctx, task)
}

// finish stores the task's new state and releases its stream message.
func (q *Queue) finish(ctx context.Context, task *domain.Task) error {
	msgKey := taskKeyPrefix + task.ID + msgKeySuffix
	msgID, err := q.client.Get(ctx, msgKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get message ID: %w", err)
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	pipe := q.client.Pipeline()
	if msgID != "" {
		pipe.XAck(ctx, taskStream, taskGroup, msgID)
		pipe.XDel(ctx, taskStream, msgID)
	}
	pipe.Set(ctx, taskKeyPrefix+task.ID, taskData, taskTTL)
	if task.Status == domain.TaskStatusPending {
		pipe.ZAdd(ctx, scheduledTasks, redis.Z{
			Score:  float64(task.ScheduledFor.UnixMilli()),
			Member: task.ID,
		})
	}
	pipe.Del(ctx, msgKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := q.client.Get(ctx, taskKeyPrefix+taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// Stats returns queue statistics.
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}

	length, err := q.client.XLen(ctx, taskStream).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get stream length: %w", err)
	}

	scheduledCount, err := q.client.ZCard(ctx, scheduledTasks).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get scheduled count: %w", err)
	}

	groups, err := q.client.XInfoGroups(ctx, taskStream).Result()
	if err == nil {
		for _, group := range groups {
			if group.Name == taskGroup {
				stats.ProcessingCount = group.Pending
				break
			}
		}
	}
	// stream entries stay until acked, so in-flight ones are not pending
	stats.PendingCount = length - stats.ProcessingCount + scheduledCount

	// Completed and failed counts need a scan over task records
	var cursor uint64
	for {
		keys, next, err := q.client.Scan(ctx, cursor, taskKeyPrefix+"*", 100).Result()
		if err != nil {
			break
		}
		for _, key := range keys {
			if strings.HasSuffix(key, msgKeySuffix) {
				continue
			}
			data, err := q.client.Get(ctx, key).Bytes()
			if err != nil {
				continue
			}
			var task domain.Task
			if json.Unmarshal(data, &task) != nil {
				continue
			}
			switch task.Status {
			case domain.TaskStatusCompleted:
				stats.CompletedCount++
			case domain.TaskStatusFailed:
				stats.FailedCount++
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return stats, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close cleans up resources.
func (q *Queue) Close() error {
	// Redis client is shared, don't close it here
	return nil
}

// promoteScheduledTasks moves due scheduled tasks to the main stream.
func (q *Queue) promoteScheduledTasks(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, scheduledTasks, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return err
	}

	for _, taskID := range due {
		// ZRem decides which dequeuer promotes the task
		removed, err := q.client.ZRem(ctx, scheduledTasks, taskID).Result()
		if err != nil || removed == 0 {
			continue
		}
		task, err := q.GetTask(ctx, taskID)
		if err != nil {
			continue
		}
		if err := q.client.XAdd(ctx, streamEntry(task)).Err(); err != nil {
			return err
		}
	}
	return nil
}

// claimAbandonedTask tries to claim a task that was abandoned by another worker.
func (q *Queue) claimAbandonedTask(ctx context.Context) (*domain.Task, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: taskStream,
		Group:  taskGroup,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   claimTimeout,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   taskStream,
			Group:    taskGroup,
			Consumer: q.consumerName,
			MinIdle:  claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}

		task, err := q.take(ctx, claimed[0])
		if err != nil || task == nil {
			continue
		}
		return task, nil
	}

	return nil, nil
}

func streamEntry(task *domain.Task) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: taskStream,
		Values: map[string]interface{}{
			"task_id": task.ID,
			"type":    string(task.Type),
		},
	}
}

func isGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
