package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"clicksprout/internal/engine"
	"clicksprout/internal/logger"
	"clicksprout/internal/store"
	"clicksprout/models"
)

const (
	TaskExecutePost = "post:execute"

	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

type ExecutePostPayload struct {
	PostID  string `json:"post_id"`
	Attempt int    `json:"attempt"`
}

// ExecuteTaskID is unique per post, attempt and due time so a requeue of the
// same attempt collapses onto the existing task
func ExecuteTaskID(postID string, attempt int, due time.Time) string {
	return fmt.Sprintf("post:%s:%d:%d", postID, attempt, due.Unix())
}

// Task creators
func NewExecutePostTask(postID string, attempt int) (*asynq.Task, error) {
	payload, err := json.Marshal(ExecutePostPayload{
		PostID:  postID,
		Attempt: attempt,
	})
	if err != nil {
		return nil, err
	}

	// platform retries are owned by the engine; asynq retries only cover
	// maintenance windows and store outages
	return asynq.NewTask(
		TaskExecutePost,
		payload,
		asynq.MaxRetry(25),
		asynq.Timeout(2*time.Minute),
		asynq.Queue(QueueCritical),
	), nil
}

// PostExecutor runs one post through the posting engine
type PostExecutor interface {
	ExecutePost(ctx context.Context, id string) (*models.PostRecord, error)
}

// Task handlers
type TaskProcessor struct {
	executor PostExecutor
}

func NewTaskProcessor(executor PostExecutor) *TaskProcessor {
	return &TaskProcessor{executor: executor}
}

func (p *TaskProcessor) ExecutePost(ctx context.Context, t *asynq.Task) error {
	var payload ExecutePostPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}
	if payload.PostID == "" {
		return fmt.Errorf("missing post id: %w", asynq.SkipRetry)
	}

	post, err := p.executor.ExecutePost(ctx, payload.PostID)
	var pubErr *engine.PublishError
	switch {
	case err == nil:
		logger.Info("Post task done", "post_id", payload.PostID, "attempt", payload.Attempt, "status", post.Status)
		return nil
	case errors.As(err, &pubErr):
		// recorded on the post, and the next attempt is already enqueued
		logger.Warn("Post task publish failed", "post_id", payload.PostID, "retrying", pubErr.Retrying, "error", pubErr.Err)
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("post %s: %v: %w", payload.PostID, err, asynq.SkipRetry)
	case errors.Is(err, engine.ErrPostInFlight):
		return nil
	default:
		return err
	}
}

// AsynqDispatcher queues posts as delayed asynq tasks. The worker process
// executes them, so Start and Stop have nothing to do locally and the
// dispatcher survives an engine restart. Close releases the Redis connections.
type AsynqDispatcher struct {
	client    *asynq.Client
	inspector *asynq.Inspector

	tasks *taskIndex
}

func NewAsynqDispatcher(opt asynq.RedisConnOpt) *AsynqDispatcher {
	return &AsynqDispatcher{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		tasks:     newTaskIndex(),
	}
}

func (d *AsynqDispatcher) Schedule(ctx context.Context, postID string, attempt int, at time.Time) error {
	task, err := NewExecutePostTask(postID, attempt)
	if err != nil {
		return err
	}
	taskID := ExecuteTaskID(postID, attempt, at)
	_, err = d.client.EnqueueContext(ctx, task, asynq.ProcessAt(at), asynq.TaskID(taskID))
	switch {
	case err == nil:
	case errors.Is(err, asynq.ErrTaskIDConflict):
		if err := d.revive(taskID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("failed to enqueue post %s: %w", postID, err)
	}
	d.tasks.set(postID, taskID)
	return nil
}

// revive reruns an archived task left over from an earlier outage
func (d *AsynqDispatcher) revive(taskID string) error {
	info, err := d.inspector.GetTaskInfo(QueueCritical, taskID)
	if err != nil {
		return fmt.Errorf("failed to inspect task %s: %w", taskID, err)
	}
	if info.State != asynq.TaskStateArchived {
		return nil
	}
	return d.inspector.RunTask(QueueCritical, taskID)
}

func (d *AsynqDispatcher) Cancel(_ context.Context, postID string) error {
	taskID, ok := d.tasks.take(postID)
	if !ok {
		return nil
	}
	err := d.inspector.DeleteTask(QueueCritical, taskID)
	if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return err
}

func (d *AsynqDispatcher) Start(engine.FireFunc) error { return nil }

func (d *AsynqDispatcher) Stop() {}

func (d *AsynqDispatcher) Close() {
	if err := d.client.Close(); err != nil {
		logger.Warn("Failed to close asynq client", "error", err)
	}
	if err := d.inspector.Close(); err != nil {
		logger.Warn("Failed to close asynq inspector", "error", err)
	}
}
