package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"clicksprout/internal/logger"
	"clicksprout/internal/platform"
	"clicksprout/internal/store"
	"clicksprout/models"

	"github.com/google/uuid"
)

// SchedulePost validates and stores a new post. A post with a future
// scheduledTime is queued, anything else is published immediately.
func (e *Engine) SchedulePost(ctx context.Context, req models.SchedulePostRequest) (*models.PostRecord, error) {
	p, err := models.ParsePlatform(req.Platform)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	if title == "" || content == "" {
		return nil, fmt.Errorf("%w: title and content are required", ErrInvalidPost)
	}
	if req.MaxRetries < 0 {
		return nil, fmt.Errorf("%w: maxRetries must not be negative", ErrInvalidPost)
	}
	if e.inMaintenance(ctx) {
		return nil, ErrMaintenanceMode
	}

	maxRetries := req.MaxRetries
	if maxRetries == 0 {
		maxRetries = e.Config().DefaultMaxRetries
	}
	post := &models.PostRecord{
		ID:         uuid.NewString(),
		CampaignID: req.CampaignID,
		ContentID:  req.ContentID,
		Title:      title,
		Content:    content,
		Images:     nonNil(req.Images),
		Hashtags:   nonNil(req.Hashtags),
		Link:       req.Link,
		Platform:   p,
		Status:     models.PostStatusPending,
		MaxRetries: maxRetries,
	}

	now := store.Now()
	future := req.ScheduledTime != nil && req.ScheduledTime.After(now)
	if req.ScheduledTime != nil {
		at := req.ScheduledTime.UTC().Truncate(time.Millisecond)
		post.ScheduledTime = &at
	}
	if future {
		if err := post.Transition(models.PostStatusScheduled, now); err != nil {
			return nil, err
		}
	}
	if err := e.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to store post: %w", err)
	}
	e.attachToCampaign(ctx, post)

	if future {
		e.enqueue(ctx, post, *post.ScheduledTime)
		logger.Info("Post scheduled", "post_id", post.ID, "platform", post.Platform, "scheduled_time", post.ScheduledTime)
		return post, nil
	}

	logger.Info("Post accepted for immediate publish", "post_id", post.ID, "platform", post.Platform)
	return e.ExecutePost(ctx, post.ID)
}

// ExecutePost publishes one post now. Posts that are settled or cancelled are
// returned unchanged. A failed publish is recorded on the post and returned
// as a *PublishError together with the updated record.
func (e *Engine) ExecutePost(ctx context.Context, id string) (*models.PostRecord, error) {
	if e.inMaintenance(ctx) {
		return nil, ErrMaintenanceMode
	}
	if _, busy := e.inflight.LoadOrStore(id, struct{}{}); busy {
		return nil, fmt.Errorf("%w: %s", ErrPostInFlight, id)
	}
	defer e.inflight.Delete(id)

	post, err := e.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch post.Status {
	case models.PostStatusPending, models.PostStatusScheduled, models.PostStatusRetrying:
	default:
		logger.Debug("Skipping post that is not runnable", "post_id", id, "status", post.Status)
		return post, nil
	}

	// bookkeeping outlives a caller that gives up mid-publish
	bg := context.WithoutCancel(ctx)

	pub, err := e.publishers.Get(post.Platform)
	if err != nil {
		return e.recordFailure(bg, post, err)
	}

	sem := e.sem.Load()
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	result, pubErr := pub.Publish(ctx, post)
	sem.Release(1)

	current, err := e.posts.Get(bg, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.PostStatusCancelled {
		logger.Warn("Post cancelled while publishing", "post_id", id, "published", pubErr == nil)
		return current, nil
	}
	if pubErr != nil {
		return e.recordFailure(bg, current, pubErr)
	}

	current.PlatformPostID = result.PlatformPostID
	current.URL = result.URL
	if err := current.Transition(models.PostStatusPosted, store.Now()); err != nil {
		return nil, err
	}
	if err := e.posts.Save(bg, current); err != nil {
		return nil, fmt.Errorf("failed to record published post: %w", err)
	}
	e.metrics.RecordPublish(string(current.Platform), true)

	logger.Info("Post published",
		"post_id", current.ID,
		"platform", current.Platform,
		"platform_post_id", current.PlatformPostID,
		"attempt", current.RetryCount+1)
	return current, nil
}

// recordFailure marks the post failed and, while retries remain, moves it
// to retrying with the next attempt queued
func (e *Engine) recordFailure(ctx context.Context, post *models.PostRecord, cause error) (*models.PostRecord, error) {
	now := store.Now()
	post.LastError = cause.Error()
	if err := post.Transition(models.PostStatusFailed, now); err != nil {
		return nil, err
	}

	retrying := post.RetriesLeft() && !permanentFailure(cause)
	if retrying {
		if err := post.Transition(models.PostStatusRetrying, now); err != nil {
			return nil, err
		}
		next := now.Add(e.Config().backoff().Delay(post.RetryCount))
		post.NextAttemptAt = &next
	}
	if err := e.posts.Save(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to record publish failure: %w", err)
	}
	e.metrics.RecordPublish(string(post.Platform), false)

	severity := models.SeverityMedium
	title := fmt.Sprintf("Publish to %s failed, retry %d of %d queued", post.Platform, post.RetryCount, post.MaxRetries)
	if !retrying {
		severity = models.SeverityHigh
		title = fmt.Sprintf("Publish to %s failed permanently", post.Platform)
	}
	if errors.Is(cause, platform.ErrAuth) {
		severity = models.SeverityHigh
	}
	e.raise(ctx, &models.SystemAlert{
		Type:     models.AlertTypeError,
		Severity: severity,
		Title:    title,
		Message:  post.LastError,
		Platform: post.Platform,
		PostID:   post.ID,
	})

	if retrying {
		e.enqueue(ctx, post, *post.NextAttemptAt)
	}
	logger.Warn("Post publish failed",
		"post_id", post.ID,
		"platform", post.Platform,
		"retry_count", post.RetryCount,
		"max_retries", post.MaxRetries,
		"retrying", retrying,
		"error", cause)

	return post, &PublishError{PostID: post.ID, Platform: post.Platform, Retrying: retrying, Err: cause}
}

// permanentFailure reports errors another attempt cannot fix
func permanentFailure(err error) bool {
	if errors.Is(err, platform.ErrMissingMedia) || errors.Is(err, models.ErrUnsupportedPlatform) {
		return true
	}
	var apiErr *platform.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// CancelPost cancels a post that has not settled. Cancelling a settled post
// is a no-op that returns it unchanged.
func (e *Engine) CancelPost(ctx context.Context, id string) (*models.PostRecord, error) {
	post, err := e.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.IsSettled() {
		return post, nil
	}
	if err := post.Transition(models.PostStatusCancelled, store.Now()); err != nil {
		return nil, err
	}
	if err := e.posts.Save(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to cancel post: %w", err)
	}
	if err := e.dispatcher.Cancel(ctx, id); err != nil {
		logger.Warn("Failed to dequeue cancelled post", "post_id", id, "error", err)
	}
	logger.Info("Post cancelled", "post_id", id, "platform", post.Platform)
	return post, nil
}

// RetryPost runs a retrying post now instead of waiting for its backoff. A
// failed post that still has retries left is moved back to retrying first.
func (e *Engine) RetryPost(ctx context.Context, id string) (*models.PostRecord, error) {
	if e.inMaintenance(ctx) {
		return nil, ErrMaintenanceMode
	}
	post, err := e.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch post.Status {
	case models.PostStatusRetrying:
	case models.PostStatusFailed:
		if !post.RetriesLeft() {
			return nil, fmt.Errorf("%w: %d of %d retries used", ErrNotRetryable, post.RetryCount, post.MaxRetries)
		}
		if err := post.Transition(models.PostStatusRetrying, store.Now()); err != nil {
			return nil, err
		}
		post.NextAttemptAt = nil
		if err := e.posts.Save(ctx, post); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: post is %s", ErrNotRetryable, post.Status)
	}
	if err := e.dispatcher.Cancel(ctx, id); err != nil {
		logger.Warn("Failed to dequeue post before manual retry", "post_id", id, "error", err)
	}
	logger.Info("Manual retry requested", "post_id", id, "retry_count", post.RetryCount)
	return e.ExecutePost(ctx, id)
}

// ReschedulePost moves a waiting post to a new future time. Pending posts
// become scheduled; retrying posts keep their status and retry count.
func (e *Engine) ReschedulePost(ctx context.Context, id string, at time.Time) (*models.PostRecord, error) {
	now := store.Now()
	at = at.UTC().Truncate(time.Millisecond)
	if !at.After(now) {
		return nil, fmt.Errorf("%w: new time must be in the future", ErrInvalidPost)
	}
	post, err := e.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch post.Status {
	case models.PostStatusPending, models.PostStatusScheduled:
		if err := post.Transition(models.PostStatusScheduled, now); err != nil {
			return nil, err
		}
		post.ScheduledTime = &at
	case models.PostStatusRetrying:
		if err := post.Transition(models.PostStatusRetrying, now); err != nil {
			return nil, err
		}
		post.NextAttemptAt = &at
	default:
		return nil, fmt.Errorf("%w: %s post cannot be rescheduled", models.ErrInvalidTransition, post.Status)
	}
	if err := e.posts.Save(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to reschedule post: %w", err)
	}
	if err := e.dispatcher.Cancel(ctx, id); err != nil {
		logger.Warn("Failed to dequeue post before rescheduling", "post_id", id, "error", err)
	}
	e.enqueue(ctx, post, at)
	logger.Info("Post rescheduled", "post_id", id, "due", at)
	return post, nil
}

// enqueue hands a stored post to the dispatcher. A post the dispatcher
// rejects keeps its waiting status and is picked up by the requeue on the
// next Start or when maintenance mode is lifted.
func (e *Engine) enqueue(ctx context.Context, post *models.PostRecord, at time.Time) {
	err := e.dispatcher.Schedule(ctx, post.ID, post.RetryCount, at)
	if err == nil {
		return
	}
	logger.Error("Failed to queue post", "post_id", post.ID, "status", post.Status, "due", at, "error", err)
	e.raise(ctx, &models.SystemAlert{
		Type:     models.AlertTypeWarning,
		Severity: models.SeverityHigh,
		Title:    "Post stored but not queued",
		Message:  err.Error(),
		Platform: post.Platform,
		PostID:   post.ID,
	})
}

func (e *Engine) GetPost(ctx context.Context, id string) (*models.PostRecord, error) {
	return e.posts.Get(ctx, id)
}

func (e *Engine) ListPosts(ctx context.Context, filter store.PostFilter) ([]models.PostRecord, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidPost, filter.Status)
	}
	if filter.Platform != "" && !filter.Platform.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedPlatform, filter.Platform)
	}
	return e.posts.List(ctx, filter)
}

func (e *Engine) attachToCampaign(ctx context.Context, post *models.PostRecord) {
	if post.CampaignID == "" {
		return
	}
	if err := e.campaigns.AttachPost(ctx, post.CampaignID, post.ID); err != nil {
		logger.Warn("Failed to attach post to campaign", "post_id", post.ID, "campaign_id", post.CampaignID, "error", err)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
