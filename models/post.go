package models

import (
	"errors"
	"fmt"
	"time"
)

// PostStatus is the lifecycle state of a PostRecord
type PostStatus string

const (
	PostStatusPending   PostStatus = "pending"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPosted    PostStatus = "posted"
	PostStatusFailed    PostStatus = "failed"
	PostStatusRetrying  PostStatus = "retrying"
	PostStatusCancelled PostStatus = "cancelled"
)

// AllPostStatuses lists every status, used for health aggregation
var AllPostStatuses = []PostStatus{
	PostStatusPending,
	PostStatusScheduled,
	PostStatusPosted,
	PostStatusFailed,
	PostStatusRetrying,
	PostStatusCancelled,
}

// DefaultMaxRetries applies when a post is created without its own bound
const DefaultMaxRetries = 3

// ErrInvalidTransition is returned when a status change is not an edge of the lifecycle
var ErrInvalidTransition = errors.New("invalid status transition")

// Valid reports whether s is a known status
func (s PostStatus) Valid() bool {
	for _, known := range AllPostStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s can never move regardless of retry budget.
// A failed post is settled only once its retries are exhausted, see PostRecord.IsSettled.
func (s PostStatus) IsTerminal() bool {
	return s == PostStatusPosted || s == PostStatusCancelled
}

// CanTransition reports whether moving from s to next is an edge of the lifecycle.
// failed -> retrying and failed -> cancelled are only allowed while retryCount < maxRetries.
func (s PostStatus) CanTransition(next PostStatus, retryCount, maxRetries int) bool {
	switch s {
	case PostStatusPending:
		return next == PostStatusScheduled || next == PostStatusPosted ||
			next == PostStatusFailed || next == PostStatusCancelled
	case PostStatusScheduled:
		return next == PostStatusScheduled || next == PostStatusPosted ||
			next == PostStatusFailed || next == PostStatusCancelled
	case PostStatusFailed:
		return (next == PostStatusRetrying || next == PostStatusCancelled) && retryCount < maxRetries
	case PostStatusRetrying:
		return next == PostStatusRetrying || next == PostStatusPosted ||
			next == PostStatusFailed || next == PostStatusCancelled
	default:
		return false
	}
}

// PostRecord is one unit of content destined for one platform
type PostRecord struct {
	ID             string     `bson:"_id" json:"id"`
	CampaignID     string     `bson:"campaign_id" json:"campaignId,omitempty"`
	ContentID      string     `bson:"content_id" json:"contentId,omitempty"`
	Title          string     `bson:"title" json:"title"`
	Content        string     `bson:"content" json:"content"`
	Images         []string   `bson:"images" json:"images"`
	Hashtags       []string   `bson:"hashtags" json:"hashtags"`
	Link           string     `bson:"link" json:"link,omitempty"`
	Platform       Platform   `bson:"platform" json:"platform"`
	ScheduledTime  *time.Time `bson:"scheduled_time" json:"scheduledTime,omitempty"`
	Status         PostStatus `bson:"status" json:"status"`
	RetryCount     int        `bson:"retry_count" json:"retryCount"`
	MaxRetries     int        `bson:"max_retries" json:"maxRetries"`
	PlatformPostID string     `bson:"platform_post_id" json:"platformPostId,omitempty"`
	URL            string     `bson:"url" json:"url,omitempty"`
	LastError      string     `bson:"last_error" json:"lastError,omitempty"`
	NextAttemptAt  *time.Time `bson:"next_attempt_at" json:"nextAttemptAt,omitempty"`
	PostedAt       *time.Time `bson:"posted_at" json:"postedAt,omitempty"`
	CreatedAt      time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `bson:"updated_at" json:"updatedAt"`
}

// Transition moves the post to next, refreshing UpdatedAt. It rejects any change
// that is not an edge of the lifecycle and keeps the posted/failed invariants.
func (p *PostRecord) Transition(next PostStatus, now time.Time) error {
	if !p.Status.CanTransition(next, p.RetryCount, p.MaxRetries) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, next)
	}
	switch next {
	case PostStatusPosted:
		if p.PlatformPostID == "" {
			return fmt.Errorf("%w: posted requires a platform post id", ErrInvalidTransition)
		}
		p.LastError = ""
		p.NextAttemptAt = nil
		p.PostedAt = &now
	case PostStatusFailed:
		if p.LastError == "" {
			return fmt.Errorf("%w: failed requires an error", ErrInvalidTransition)
		}
	case PostStatusRetrying:
		if p.Status == PostStatusFailed {
			p.RetryCount++
		}
	case PostStatusCancelled:
		p.NextAttemptAt = nil
	}
	p.Status = next
	p.UpdatedAt = now
	return nil
}

// RetriesLeft reports whether a failed post may still be retried
func (p *PostRecord) RetriesLeft() bool {
	return p.RetryCount < p.MaxRetries
}

// IsSettled reports whether no further transition can happen
func (p *PostRecord) IsSettled() bool {
	if p.Status == PostStatusFailed {
		return !p.RetriesLeft()
	}
	return p.Status.IsTerminal()
}

// DueAt is when the post should next be attempted
func (p *PostRecord) DueAt() time.Time {
	if p.Status == PostStatusRetrying && p.NextAttemptAt != nil {
		return *p.NextAttemptAt
	}
	if p.ScheduledTime != nil {
		return *p.ScheduledTime
	}
	return p.CreatedAt
}

// SchedulePostRequest is the body accepted by the posting routes
type SchedulePostRequest struct {
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Platform      string     `json:"platform"`
	Images        []string   `json:"images"`
	Hashtags      []string   `json:"hashtags"`
	Link          string     `json:"link"`
	CampaignID    string     `json:"campaignId"`
	ContentID     string     `json:"contentId"`
	ScheduledTime *time.Time `json:"scheduledTime"`
	MaxRetries    int        `json:"maxRetries"`
}
