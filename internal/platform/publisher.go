// Package platform publishes posts to social platforms and reads back their metrics.
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clicksprout/models"
)

var (
	// ErrAuth means the platform rejected the configured credentials
	ErrAuth = errors.New("platform authentication failed")
	// ErrMissingMedia means the platform needs an image the post does not have
	ErrMissingMedia = errors.New("platform requires media")
	// ErrMetricsUnsupported means the platform exposes no per-post metrics
	ErrMetricsUnsupported = errors.New("metrics not supported for platform")
	// ErrUnavailable means the circuit breaker is refusing calls
	ErrUnavailable = errors.New("platform temporarily unavailable")
)

// APIError is a non-2xx platform response other than an auth failure
type APIError struct {
	Platform   models.Platform
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: status %d: %s", e.Platform, e.StatusCode, e.Body)
}

// Publication identifies a published post on its platform
type Publication struct {
	PlatformPostID string `json:"platformPostId"`
	URL            string `json:"url"`
}

// Metrics are the engagement counters a platform reports for one post
type Metrics struct {
	Impressions int64 `json:"impressions"`
	Likes       int64 `json:"likes"`
	Comments    int64 `json:"comments"`
	Shares      int64 `json:"shares"`
	Clicks      int64 `json:"clicks"`
}

// Connection modes
const (
	ModeLive      = "live"
	ModeSimulated = "simulated"
)

// AuthStatus is the result of a credential check
type AuthStatus struct {
	Platform      models.Platform `json:"platform"`
	Mode          string          `json:"mode"`
	Authenticated bool            `json:"authenticated"`
	Message       string          `json:"message,omitempty"`
	Breaker       string          `json:"breaker"`
	CheckedAt     time.Time       `json:"checkedAt"`
}

// Publisher talks to one platform
type Publisher interface {
	Platform() models.Platform
	Publish(ctx context.Context, post *models.PostRecord) (Publication, error)
	CheckAuth(ctx context.Context) AuthStatus
	FetchMetrics(ctx context.Context, platformPostID string) (Metrics, error)
	BreakerState() string
}
