package models

import "time"

// PlatformHealthState is derived from recent error counts
type PlatformHealthState string

const (
	PlatformHealthy  PlatformHealthState = "healthy"
	PlatformDegraded PlatformHealthState = "degraded"
	PlatformCritical PlatformHealthState = "critical"
)

// PlatformHealth reports one platform's recent behaviour
type PlatformHealth struct {
	Platform     Platform            `json:"platform"`
	State        PlatformHealthState `json:"state"`
	RecentErrors int                 `json:"recentErrors"`
	Breaker      string              `json:"breaker,omitempty"`
}

// SystemHealth is the read-only snapshot returned by the posting engine
type SystemHealth struct {
	Status       string                      `json:"status"`
	Running      bool                        `json:"running"`
	Maintenance  bool                        `json:"maintenance"`
	StatusCounts map[PostStatus]int          `json:"statusCounts"`
	QueueDepth   int                         `json:"queueDepth"`
	Platforms    map[Platform]PlatformHealth `json:"platforms"`
	OpenAlerts   int                         `json:"openAlerts"`
	Timestamp    time.Time                   `json:"timestamp"`
}
