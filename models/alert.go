package models

import "time"

// AlertType classifies a SystemAlert
type AlertType string

const (
	AlertTypeError   AlertType = "error"
	AlertTypeWarning AlertType = "warning"
	AlertTypeInfo    AlertType = "info"
	AlertTypeSuccess AlertType = "success"
)

// AlertSeverity ranks a SystemAlert
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Rank orders severities from low (1) to critical (4)
func (s AlertSeverity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// SystemAlert is an operational event raised by the posting engine.
// Alerts are only mutated through resolve/acknowledge and never deleted.
type SystemAlert struct {
	ID             string        `bson:"_id" json:"id"`
	Type           AlertType     `bson:"type" json:"type"`
	Severity       AlertSeverity `bson:"severity" json:"severity"`
	Title          string        `bson:"title" json:"title"`
	Message        string        `bson:"message" json:"message"`
	Platform       Platform      `bson:"platform" json:"platform,omitempty"`
	PostID         string        `bson:"post_id" json:"postId,omitempty"`
	Resolved       bool          `bson:"resolved" json:"resolved"`
	ResolvedBy     string        `bson:"resolved_by" json:"resolvedBy,omitempty"`
	ResolvedAt     *time.Time    `bson:"resolved_at" json:"resolvedAt,omitempty"`
	Acknowledged   bool          `bson:"acknowledged" json:"acknowledged"`
	AcknowledgedBy string        `bson:"acknowledged_by" json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time    `bson:"acknowledged_at" json:"acknowledgedAt,omitempty"`
	CreatedAt      time.Time     `bson:"created_at" json:"createdAt"`
}

// AlertFilter narrows GetAlerts results. Zero values match everything.
type AlertFilter struct {
	Type     AlertType
	Severity AlertSeverity
	Platform Platform
	Resolved *bool
	Limit    int
}
