package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clicksprout/internal/logger"
	"clicksprout/internal/store"
	"clicksprout/models"
)

// Notifier pushes an alert to an out-of-band channel
type Notifier interface {
	NotifyAlert(ctx context.Context, alert models.SystemAlert) error
}

var ErrInvalidAlert = errors.New("invalid alert")

const notifyTimeout = 30 * time.Second

// AlertService raises and manages system alerts. Alerts at or above
// notifySeverity are also sent to the notifier.
type AlertService struct {
	repo           *store.AlertRepository
	notifier       Notifier
	notifySeverity models.AlertSeverity
}

func NewAlertService(repo *store.AlertRepository, notifier Notifier) *AlertService {
	return &AlertService{
		repo:           repo,
		notifier:       notifier,
		notifySeverity: models.SeverityHigh,
	}
}

// Raise stores a new alert and notifies in the background when severe enough
func (s *AlertService) Raise(ctx context.Context, alert *models.SystemAlert) error {
	if alert.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidAlert)
	}
	if alert.Type == "" {
		alert.Type = models.AlertTypeInfo
	}
	if alert.Severity == "" {
		alert.Severity = models.SeverityLow
	}
	alert.Resolved = false
	alert.Acknowledged = false

	if err := s.repo.Create(ctx, alert); err != nil {
		return fmt.Errorf("failed to store alert: %w", err)
	}

	logger.Warn("System alert raised",
		"alert_id", alert.ID,
		"type", alert.Type,
		"severity", alert.Severity,
		"platform", alert.Platform,
		"post_id", alert.PostID,
		"title", alert.Title)

	if s.notifier != nil && alert.Severity.Rank() >= s.notifySeverity.Rank() {
		snapshot := *alert
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := s.notifier.NotifyAlert(nctx, snapshot); err != nil {
				logger.Error("Failed to send alert notification", "alert_id", snapshot.ID, "error", err)
			}
		}()
	}
	return nil
}

func (s *AlertService) List(ctx context.Context, filter models.AlertFilter) ([]models.SystemAlert, error) {
	return s.repo.List(ctx, filter)
}

// Resolve marks an alert resolved. Resolving twice keeps the first resolver.
func (s *AlertService) Resolve(ctx context.Context, id, who string) (*models.SystemAlert, error) {
	alert, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Resolved {
		return alert, nil
	}
	now := store.Now()
	alert.Resolved = true
	alert.ResolvedBy = actor(who)
	alert.ResolvedAt = &now
	if err := s.repo.Save(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// Acknowledge marks an alert as seen without resolving it
func (s *AlertService) Acknowledge(ctx context.Context, id, who string) (*models.SystemAlert, error) {
	alert, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Acknowledged {
		return alert, nil
	}
	now := store.Now()
	alert.Acknowledged = true
	alert.AcknowledgedBy = actor(who)
	alert.AcknowledgedAt = &now
	if err := s.repo.Save(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// CountOpen returns the number of unresolved alerts
func (s *AlertService) CountOpen(ctx context.Context) (int, error) {
	open := false
	alerts, err := s.repo.List(ctx, models.AlertFilter{Resolved: &open})
	if err != nil {
		return 0, err
	}
	return len(alerts), nil
}

// RecentErrors counts error alerts per platform raised after since
func (s *AlertService) RecentErrors(ctx context.Context, since time.Time) (map[models.Platform]int, error) {
	alerts, err := s.repo.List(ctx, models.AlertFilter{Type: models.AlertTypeError})
	if err != nil {
		return nil, err
	}
	counts := make(map[models.Platform]int)
	for _, a := range alerts {
		if a.Platform == "" || a.CreatedAt.Before(since) {
			continue
		}
		counts[a.Platform]++
	}
	return counts, nil
}

func actor(who string) string {
	if who == "" {
		return "system"
	}
	return who
}
