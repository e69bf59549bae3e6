package engine

import (
	"context"
	"fmt"
	"time"

	"clicksprout/internal/store"
	"clicksprout/models"
)

// Status is the lightweight engine snapshot behind action=status
type Status struct {
	Running     bool       `json:"running"`
	Maintenance bool       `json:"maintenance"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	InFlight    int        `json:"inFlight"`
	Config      Config     `json:"config"`
}

func (e *Engine) Status() Status {
	inflight := 0
	e.inflight.Range(func(_, _ any) bool {
		inflight++
		return true
	})
	return Status{
		Running:     e.running.Load(),
		Maintenance: e.InMaintenance(),
		StartedAt:   e.startedAt.Load(),
		InFlight:    inflight,
		Config:      e.Config(),
	}
}

// GetSystemHealth aggregates post counts, per-platform error health and
// breaker states. It never changes any state.
func (e *Engine) GetSystemHealth(ctx context.Context) (*models.SystemHealth, error) {
	cfg := e.Config()
	now := store.Now()

	posts, err := e.posts.List(ctx, store.PostFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}
	counts := make(map[models.PostStatus]int, len(models.AllPostStatuses))
	for _, s := range models.AllPostStatuses {
		counts[s] = 0
	}
	for _, p := range posts {
		counts[p.Status]++
	}

	recent, err := e.alerts.RecentErrors(ctx, now.Add(-cfg.HealthWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent errors: %w", err)
	}
	open, err := e.alerts.CountOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count open alerts: %w", err)
	}

	breakers := e.publishers.BreakerStates()
	platforms := make(map[models.Platform]models.PlatformHealth)
	worst := models.PlatformHealthy
	for _, p := range e.publishers.Platforms() {
		state := platformState(recent[p], cfg)
		platforms[p] = models.PlatformHealth{
			Platform:     p,
			State:        state,
			RecentErrors: recent[p],
			Breaker:      breakers[p],
		}
		if severityOf(state) > severityOf(worst) {
			worst = state
		}
	}

	maintenance := e.inMaintenance(ctx)
	status := string(worst)
	if maintenance {
		status = "maintenance"
	} else if !e.running.Load() {
		status = "stopped"
	}

	return &models.SystemHealth{
		Status:       status,
		Running:      e.running.Load(),
		Maintenance:  maintenance,
		StatusCounts: counts,
		QueueDepth:   counts[models.PostStatusScheduled] + counts[models.PostStatusRetrying],
		Platforms:    platforms,
		OpenAlerts:   open,
		Timestamp:    now,
	}, nil
}

func platformState(count int, cfg Config) models.PlatformHealthState {
	switch {
	case count >= cfg.CriticalErrors:
		return models.PlatformCritical
	case count >= cfg.DegradedErrors:
		return models.PlatformDegraded
	}
	return models.PlatformHealthy
}

func severityOf(s models.PlatformHealthState) int {
	switch s {
	case models.PlatformDegraded:
		return 1
	case models.PlatformCritical:
		return 2
	}
	return 0
}

func (e *Engine) GetAlerts(ctx context.Context, filter models.AlertFilter) ([]models.SystemAlert, error) {
	return e.alerts.List(ctx, filter)
}

func (e *Engine) ResolveAlert(ctx context.Context, id, who string) (*models.SystemAlert, error) {
	return e.alerts.Resolve(ctx, id, who)
}

func (e *Engine) AcknowledgeAlert(ctx context.Context, id, who string) (*models.SystemAlert, error) {
	return e.alerts.Acknowledge(ctx, id, who)
}
