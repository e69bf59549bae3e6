package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"clicksprout/internal/config"
	"clicksprout/internal/logger"
	"clicksprout/internal/platform"
	"clicksprout/internal/store"
	"clicksprout/internal/telemetry"
	"clicksprout/models"

	"golang.org/x/sync/semaphore"
)

var (
	ErrMaintenanceMode = errors.New("posting engine is in maintenance mode")
	ErrInvalidPost     = errors.New("invalid post")
	ErrInvalidConfig   = errors.New("invalid engine config")
	ErrPostInFlight    = errors.New("post is already being published")
	ErrNotRetryable    = errors.New("post cannot be retried")
	ErrAlreadyRunning  = errors.New("posting engine already running")
)

// PublishError reports a platform failure that has already been recorded on
// the post. Retrying tells whether another attempt is queued.
type PublishError struct {
	PostID   string
	Platform models.Platform
	Retrying bool
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish post %s to %s: %v", e.PostID, e.Platform, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// AlertManager is the alert store the engine raises into and reads from
type AlertManager interface {
	Raise(ctx context.Context, alert *models.SystemAlert) error
	List(ctx context.Context, filter models.AlertFilter) ([]models.SystemAlert, error)
	Resolve(ctx context.Context, id, who string) (*models.SystemAlert, error)
	Acknowledge(ctx context.Context, id, who string) (*models.SystemAlert, error)
	CountOpen(ctx context.Context) (int, error)
	RecentErrors(ctx context.Context, since time.Time) (map[models.Platform]int, error)
}

// Config is the runtime-tunable part of the engine
type Config struct {
	DefaultMaxRetries int
	BackoffKind       BackoffKind
	BackoffBase       time.Duration
	BackoffMax        time.Duration
	Concurrency       int
	ScanInterval      time.Duration
	HealthWindow      time.Duration
	DegradedErrors    int
	CriticalErrors    int
}

// ConfigFromEnv takes the engine settings out of the process config
func ConfigFromEnv(cfg *config.Config) Config {
	return Config{
		DefaultMaxRetries: cfg.DefaultMaxRetries,
		BackoffKind:       BackoffKind(cfg.RetryBackoff),
		BackoffBase:       cfg.RetryBaseDelay,
		BackoffMax:        cfg.RetryMaxDelay,
		Concurrency:       cfg.EngineConcurrency,
		ScanInterval:      cfg.EngineScanInterval,
		HealthWindow:      cfg.HealthWindow,
		DegradedErrors:    cfg.DegradedErrorCount,
		CriticalErrors:    cfg.CriticalErrorCount,
	}
}

// DefaultConfig mirrors the environment defaults
func DefaultConfig() Config {
	return Config{
		DefaultMaxRetries: models.DefaultMaxRetries,
		BackoffKind:       BackoffExponential,
		BackoffBase:       time.Minute,
		BackoffMax:        30 * time.Minute,
		Concurrency:       4,
		ScanInterval:      15 * time.Second,
		HealthWindow:      time.Hour,
		DegradedErrors:    3,
		CriticalErrors:    5,
	}
}

func (c Config) Validate() error {
	switch {
	case c.DefaultMaxRetries < 0:
		return fmt.Errorf("%w: defaultMaxRetries must not be negative", ErrInvalidConfig)
	case c.BackoffKind != BackoffFixed && c.BackoffKind != BackoffExponential:
		return fmt.Errorf("%w: backoff must be fixed or exponential, got %q", ErrInvalidConfig, c.BackoffKind)
	case c.BackoffBase <= 0:
		return fmt.Errorf("%w: backoff base must be positive", ErrInvalidConfig)
	case c.BackoffMax < c.BackoffBase:
		return fmt.Errorf("%w: backoff max must be at least the base delay", ErrInvalidConfig)
	case c.Concurrency <= 0:
		return fmt.Errorf("%w: concurrency must be positive", ErrInvalidConfig)
	case c.ScanInterval <= 0:
		return fmt.Errorf("%w: scan interval must be positive", ErrInvalidConfig)
	case c.HealthWindow <= 0:
		return fmt.Errorf("%w: health window must be positive", ErrInvalidConfig)
	case c.DegradedErrors <= 0 || c.CriticalErrors < c.DegradedErrors:
		return fmt.Errorf("%w: need 0 < degraded threshold <= critical threshold", ErrInvalidConfig)
	}
	return nil
}

func (c Config) backoff() Backoff {
	return Backoff{Kind: c.BackoffKind, Base: c.BackoffBase, Max: c.BackoffMax}
}

type configJSON struct {
	DefaultMaxRetries int    `json:"defaultMaxRetries"`
	BackoffKind       string `json:"backoffKind"`
	BackoffBase       string `json:"backoffBase"`
	BackoffMax        string `json:"backoffMax"`
	Concurrency       int    `json:"concurrency"`
	ScanInterval      string `json:"scanInterval"`
	HealthWindow      string `json:"healthWindow"`
	DegradedErrors    int    `json:"degradedErrors"`
	CriticalErrors    int    `json:"criticalErrors"`
}

func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(configJSON{
		DefaultMaxRetries: c.DefaultMaxRetries,
		BackoffKind:       string(c.BackoffKind),
		BackoffBase:       c.BackoffBase.String(),
		BackoffMax:        c.BackoffMax.String(),
		Concurrency:       c.Concurrency,
		ScanInterval:      c.ScanInterval.String(),
		HealthWindow:      c.HealthWindow.String(),
		DegradedErrors:    c.DegradedErrors,
		CriticalErrors:    c.CriticalErrors,
	})
}

// ConfigPatch changes only the fields that are set. Durations use
// time.ParseDuration syntax.
type ConfigPatch struct {
	DefaultMaxRetries *int    `json:"defaultMaxRetries"`
	BackoffKind       *string `json:"backoffKind"`
	BackoffBase       *string `json:"backoffBase"`
	BackoffMax        *string `json:"backoffMax"`
	Concurrency       *int    `json:"concurrency"`
	ScanInterval      *string `json:"scanInterval"`
	HealthWindow      *string `json:"healthWindow"`
	DegradedErrors    *int    `json:"degradedErrors"`
	CriticalErrors    *int    `json:"criticalErrors"`
}

// Apply returns c with the patch applied and validated
func (c Config) Apply(p ConfigPatch) (Config, error) {
	if p.DefaultMaxRetries != nil {
		c.DefaultMaxRetries = *p.DefaultMaxRetries
	}
	if p.BackoffKind != nil {
		kind, err := ParseBackoffKind(*p.BackoffKind)
		if err != nil {
			return c, err
		}
		c.BackoffKind = kind
	}
	durations := []struct {
		name string
		in   *string
		out  *time.Duration
	}{
		{"backoffBase", p.BackoffBase, &c.BackoffBase},
		{"backoffMax", p.BackoffMax, &c.BackoffMax},
		{"scanInterval", p.ScanInterval, &c.ScanInterval},
		{"healthWindow", p.HealthWindow, &c.HealthWindow},
	}
	for _, d := range durations {
		if d.in == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.in)
		if err != nil {
			return c, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, d.name, err)
		}
		*d.out = parsed
	}
	if p.Concurrency != nil {
		c.Concurrency = *p.Concurrency
	}
	if p.DegradedErrors != nil {
		c.DegradedErrors = *p.DegradedErrors
	}
	if p.CriticalErrors != nil {
		c.CriticalErrors = *p.CriticalErrors
	}
	return c, c.Validate()
}

// Deps are the collaborators an Engine needs. Dispatcher defaults to a
// LocalDispatcher scanning at the configured interval.
type Deps struct {
	Repos      *store.Repositories
	Publishers *platform.Registry
	Alerts     AlertManager
	Dispatcher Dispatcher
	Metrics    *telemetry.Metrics

	// Maintenance is shared with other processes running this engine. When
	// nil the switch is local to this process.
	Maintenance MaintenanceFlag
}

// MaintenanceFlag holds the maintenance switch outside the process so the
// API and asynq workers agree on it
type MaintenanceFlag interface {
	SetMaintenance(ctx context.Context, enabled bool) error
	Maintenance(ctx context.Context) (bool, error)
}

// Engine schedules posts, publishes them through the platform registry and
// drives every post through its lifecycle
type Engine struct {
	posts      *store.PostRepository
	campaigns  *store.CampaignRepository
	publishers *platform.Registry
	alerts     AlertManager
	dispatcher Dispatcher
	metrics    *telemetry.Metrics
	shared     MaintenanceFlag

	mu  sync.RWMutex
	cfg Config

	sem         atomic.Pointer[semaphore.Weighted]
	running     atomic.Bool
	maintenance atomic.Bool
	inflight    sync.Map
	wg          sync.WaitGroup
	startedAt   atomic.Pointer[time.Time]
}

func New(deps Deps, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Repos == nil || deps.Publishers == nil || deps.Alerts == nil {
		return nil, errors.New("engine requires repositories, publishers and alerts")
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = NewLocalDispatcher(cfg.ScanInterval)
	}

	e := &Engine{
		posts:      deps.Repos.Posts,
		campaigns:  deps.Repos.Campaigns,
		publishers: deps.Publishers,
		alerts:     deps.Alerts,
		dispatcher: dispatcher,
		metrics:    deps.Metrics,
		shared:     deps.Maintenance,
		cfg:        cfg,
	}
	e.sem.Store(semaphore.NewWeighted(int64(cfg.Concurrency)))
	return e, nil
}

// Start requeues every post still waiting to run and starts dispatching
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	requeued, err := e.requeue(ctx)
	if err != nil {
		e.running.Store(false)
		return fmt.Errorf("failed to reload queued posts: %w", err)
	}
	if err := e.dispatcher.Start(e.fire); err != nil {
		e.running.Store(false)
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	now := store.Now()
	e.startedAt.Store(&now)

	logger.Info("Posting engine started", "requeued", requeued, "maintenance", e.inMaintenance(ctx))
	return nil
}

// Stop halts dispatching and waits for in-flight publishes to finish
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	e.dispatcher.Stop()
	e.wg.Wait()
	logger.Info("Posting engine stopped")
}

func (e *Engine) IsRunning() bool { return e.running.Load() }

func (e *Engine) InMaintenance() bool { return e.inMaintenance(context.Background()) }

// inMaintenance reads the shared switch when there is one, falling back to
// the last value seen if it cannot be read
func (e *Engine) inMaintenance(ctx context.Context) bool {
	if e.shared == nil {
		return e.maintenance.Load()
	}
	on, err := e.shared.Maintenance(ctx)
	if err != nil {
		logger.Warn("Failed to read shared maintenance flag", "error", err)
		return e.maintenance.Load()
	}
	e.maintenance.Store(on)
	return on
}

// EnableMaintenanceMode refuses new posts and executions. Queued posts stay queued.
func (e *Engine) EnableMaintenanceMode(ctx context.Context, who string) error {
	if e.inMaintenance(ctx) {
		return nil
	}
	if e.shared != nil {
		if err := e.shared.SetMaintenance(ctx, true); err != nil {
			return fmt.Errorf("failed to enable maintenance mode: %w", err)
		}
	}
	if !e.maintenance.CompareAndSwap(false, true) {
		return nil
	}
	logger.Warn("Maintenance mode enabled", "by", who)
	e.raise(ctx, &models.SystemAlert{
		Type:     models.AlertTypeWarning,
		Severity: models.SeverityMedium,
		Title:    "Maintenance mode enabled",
		Message:  fmt.Sprintf("Posting paused by %s", actorOrSystem(who)),
	})
	return nil
}

// DisableMaintenanceMode resumes posting. Posts held back while in
// maintenance are requeued so they run on the next scan.
func (e *Engine) DisableMaintenanceMode(ctx context.Context, who string) error {
	if !e.inMaintenance(ctx) {
		return nil
	}
	if e.shared != nil {
		if err := e.shared.SetMaintenance(ctx, false); err != nil {
			return fmt.Errorf("failed to disable maintenance mode: %w", err)
		}
	}
	if !e.maintenance.CompareAndSwap(true, false) {
		return nil
	}
	logger.Info("Maintenance mode disabled", "by", who)
	e.raise(ctx, &models.SystemAlert{
		Type:     models.AlertTypeInfo,
		Severity: models.SeverityLow,
		Title:    "Maintenance mode disabled",
		Message:  fmt.Sprintf("Posting resumed by %s", actorOrSystem(who)),
	})
	if !e.running.Load() {
		return nil
	}
	_, err := e.requeue(ctx)
	return err
}

func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// UpdateConfig applies a patch. Concurrency and scan interval changes take
// effect for the next publish and scan.
func (e *Engine) UpdateConfig(patch ConfigPatch) (Config, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := e.cfg.Apply(patch)
	if err != nil {
		return e.cfg, err
	}
	if next.Concurrency != e.cfg.Concurrency {
		e.sem.Store(semaphore.NewWeighted(int64(next.Concurrency)))
	}
	if next.ScanInterval != e.cfg.ScanInterval {
		if setter, ok := e.dispatcher.(interface{ SetInterval(time.Duration) error }); ok {
			if err := setter.SetInterval(next.ScanInterval); err != nil {
				return e.cfg, fmt.Errorf("failed to change scan interval: %w", err)
			}
		}
	}
	e.cfg = next
	logger.Info("Posting engine config updated",
		"max_retries", next.DefaultMaxRetries,
		"backoff", next.BackoffKind,
		"concurrency", next.Concurrency,
		"scan_interval", next.ScanInterval.String())
	return next, nil
}

// requeue hands every pending, scheduled and retrying post to the dispatcher
func (e *Engine) requeue(ctx context.Context) (int, error) {
	count := 0
	for _, status := range []models.PostStatus{models.PostStatusPending, models.PostStatusScheduled, models.PostStatusRetrying} {
		posts, err := e.posts.List(ctx, store.PostFilter{Status: status})
		if err != nil {
			return count, err
		}
		for i := range posts {
			p := &posts[i]
			if err := e.dispatcher.Schedule(ctx, p.ID, p.RetryCount, p.DueAt()); err != nil {
				logger.Error("Failed to requeue post", "post_id", p.ID, "error", err)
				continue
			}
			count++
		}
	}
	return count, nil
}

// fire runs a due post in the background. In maintenance the post goes back
// on the queue for the next scan.
func (e *Engine) fire(ctx context.Context, postID string) {
	if e.inMaintenance(ctx) {
		if err := e.dispatcher.Schedule(ctx, postID, 0, store.Now()); err != nil {
			logger.Error("Failed to hold post during maintenance", "post_id", postID, "error", err)
		}
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		post, err := e.ExecutePost(ctx, postID)
		var pubErr *PublishError
		switch {
		case err == nil:
			logger.Debug("Queued post executed", "post_id", postID, "status", post.Status)
		case errors.As(err, &pubErr):
			logger.Warn("Queued post failed", "post_id", postID, "retrying", pubErr.Retrying, "error", pubErr.Err)
		case errors.Is(err, ErrMaintenanceMode), errors.Is(err, ErrPostInFlight):
			if err := e.dispatcher.Schedule(ctx, postID, 0, store.Now()); err != nil {
				logger.Error("Failed to hold post for the next scan", "post_id", postID, "error", err)
			}
		default:
			logger.Error("Queued post execution error", "post_id", postID, "error", err)
		}
	}()
}

func (e *Engine) raise(ctx context.Context, alert *models.SystemAlert) {
	if err := e.alerts.Raise(context.WithoutCancel(ctx), alert); err != nil {
		logger.Error("Failed to raise alert", "title", alert.Title, "error", err)
	}
}

func actorOrSystem(who string) string {
	if who == "" {
		return "system"
	}
	return who
}
