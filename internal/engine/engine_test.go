package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"clicksprout/internal/crawler"
	"clicksprout/internal/generator"
	"clicksprout/internal/platform"
	"clicksprout/internal/store"
	"clicksprout/models"
	"clicksprout/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEngine struct {
	*Engine
	repos      *store.Repositories
	dispatcher *LocalDispatcher
	sims       map[models.Platform]*platform.SimulatedPublisher
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BackoffKind = BackoffFixed
	cfg.BackoffBase = 20 * time.Millisecond
	cfg.BackoffMax = 20 * time.Millisecond
	cfg.ScanInterval = 10 * time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) *testEngine {
	t.Helper()

	repos := store.NewRepositories(store.NewMemoryEngine())
	sims := make(map[models.Platform]*platform.SimulatedPublisher)
	var pubs []platform.Publisher
	for _, p := range models.AllPlatforms {
		sim := platform.NewSimulatedPublisher(p, platform.SimulatedOptions{})
		sims[p] = sim
		pubs = append(pubs, sim)
	}
	dispatcher := NewLocalDispatcher(cfg.ScanInterval)

	e, err := New(Deps{
		Repos:      repos,
		Publishers: platform.NewRegistryWith(pubs...),
		Alerts:     services.NewAlertService(repos.Alerts, nil),
		Dispatcher: dispatcher,
	}, cfg)
	require.NoError(t, err)
	t.Cleanup(e.Stop)

	return &testEngine{Engine: e, repos: repos, dispatcher: dispatcher, sims: sims}
}

func (te *testEngine) waitForStatus(t *testing.T, id string, want models.PostStatus) *models.PostRecord {
	t.Helper()
	var post *models.PostRecord
	require.Eventually(t, func() bool {
		p, err := te.GetPost(context.Background(), id)
		if err != nil {
			return false
		}
		post = p
		return p.Status == want
	}, 3*time.Second, 10*time.Millisecond, "post %s never reached %s", id, want)
	return post
}

func TestScrapeGenerateAndPostEndToEnd(t *testing.T) {
	ctx := context.Background()

	// a closed server stands in for an unreachable product page
	srv := httptest.NewServer(http.NotFoundHandler())
	pageURL := srv.URL + "/widget"
	srv.Close()

	scraper := crawler.NewScraper(crawler.Options{Timeout: time.Second}, nil)
	content, err := scraper.Scrape(ctx, pageURL)
	require.NoError(t, err)
	assert.True(t, content.Fallback)
	assert.Equal(t, models.PlaceholderTitle, content.Title)

	gen := generator.New(nil, nil)
	out := gen.Generate(ctx, generator.InputFromContent(content, generator.TypeComplete, models.PlatformPinterest))
	assert.Equal(t, generator.SourceTemplate, out.Source)
	assert.Contains(t, out.Title, "Product")

	te := newTestEngine(t, testConfig())
	post, err := te.SchedulePost(ctx, models.SchedulePostRequest{
		Title:    out.Title,
		Content:  out.GeneratedContent,
		Hashtags: out.Hashtags,
		Link:     content.URL,
		Platform: "pinterest",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPosted, post.Status)
	assert.NotEmpty(t, post.PlatformPostID)
	assert.NotEmpty(t, post.URL)
	require.NotNil(t, post.PostedAt)

	stored, err := te.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.PlatformPostID, stored.PlatformPostID)
	assert.Equal(t, models.PostStatusPosted, stored.Status)
}

func TestSchedulePost_Validation(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, testConfig())

	_, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "myspace"})
	assert.ErrorIs(t, err, models.ErrUnsupportedPlatform)

	_, err = te.SchedulePost(ctx, models.SchedulePostRequest{Title: "  ", Content: "c", Platform: "twitter"})
	assert.ErrorIs(t, err, ErrInvalidPost)

	_, err = te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "", Platform: "twitter"})
	assert.ErrorIs(t, err, ErrInvalidPost)

	_, err = te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "twitter", MaxRetries: -1})
	assert.ErrorIs(t, err, ErrInvalidPost)

	posts, err := te.ListPosts(ctx, store.PostFilter{})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestSchedulePost_DefaultsMaxRetries(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultMaxRetries = 5
	te := newTestEngine(t, cfg)

	post, err := te.SchedulePost(context.Background(), models.SchedulePostRequest{Title: "t", Content: "c", Platform: "facebook"})
	require.NoError(t, err)
	assert.Equal(t, 5, post.MaxRetries)

	post, err = te.SchedulePost(context.Background(), models.SchedulePostRequest{Title: "t", Content: "c", Platform: "facebook", MaxRetries: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, post.MaxRetries)
}

func TestSchedulePost_FutureIsQueuedThenPublished(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, testConfig())

	at := time.Now().Add(80 * time.Millisecond)
	post, err := te.SchedulePost(ctx, models.SchedulePostRequest{
		Title:         "Launch",
		Content:       "Our widget is here",
		Platform:      "linkedin",
		ScheduledTime: &at,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, post.Status)
	assert.Equal(t, 1, te.dispatcher.Len())

	require.NoError(t, te.Start(ctx))
	posted := te.waitForStatus(t, post.ID, models.PostStatusPosted)
	assert.False(t, posted.PostedAt.Before(*post.ScheduledTime))
	assert.Equal(t, 0, te.dispatcher.Len())
}

func TestSchedulePost_AttachesToCampaign(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, testConfig())

	campaign := &models.CampaignRecord{Name: "Spring"}
	require.NoError(t, te.repos.Campaigns.Create(ctx, campaign))

	post, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "reddit", CampaignID: campaign.ID})
	require.NoError(t, err)

	got, err := te.repos.Campaigns.Get(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{post.ID}, got.PostIDs)
}

func TestExecutePost_FailureRetriesThenPublishes(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, testConfig())
	require.NoError(t, te.Start(ctx))
	te.sims[models.PlatformTwitter].FailNext(1)

	post, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "twitter", MaxRetries: 3})
	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.True(t, pubErr.Retrying)
	assert.ErrorIs(t, err, platform.ErrSimulatedFailure)

	require.NotNil(t, post)
	assert.Equal(t, models.PostStatusRetrying, post.Status)
	assert.Equal(t, 1, post.RetryCount)
	assert.NotEmpty(t, post.LastError)
	require.NotNil(t, post.NextAttemptAt)

	posted := te.waitForStatus(t, post.ID, models.PostStatusPosted)
	assert.Equal(t, 1, posted.RetryCount)
	assert.Empty(t, posted.LastError)
	assert.Nil(t, posted.NextAttemptAt)

	alerts, err := te.GetAlerts(ctx, models.AlertFilter{Type: models.AlertTypeError})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityMedium, alerts[0].Severity)
	assert.Equal(t, post.ID, alerts[0].PostID)
	assert.Equal(t, models.PlatformTwitter, alerts[0].Platform)
}

func TestExecutePost_RetriesExhausted(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, testConfig())
	require.NoError(t, te.Start(ctx))
	te.sims[models.PlatformFacebook].FailNext(10)

	post, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "facebook", MaxRetries: 1})
	require.Error(t, err)
	require.NotNil(t, post)
	assert.Equal(t, models.PostStatusRetrying, post.Status)

	failed := te.waitForStatus(t, post.ID, models.PostStatusFailed)
	assert.Equal(t, 1, failed.RetryCount)
	assert.True(t, failed.IsSettled())
	assert.Contains(t, failed.LastError, "simulated platform failure")

	high := models.SeverityHigh
	alerts, err := te.GetAlerts(ctx, models.AlertFilter{Severity: high})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	_, err = te.RetryPost(ctx, post.ID)
	assert.ErrorIs(t, err, ErrNotRetryable)
}

func TestExecutePost_ZeroRetriesFailsImmediately(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.DefaultMaxRetries = 0
	te := newTestEngine(t, cfg)
	te.sims[models.PlatformMedium].FailNext(1)

	post, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "medium"})
	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.False(t, pubErr.Retrying)
	assert.Equal(t, models.PostStatusFailed, post.Status)
	assert.Equal(t, 0, post.RetryCount)
	assert.Equal(t, 0, te.dispatcher.Len())
}

func TestExecutePost_SkipsSettledPosts(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, testConfig())

	post, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "tiktok"})
	require.NoError(t, err)
	require.Equal(t, models.PostStatusPosted, post.Status)

	again, err := te.ExecutePost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.PlatformPostID, again.PlatformPostID)
	assert.Equal(t, post.UpdatedAt, again.UpdatedAt)

	_, err = te.ExecutePost(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancelPost(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, testConfig())

	at := time.Now().Add(time.Hour)
	scheduled, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "instagram", ScheduledTime: &at})
	require.NoError(t, err)
	require.Equal(t, 1, te.dispatcher.Len())

	cancelled, err := te.CancelPost(ctx, scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusCancelled, cancelled.Status)
	assert.Equal(t, 0, te.dispatcher.Len())

	// cancelling again changes nothing
	again, err := te.CancelPost(ctx, scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, cancelled.UpdatedAt, again.UpdatedAt)

	posted, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "instagram"})
	require.NoError(t, err)
	unchanged, err := te.CancelPost(ctx, posted.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPosted, unchanged.Status)
	assert.Equal(t, posted.UpdatedAt, unchanged.UpdatedAt)

	_, err = te.CancelPost(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancelledPostIsNotPublished(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, testConfig())

	at := time.Now().Add(time.Hour)
	post, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "pinterest", ScheduledTime: &at})
	require.NoError(t, err)
	_, err = te.CancelPost(ctx, post.ID)
	require.NoError(t, err)

	got, err := te.ExecutePost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusCancelled, got.Status)
	assert.Empty(t, got.PlatformPostID)
}

func TestReschedulePost(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, testConfig())

	at := time.Now().Add(time.Hour)
	post, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "twitter", ScheduledTime: &at})
	require.NoError(t, err)

	later := time.Now().Add(2 * time.Hour)
	moved, err := te.ReschedulePost(ctx, post.ID, later)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, moved.Status)
	assert.True(t, moved.ScheduledTime.Equal(later.UTC().Truncate(time.Millisecond)))

	due, ok := te.dispatcher.queue.Due(post.ID)
	require.True(t, ok)
	assert.True(t, due.Equal(*moved.ScheduledTime))

	_, err = te.ReschedulePost(ctx, post.ID, time.Now().Add(-time.Minute))
	assert.ErrorIs(t, err, ErrInvalidPost)

	_, err = te.CancelPost(ctx, post.ID)
	require.NoError(t, err)
	_, err = te.ReschedulePost(ctx, post.ID, later)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestMaintenanceMode(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, testConfig())
	require.NoError(t, te.Start(ctx))

	at := time.Now().Add(30 * time.Millisecond)
	queued, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "reddit", ScheduledTime: &at})
	require.NoError(t, err)

	require.NoError(t, te.EnableMaintenanceMode(ctx, "ops"))
	assert.True(t, te.InMaintenance())

	_, err = te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "reddit"})
	assert.ErrorIs(t, err, ErrMaintenanceMode)
	_, err = te.ExecutePost(ctx, queued.ID)
	assert.ErrorIs(t, err, ErrMaintenanceMode)

	// the due post is held on the queue, not dropped
	time.Sleep(100 * time.Millisecond)
	held, err := te.GetPost(ctx, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, held.Status)

	posts, err := te.ListPosts(ctx, store.PostFilter{})
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	require.NoError(t, te.DisableMaintenanceMode(ctx, "ops"))
	te.waitForStatus(t, queued.ID, models.PostStatusPosted)
}

func TestStartRequeuesStoredPosts(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, testConfig())

	past := time.Now().Add(-time.Minute).UTC()
	stored := &models.PostRecord{
		Title:         "t",
		Content:       "c",
		Platform:      models.PlatformFacebook,
		Status:        models.PostStatusScheduled,
		ScheduledTime: &past,
		MaxRetries:    3,
	}
	require.NoError(t, te.repos.Posts.Create(ctx, stored))

	require.NoError(t, te.Start(ctx))
	assert.ErrorIs(t, te.Start(ctx), ErrAlreadyRunning)
	te.waitForStatus(t, stored.ID, models.PostStatusPosted)
}

func TestRetryPost_RunsWithoutWaiting(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.BackoffBase = time.Hour
	cfg.BackoffMax = time.Hour
	te := newTestEngine(t, cfg)
	te.sims[models.PlatformLinkedIn].FailNext(1)

	post, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "linkedin"})
	require.Error(t, err)
	require.Equal(t, models.PostStatusRetrying, post.Status)

	retried, err := te.RetryPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPosted, retried.Status)
	assert.Equal(t, 0, te.dispatcher.Len())
}

func TestGetSystemHealth(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, testConfig())
	alerts := services.NewAlertService(te.repos.Alerts, nil)

	raise := func(p models.Platform, n int) {
		for i := 0; i < n; i++ {
			require.NoError(t, alerts.Raise(ctx, &models.SystemAlert{Type: models.AlertTypeError, Title: "boom", Platform: p}))
		}
	}
	raise(models.PlatformTwitter, 3)
	raise(models.PlatformReddit, 5)
	raise(models.PlatformFacebook, 2)

	at := time.Now().Add(time.Hour)
	_, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "instagram", ScheduledTime: &at})
	require.NoError(t, err)
	_, err = te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "instagram"})
	require.NoError(t, err)

	health, err := te.GetSystemHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.PlatformDegraded, health.Platforms[models.PlatformTwitter].State)
	assert.Equal(t, models.PlatformCritical, health.Platforms[models.PlatformReddit].State)
	assert.Equal(t, models.PlatformHealthy, health.Platforms[models.PlatformFacebook].State)
	assert.Equal(t, 2, health.Platforms[models.PlatformFacebook].RecentErrors)
	assert.Equal(t, "closed", health.Platforms[models.PlatformTwitter].Breaker)
	assert.Equal(t, 1, health.StatusCounts[models.PostStatusScheduled])
	assert.Equal(t, 1, health.StatusCounts[models.PostStatusPosted])
	assert.Equal(t, 0, health.StatusCounts[models.PostStatusFailed])
	assert.Equal(t, 1, health.QueueDepth)
	assert.Equal(t, 10, health.OpenAlerts)
	assert.False(t, health.Running)
	assert.Equal(t, "stopped", health.Status)

	// reading health leaves the queued post alone
	queued, err := te.ListPosts(ctx, store.PostFilter{Status: models.PostStatusScheduled})
	require.NoError(t, err)
	assert.Len(t, queued, 1)
	assert.Equal(t, 1, te.dispatcher.Len())
}

func TestResolveAndAcknowledgeAlert(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, testConfig())
	te.sims[models.PlatformTwitter].FailNext(1)

	_, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "twitter"})
	require.Error(t, err)

	alerts, err := te.GetAlerts(ctx, models.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	acked, err := te.AcknowledgeAlert(ctx, alerts[0].ID, "dana")
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)
	assert.False(t, acked.Resolved)
	assert.Equal(t, "dana", acked.AcknowledgedBy)

	resolved, err := te.ResolveAlert(ctx, alerts[0].ID, "")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, "system", resolved.ResolvedBy)

	_, err = te.ResolveAlert(ctx, "missing", "dana")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestUpdateConfig(t *testing.T) {
	te := newTestEngine(t, testConfig())

	retries := 7
	kind := "exponential"
	base := "2m"
	maxDelay := "1h"
	workers := 2
	cfg, err := te.UpdateConfig(ConfigPatch{
		DefaultMaxRetries: &retries,
		BackoffKind:       &kind,
		BackoffBase:       &base,
		BackoffMax:        &maxDelay,
		Concurrency:       &workers,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.DefaultMaxRetries)
	assert.Equal(t, BackoffExponential, cfg.BackoffKind)
	assert.Equal(t, 2*time.Minute, cfg.BackoffBase)
	assert.Equal(t, 2, te.Config().Concurrency)

	bad := "sometimes"
	_, err = te.UpdateConfig(ConfigPatch{BackoffKind: &bad})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	degraded, critical := 6, 4
	_, err = te.UpdateConfig(ConfigPatch{DegradedErrors: &degraded, CriticalErrors: &critical})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	// rejected patches leave the config alone
	assert.Equal(t, 7, te.Config().DefaultMaxRetries)
	assert.Equal(t, 3, te.Config().DegradedErrors)
}

func newEngineWith(t *testing.T, cfg Config, deps Deps) *testEngine {
	t.Helper()
	if deps.Repos == nil {
		deps.Repos = store.NewRepositories(store.NewMemoryEngine())
	}
	if deps.Publishers == nil {
		var pubs []platform.Publisher
		for _, p := range models.AllPlatforms {
			pubs = append(pubs, platform.NewSimulatedPublisher(p, platform.SimulatedOptions{}))
		}
		deps.Publishers = platform.NewRegistryWith(pubs...)
	}
	deps.Alerts = services.NewAlertService(deps.Repos.Alerts, nil)

	e, err := New(deps, cfg)
	require.NoError(t, err)
	t.Cleanup(e.Stop)
	return &testEngine{Engine: e, repos: deps.Repos}
}

// rejectingPublisher answers every publish with a client error
type rejectingPublisher struct {
	*platform.SimulatedPublisher
}

func (r rejectingPublisher) Publish(context.Context, *models.PostRecord) (platform.Publication, error) {
	return platform.Publication{}, &platform.APIError{Platform: r.Platform(), StatusCode: http.StatusBadRequest, Body: "duplicate status"}
}

func TestCancelPost_FailedWithRetriesLeft(t *testing.T) {
	ctx := context.Background()
	pub := rejectingPublisher{platform.NewSimulatedPublisher(models.PlatformTwitter, platform.SimulatedOptions{})}
	te := newEngineWith(t, testConfig(), Deps{Publishers: platform.NewRegistryWith(pub)})

	post, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "twitter", MaxRetries: 3})
	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.False(t, pubErr.Retrying)
	require.NotNil(t, post)
	assert.Equal(t, models.PostStatusFailed, post.Status)
	assert.Equal(t, 0, post.RetryCount)
	assert.False(t, post.IsSettled())

	cancelled, err := te.CancelPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusCancelled, cancelled.Status)
	assert.Equal(t, 0, cancelled.RetryCount)

	_, err = te.RetryPost(ctx, post.ID)
	assert.ErrorIs(t, err, ErrNotRetryable)
}

func TestCancelPost_ExhaustedFailureIsUnchanged(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.DefaultMaxRetries = 0
	te := newTestEngine(t, cfg)
	te.sims[models.PlatformMedium].FailNext(1)

	post, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "medium"})
	require.Error(t, err)
	require.NotNil(t, post)
	require.True(t, post.IsSettled())

	got, err := te.CancelPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, got.Status)
	assert.Equal(t, post.UpdatedAt, got.UpdatedAt)
}

// flakyDispatcher fails Schedule or Cancel while the matching error is set
type flakyDispatcher struct {
	*LocalDispatcher
	scheduleErr error
	cancelErr   error
}

func (f *flakyDispatcher) Schedule(ctx context.Context, postID string, attempt int, at time.Time) error {
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	return f.LocalDispatcher.Schedule(ctx, postID, attempt, at)
}

func (f *flakyDispatcher) Cancel(ctx context.Context, postID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	return f.LocalDispatcher.Cancel(ctx, postID)
}

func TestSchedulePost_QueueOutageKeepsPostForRequeue(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	local := NewLocalDispatcher(cfg.ScanInterval)
	flaky := &flakyDispatcher{LocalDispatcher: local, scheduleErr: errors.New("redis unavailable")}
	te := newEngineWith(t, cfg, Deps{Dispatcher: flaky})

	at := time.Now().Add(30 * time.Millisecond)
	post, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "reddit", ScheduledTime: &at})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, post.Status)
	assert.Equal(t, 0, local.Len())

	alerts, err := te.GetAlerts(ctx, models.AlertFilter{Type: models.AlertTypeWarning})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, post.ID, alerts[0].PostID)
	assert.Contains(t, alerts[0].Message, "redis unavailable")

	flaky.scheduleErr = nil
	require.NoError(t, te.Start(ctx))
	te.waitForStatus(t, post.ID, models.PostStatusPosted)
}

func TestReschedulePost_DequeueErrorStillRequeues(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	local := NewLocalDispatcher(cfg.ScanInterval)
	flaky := &flakyDispatcher{LocalDispatcher: local}
	te := newEngineWith(t, cfg, Deps{Dispatcher: flaky})

	at := time.Now().Add(time.Hour)
	post, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "pinterest", ScheduledTime: &at})
	require.NoError(t, err)
	require.Equal(t, 1, local.Len())

	flaky.cancelErr = errors.New("inspector closed")
	later := at.Add(time.Hour)
	moved, err := te.ReschedulePost(ctx, post.ID, later)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, moved.Status)
	assert.Equal(t, later.UTC().Truncate(time.Millisecond), *moved.ScheduledTime)
	assert.Equal(t, 1, local.Len())
}

// memoryFlag stands in for a maintenance switch held outside the process
type memoryFlag struct {
	mu      sync.Mutex
	on      bool
	readErr error
	setErr  error
}

func (f *memoryFlag) SetMaintenance(_ context.Context, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.on = enabled
	return nil
}

func (f *memoryFlag) Maintenance(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on, f.readErr
}

func TestMaintenanceMode_SharedBetweenEngines(t *testing.T) {
	ctx := context.Background()
	flag := &memoryFlag{}
	repos := store.NewRepositories(store.NewMemoryEngine())
	api := newEngineWith(t, testConfig(), Deps{Repos: repos, Maintenance: flag})
	worker := newEngineWith(t, testConfig(), Deps{Repos: repos, Maintenance: flag})

	at := time.Now().Add(time.Hour)
	post, err := api.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "linkedin", ScheduledTime: &at})
	require.NoError(t, err)

	require.NoError(t, api.EnableMaintenanceMode(ctx, "ops"))
	assert.True(t, worker.InMaintenance())
	assert.True(t, worker.Status().Maintenance)

	_, err = worker.ExecutePost(ctx, post.ID)
	assert.ErrorIs(t, err, ErrMaintenanceMode)
	held, err := worker.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, held.Status)

	require.NoError(t, api.DisableMaintenanceMode(ctx, "ops"))
	assert.False(t, worker.InMaintenance())

	published, err := worker.ExecutePost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPosted, published.Status)
}

func TestMaintenanceMode_SharedFlagErrors(t *testing.T) {
	ctx := context.Background()
	flag := &memoryFlag{setErr: errors.New("redis unavailable")}
	te := newEngineWith(t, testConfig(), Deps{Maintenance: flag})

	assert.Error(t, te.EnableMaintenanceMode(ctx, "ops"))
	assert.False(t, te.InMaintenance())

	flag.setErr = nil
	require.NoError(t, te.EnableMaintenanceMode(ctx, "ops"))

	// an unreadable flag keeps the last value seen
	flag.readErr = errors.New("redis unavailable")
	assert.True(t, te.InMaintenance())
	_, err := te.SchedulePost(ctx, models.SchedulePostRequest{Title: "t", Content: "c", Platform: "reddit"})
	assert.ErrorIs(t, err, ErrMaintenanceMode)
}
