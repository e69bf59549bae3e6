package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"clicksprout/internal/logger"
	"clicksprout/internal/platform"
	"clicksprout/internal/store"
	"clicksprout/models"

	"golang.org/x/sync/singleflight"
)

var ErrNotPublished = errors.New("post has not been published")

// AnalyticsService serves per-post engagement numbers, refreshing them from
// the platform when the stored row is older than the ttl
type AnalyticsService struct {
	posts      *store.PostRepository
	analytics  *store.AnalyticsRepository
	publishers *platform.Registry
	ttl        time.Duration

	group singleflight.Group
}

func NewAnalyticsService(repos *store.Repositories, publishers *platform.Registry, ttl time.Duration) *AnalyticsService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AnalyticsService{
		posts:      repos.Posts,
		analytics:  repos.Analytics,
		publishers: publishers,
		ttl:        ttl,
	}
}

// GetPostAnalytics returns fresh analytics for a published post. Concurrent
// refreshes of the same post share one platform call.
func (s *AnalyticsService) GetPostAnalytics(ctx context.Context, postID string) (*models.PostAnalytics, error) {
	cached, err := s.analytics.Get(ctx, postID)
	switch {
	case err == nil && store.Now().Sub(cached.FetchedAt) < s.ttl:
		return cached, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	// waiters share the refresh, so it must not die with the first caller
	v, err, shared := s.group.Do(postID, func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx), postID)
	})
	if err != nil {
		if cached != nil {
			logger.Warn("Serving stale analytics", "post_id", postID, "fetched_at", cached.FetchedAt, "error", err)
			return cached, nil
		}
		return nil, err
	}
	if shared {
		logger.Debug("Analytics refresh shared", "post_id", postID)
	}
	row := *v.(*models.PostAnalytics)
	return &row, nil
}

func (s *AnalyticsService) refresh(ctx context.Context, postID string) (*models.PostAnalytics, error) {
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusPosted || post.PlatformPostID == "" {
		return nil, fmt.Errorf("%w: post %s is %s", ErrNotPublished, postID, post.Status)
	}
	pub, err := s.publishers.Get(post.Platform)
	if err != nil {
		return nil, err
	}
	m, err := pub.FetchMetrics(ctx, post.PlatformPostID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s metrics: %w", post.Platform, err)
	}

	row := &models.PostAnalytics{
		PostID:         post.ID,
		Platform:       post.Platform,
		Impressions:    m.Impressions,
		Likes:          m.Likes,
		Comments:       m.Comments,
		Shares:         m.Shares,
		Clicks:         m.Clicks,
		EngagementRate: engagementRate(m.Likes+m.Comments+m.Shares+m.Clicks, m.Impressions),
		FetchedAt:      store.Now(),
	}
	if err := s.analytics.Upsert(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to store analytics: %w", err)
	}
	logger.Info("Analytics refreshed", "post_id", postID, "platform", post.Platform, "impressions", m.Impressions)
	return row, nil
}

// Summary aggregates stored analytics per platform
func (s *AnalyticsService) Summary(ctx context.Context) ([]models.PlatformAnalyticsSummary, error) {
	rows, err := s.analytics.List(ctx, "")
	if err != nil {
		return nil, err
	}
	byPlatform := make(map[models.Platform]*models.PlatformAnalyticsSummary)
	rateSums := make(map[models.Platform]float64)
	for _, r := range rows {
		sum, ok := byPlatform[r.Platform]
		if !ok {
			sum = &models.PlatformAnalyticsSummary{Platform: r.Platform}
			byPlatform[r.Platform] = sum
		}
		sum.Posts++
		sum.Impressions += r.Impressions
		sum.Engagements += r.Likes + r.Comments + r.Shares + r.Clicks
		rateSums[r.Platform] += r.EngagementRate
	}

	out := make([]models.PlatformAnalyticsSummary, 0, len(byPlatform))
	for p, sum := range byPlatform {
		sum.AvgEngagementRate = round2(rateSums[p] / float64(sum.Posts))
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}

func engagementRate(engagements, impressions int64) float64 {
	if impressions <= 0 {
		return 0
	}
	return round2(float64(engagements) / float64(impressions) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
