package platform

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"clicksprout/models"

	"github.com/google/uuid"
)

// ErrSimulatedFailure is what a SimulatedPublisher returns when told to fail
var ErrSimulatedFailure = errors.New("simulated platform failure")

// SimulatedOptions tunes a SimulatedPublisher
type SimulatedOptions struct {
	Delay       time.Duration
	FailureRate float64
}

// SimulatedPublisher stands in for a platform that has no credentials. It
// accepts every post after a short delay unless configured to fail.
type SimulatedPublisher struct {
	platform models.Platform
	opts     SimulatedOptions

	mu       sync.Mutex
	rnd      *rand.Rand
	failNext int
}

func NewSimulatedPublisher(p models.Platform, opts SimulatedOptions) *SimulatedPublisher {
	return &SimulatedPublisher{
		platform: p,
		opts:     opts,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SimulatedPublisher) Platform() models.Platform { return s.platform }

func (s *SimulatedPublisher) BreakerState() string { return "closed" }

// FailNext makes the next n publishes fail
func (s *SimulatedPublisher) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

func (s *SimulatedPublisher) Publish(ctx context.Context, post *models.PostRecord) (Publication, error) {
	if s.opts.Delay > 0 {
		timer := time.NewTimer(s.opts.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Publication{}, ctx.Err()
		case <-timer.C:
		}
	}

	if s.shouldFail() {
		return Publication{}, fmt.Errorf("%w: %s", ErrSimulatedFailure, s.platform)
	}

	id := fmt.Sprintf("sim_%s_%s", s.platform, uuid.NewString())
	return Publication{
		PlatformPostID: id,
		URL:            fmt.Sprintf(endpoints[s.platform].permalink, id),
	}, nil
}

func (s *SimulatedPublisher) shouldFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return true
	}
	return s.opts.FailureRate > 0 && s.rnd.Float64() < s.opts.FailureRate
}

func (s *SimulatedPublisher) CheckAuth(ctx context.Context) AuthStatus {
	return AuthStatus{
		Platform:      s.platform,
		Mode:          ModeSimulated,
		Authenticated: true,
		Message:       "no access token configured, posts are simulated",
		Breaker:       s.BreakerState(),
		CheckedAt:     time.Now().UTC(),
	}
}

// FetchMetrics derives stable counters from the post id
func (s *SimulatedPublisher) FetchMetrics(ctx context.Context, platformPostID string) (Metrics, error) {
	h := fnv.New64a()
	h.Write([]byte(platformPostID))
	seed := int64(h.Sum64() % 100000)

	impressions := 500 + seed%9500
	return Metrics{
		Impressions: impressions,
		Likes:       impressions / 20,
		Comments:    impressions / 200,
		Shares:      impressions / 150,
		Clicks:      impressions / 40,
	}, nil
}
