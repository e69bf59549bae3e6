package platform

import (
	"context"
	"fmt"
	"sync"

	"clicksprout/internal/config"
	"clicksprout/internal/telemetry"
	"clicksprout/models"

	"golang.org/x/sync/errgroup"
)

// Registry holds one publisher per supported platform and remembers the last
// auth check for each
type Registry struct {
	publishers map[models.Platform]Publisher

	mu   sync.RWMutex
	auth map[models.Platform]AuthStatus
}

// NewRegistry wires a live publisher for every platform with a token and a
// simulated one for the rest
func NewRegistry(cfg *config.Config, metrics *telemetry.Metrics) *Registry {
	pubs := make([]Publisher, 0, len(models.AllPlatforms))
	for _, p := range models.AllPlatforms {
		token := cfg.PlatformTokens[string(p)]
		if token == "" {
			pubs = append(pubs, NewSimulatedPublisher(p, SimulatedOptions{Delay: cfg.SimulatedPostDelay}))
			continue
		}
		pubs = append(pubs, NewHTTPPublisher(p, HTTPOptions{
			Token:   token,
			BaseURL: cfg.PlatformBaseURLs[string(p)],
			Timeout: cfg.PlatformTimeout,
			RPS:     cfg.PlatformRPS,
		}, metrics))
	}
	return NewRegistryWith(pubs...)
}

// NewRegistryWith builds a registry from explicit publishers
func NewRegistryWith(pubs ...Publisher) *Registry {
	r := &Registry{
		publishers: make(map[models.Platform]Publisher, len(pubs)),
		auth:       make(map[models.Platform]AuthStatus),
	}
	for _, p := range pubs {
		r.publishers[p.Platform()] = p
	}
	return r
}

func (r *Registry) Get(p models.Platform) (Publisher, error) {
	pub, ok := r.publishers[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedPlatform, p)
	}
	return pub, nil
}

// Platforms lists registered platforms in display order
func (r *Registry) Platforms() []models.Platform {
	out := make([]models.Platform, 0, len(r.publishers))
	for _, p := range models.AllPlatforms {
		if _, ok := r.publishers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// BreakerStates reports each publisher's circuit breaker state
func (r *Registry) BreakerStates() map[models.Platform]string {
	out := make(map[models.Platform]string, len(r.publishers))
	for p, pub := range r.publishers {
		out[p] = pub.BreakerState()
	}
	return out
}

// AuthStatus returns the cached status for p, checking it on first use
func (r *Registry) AuthStatus(ctx context.Context, p models.Platform) (AuthStatus, error) {
	r.mu.RLock()
	status, ok := r.auth[p]
	r.mu.RUnlock()
	if ok {
		return status, nil
	}
	return r.CheckAuth(ctx, p)
}

// CheckAuth runs a fresh credential check for p
func (r *Registry) CheckAuth(ctx context.Context, p models.Platform) (AuthStatus, error) {
	pub, err := r.Get(p)
	if err != nil {
		return AuthStatus{}, err
	}
	status := pub.CheckAuth(ctx)

	r.mu.Lock()
	r.auth[p] = status
	r.mu.Unlock()
	return status, nil
}

// CheckAll runs fresh checks for every platform concurrently
func (r *Registry) CheckAll(ctx context.Context) []AuthStatus {
	platforms := r.Platforms()
	out := make([]AuthStatus, len(platforms))

	var g errgroup.Group
	g.SetLimit(4)
	for i, p := range platforms {
		g.Go(func() error {
			out[i], _ = r.CheckAuth(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Invalidate drops cached auth results so the next AuthStatus re-checks
func (r *Registry) Invalidate(p models.Platform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p == "" {
		r.auth = make(map[models.Platform]AuthStatus)
		return
	}
	delete(r.auth, p)
}
