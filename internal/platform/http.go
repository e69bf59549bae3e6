package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clicksprout/internal/logger"
	"clicksprout/internal/telemetry"
	"clicksprout/models"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// HTTPOptions configures an HTTPPublisher
type HTTPOptions struct {
	Token   string
	BaseURL string // overrides the platform default
	Timeout time.Duration
	RPS     float64
}

// HTTPPublisher calls a platform's REST API with a bearer token. Calls are
// rate limited and go through a circuit breaker.
type HTTPPublisher struct {
	platform models.Platform
	ep       endpoint
	token    string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
}

func NewHTTPPublisher(p models.Platform, opts HTTPOptions, metrics *telemetry.Metrics) *HTTPPublisher {
	ep := endpoints[p]
	if opts.BaseURL != "" {
		ep.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RPS <= 0 {
		opts.RPS = 1
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(p) + "API",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// rejected content and bad credentials say nothing about platform health
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
			}
			return err == nil || errors.Is(err, ErrAuth) || errors.Is(err, ErrMissingMedia)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	return &HTTPPublisher{
		platform: p,
		ep:       ep,
		token:    opts.Token,
		client:   &http.Client{Timeout: opts.Timeout},
		breaker:  breaker,
		limiter:  rate.NewLimiter(rate.Limit(opts.RPS), 1),
	}
}

func (h *HTTPPublisher) Platform() models.Platform { return h.platform }

func (h *HTTPPublisher) BreakerState() string { return h.breaker.State().String() }

func (h *HTTPPublisher) Publish(ctx context.Context, post *models.PostRecord) (Publication, error) {
	ctx, span := otel.Tracer("platform").Start(ctx, "platform.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("platform", string(h.platform)),
		attribute.String("post.id", post.ID),
	)

	if h.platform.RequiresMedia() && len(post.Images) == 0 {
		return Publication{}, fmt.Errorf("%w: %s", ErrMissingMedia, h.platform)
	}

	var raw map[string]any
	err := h.call(ctx, http.MethodPost, h.ep.publishPath, buildPayload(h.platform, post), &raw)
	if err != nil {
		span.SetAttributes(attribute.Bool("platform.error", true))
		return Publication{}, err
	}

	id := findString(raw, "id", "post_id", "publish_id", "name")
	if id == "" {
		return Publication{}, &APIError{Platform: h.platform, StatusCode: http.StatusOK, Body: "response carried no post id"}
	}
	pub := Publication{PlatformPostID: id, URL: findString(raw, "url", "permalink", "permalink_url")}
	if pub.URL == "" {
		pub.URL = fmt.Sprintf(h.ep.permalink, id)
	}
	return pub, nil
}

func (h *HTTPPublisher) CheckAuth(ctx context.Context) AuthStatus {
	status := AuthStatus{
		Platform:  h.platform,
		Mode:      ModeLive,
		Breaker:   h.BreakerState(),
		CheckedAt: time.Now().UTC(),
	}
	if h.token == "" {
		status.Message = "no access token configured"
		return status
	}
	if err := h.call(ctx, http.MethodGet, h.ep.authPath, nil, nil); err != nil {
		status.Message = err.Error()
		return status
	}
	status.Authenticated = true
	return status
}

func (h *HTTPPublisher) FetchMetrics(ctx context.Context, platformPostID string) (Metrics, error) {
	if h.ep.metricsPath == "" {
		return Metrics{}, fmt.Errorf("%w: %s", ErrMetricsUnsupported, h.platform)
	}
	var raw map[string]any
	if err := h.call(ctx, http.MethodGet, fmt.Sprintf(h.ep.metricsPath, platformPostID), nil, &raw); err != nil {
		return Metrics{}, err
	}
	return parseMetrics(raw), nil
}

// call runs one rate limited, breaker guarded request and decodes a JSON body into out
func (h *HTTPPublisher) call(ctx context.Context, method, path string, body any, out any) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := h.breaker.Execute(func() (interface{}, error) {
		return nil, h.do(ctx, method, path, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, h.platform, err)
	}
	return err
}

func (h *HTTPPublisher) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.ep.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", h.platform, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned %d", ErrAuth, h.platform, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{Platform: h.platform, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", h.platform, err)
	}
	return nil
}

// findString looks for the first key at the top level, then under "data"
func findString(raw map[string]any, keys ...string) string {
	for _, scope := range []map[string]any{raw, asMap(raw["data"])} {
		for _, k := range keys {
			switch v := scope[k].(type) {
			case string:
				if v != "" {
					return v
				}
			case float64:
				return fmt.Sprintf("%.0f", v)
			}
		}
	}
	return ""
}

var metricAliases = map[string][]string{
	"impressions": {"impressions", "impression_count", "views", "view_count"},
	"likes":       {"likes", "like_count", "reactions", "ups", "score"},
	"comments":    {"comments", "reply_count", "comment_count", "num_comments"},
	"shares":      {"shares", "retweet_count", "share_count", "saves", "save"},
	"clicks":      {"clicks", "link_clicks", "outbound_click", "url_link_clicks"},
}

// parseMetrics reads counters from the response root, "data" or a nested metrics object
func parseMetrics(raw map[string]any) Metrics {
	scopes := []map[string]any{raw}
	data := asMap(raw["data"])
	if list, ok := raw["data"].([]any); ok && len(list) > 0 {
		data = asMap(list[0])
	}
	scopes = append(scopes, data, asMap(raw["metrics"]), asMap(raw["public_metrics"]), asMap(data["public_metrics"]))

	get := func(name string) int64 {
		for _, scope := range scopes {
			for _, k := range metricAliases[name] {
				if v, ok := scope[k].(float64); ok {
					return int64(v)
				}
			}
		}
		return 0
	}
	return Metrics{
		Impressions: get("impressions"),
		Likes:       get("likes"),
		Comments:    get("comments"),
		Shares:      get("shares"),
		Clicks:      get("clicks"),
	}
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
