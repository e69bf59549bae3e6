package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"clicksprout/internal/config"
	"clicksprout/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePost(p models.Platform) *models.PostRecord {
	return &models.PostRecord{
		ID:       "post-1",
		Title:    "Aurora Desk Lamp",
		Content:  "Light up your desk. #lamp",
		Hashtags: []string{"#lamp", "#desksetup"},
		Images:   []string{"https://cdn.example.com/lamp.jpg"},
		Link:     "https://example.com/lamp",
		Platform: p,
	}
}

func TestHTTPPublisher_Publish(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tweets", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"1790","text":"ok"}}`))
	}))
	defer srv.Close()

	pub := NewHTTPPublisher(models.PlatformTwitter, HTTPOptions{Token: "secret", BaseURL: srv.URL, RPS: 100}, nil)
	res, err := pub.Publish(context.Background(), samplePost(models.PlatformTwitter))
	require.NoError(t, err)

	assert.Equal(t, "1790", res.PlatformPostID)
	assert.Equal(t, "https://twitter.com/i/web/status/1790", res.URL)
	text, _ := got["text"].(string)
	assert.Equal(t, "Light up your desk. #lamp\n\nhttps://example.com/lamp\n\n#desksetup", text)
}

func TestHTTPPublisher_ErrorMapping(t *testing.T) {
	status := http.StatusUnauthorized
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"error":"nope"}`))
	}))
	defer srv.Close()

	pub := NewHTTPPublisher(models.PlatformFacebook, HTTPOptions{Token: "t", BaseURL: srv.URL, RPS: 100}, nil)

	_, err := pub.Publish(context.Background(), samplePost(models.PlatformFacebook))
	assert.ErrorIs(t, err, ErrAuth)

	status = http.StatusUnprocessableEntity
	_, err = pub.Publish(context.Background(), samplePost(models.PlatformFacebook))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "nope")
}

func TestHTTPPublisher_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	pub := NewHTTPPublisher(models.PlatformLinkedIn, HTTPOptions{Token: "t", BaseURL: srv.URL, RPS: 1000}, nil)
	for i := 0; i < 5; i++ {
		_, err := pub.Publish(context.Background(), samplePost(models.PlatformLinkedIn))
		require.Error(t, err)
	}
	assert.Equal(t, "open", pub.BreakerState())

	_, err := pub.Publish(context.Background(), samplePost(models.PlatformLinkedIn))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.EqualValues(t, 5, calls.Load())
}

func TestHTTPPublisher_RequiresMedia(t *testing.T) {
	pub := NewHTTPPublisher(models.PlatformInstagram, HTTPOptions{Token: "t", BaseURL: "http://127.0.0.1:1"}, nil)
	post := samplePost(models.PlatformInstagram)
	post.Images = nil

	_, err := pub.Publish(context.Background(), post)
	assert.ErrorIs(t, err, ErrMissingMedia)
}

func TestHTTPPublisher_CheckAuthAndMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/user_account":
			w.Write([]byte(`{"username":"shop"}`))
		case strings.HasPrefix(r.URL.Path, "/pins/42/analytics"):
			w.Write([]byte(`{"metrics":{"impressions":1200,"save":30,"outbound_click":18},"comments":4}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	pub := NewHTTPPublisher(models.PlatformPinterest, HTTPOptions{Token: "t", BaseURL: srv.URL, RPS: 100}, nil)

	status := pub.CheckAuth(context.Background())
	assert.True(t, status.Authenticated)
	assert.Equal(t, ModeLive, status.Mode)

	m, err := pub.FetchMetrics(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, Metrics{Impressions: 1200, Comments: 4, Shares: 30, Clicks: 18}, m)

	medium := NewHTTPPublisher(models.PlatformMedium, HTTPOptions{Token: "t", BaseURL: srv.URL}, nil)
	_, err = medium.FetchMetrics(context.Background(), "x")
	assert.ErrorIs(t, err, ErrMetricsUnsupported)
}

func TestSimulatedPublisher(t *testing.T) {
	sim := NewSimulatedPublisher(models.PlatformPinterest, SimulatedOptions{Delay: time.Millisecond})

	res, err := sim.Publish(context.Background(), samplePost(models.PlatformPinterest))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.PlatformPostID, "sim_pinterest_"))
	assert.Equal(t, "https://www.pinterest.com/pin/"+res.PlatformPostID, res.URL)

	sim.FailNext(1)
	_, err = sim.Publish(context.Background(), samplePost(models.PlatformPinterest))
	assert.ErrorIs(t, err, ErrSimulatedFailure)
	_, err = sim.Publish(context.Background(), samplePost(models.PlatformPinterest))
	assert.NoError(t, err)

	m1, _ := sim.FetchMetrics(context.Background(), res.PlatformPostID)
	m2, _ := sim.FetchMetrics(context.Background(), res.PlatformPostID)
	assert.Equal(t, m1, m2)
	assert.Positive(t, m1.Impressions)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := NewSimulatedPublisher(models.PlatformReddit, SimulatedOptions{Delay: time.Hour})
	_, err = slow.Publish(ctx, samplePost(models.PlatformReddit))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry(t *testing.T) {
	cfg := &config.Config{
		PlatformTokens:   map[string]string{"twitter": "tok"},
		PlatformBaseURLs: map[string]string{},
	}
	reg := NewRegistry(cfg, nil)

	assert.Equal(t, models.AllPlatforms, reg.Platforms())

	tw, err := reg.Get(models.PlatformTwitter)
	require.NoError(t, err)
	assert.IsType(t, &HTTPPublisher{}, tw)

	pin, err := reg.Get(models.PlatformPinterest)
	require.NoError(t, err)
	assert.IsType(t, &SimulatedPublisher{}, pin)

	_, err = reg.Get("myspace")
	assert.ErrorIs(t, err, models.ErrUnsupportedPlatform)

	status, err := reg.AuthStatus(context.Background(), models.PlatformPinterest)
	require.NoError(t, err)
	assert.Equal(t, ModeSimulated, status.Mode)
	assert.True(t, status.Authenticated)
}

func TestPostText_Truncates(t *testing.T) {
	post := samplePost(models.PlatformTwitter)
	post.Content = strings.Repeat("a", 400)
	text := postText(models.PlatformTwitter, post)
	assert.Len(t, []rune(text), 280)
	assert.True(t, strings.HasSuffix(text, "…"))
}
