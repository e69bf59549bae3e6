package ai

import (
	"sync"
	"time"
)

// RateLimits are the published quotas for one Gemini tier
type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// TokenCounter tracks usage against per-minute and per-day quotas
type TokenCounter struct {
	mu              sync.Mutex
	limits          RateLimits
	now             func() time.Time
	minuteTokens    int
	dailyTokens     int
	minuteRequests  int
	dailyRequests   int
	lastMinuteReset time.Time
	lastDayReset    time.Time
}

func NewTokenCounter(limits RateLimits) *TokenCounter {
	return &TokenCounter{limits: limits, now: time.Now}
}

// CanConsume reports whether the given usage still fits every window
func (tc *TokenCounter) CanConsume(tokens, requests int) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.resetExpired()

	if tc.minuteRequests+requests > tc.limits.RPM {
		return false
	}
	if tc.minuteTokens+tokens > tc.limits.TPM {
		return false
	}
	if tc.dailyRequests+requests > tc.limits.RPD {
		return false
	}
	return true
}

func (tc *TokenCounter) RecordUsage(tokens, requests int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.resetExpired()

	tc.minuteTokens += tokens
	tc.minuteRequests += requests
	tc.dailyTokens += tokens
	tc.dailyRequests += requests
}

// Usage is a snapshot of the counters
type Usage struct {
	MinuteTokens   int `json:"minuteTokens"`
	MinuteRequests int `json:"minuteRequests"`
	DailyTokens    int `json:"dailyTokens"`
	DailyRequests  int `json:"dailyRequests"`
}

func (tc *TokenCounter) Usage() Usage {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.resetExpired()
	return Usage{
		MinuteTokens:   tc.minuteTokens,
		MinuteRequests: tc.minuteRequests,
		DailyTokens:    tc.dailyTokens,
		DailyRequests:  tc.dailyRequests,
	}
}

// resetExpired must be called with mu held
func (tc *TokenCounter) resetExpired() {
	now := tc.now()

	if now.Sub(tc.lastMinuteReset) >= time.Minute {
		tc.minuteTokens = 0
		tc.minuteRequests = 0
		tc.lastMinuteReset = now
	}

	if now.Sub(tc.lastDayReset) >= 24*time.Hour {
		tc.dailyTokens = 0
		tc.dailyRequests = 0
		tc.lastDayReset = now
	}
}
