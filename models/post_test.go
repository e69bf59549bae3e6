package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	for _, from := range []PostStatus{PostStatusPosted, PostStatusCancelled} {
		for _, to := range AllPostStatuses {
			assert.False(t, from.CanTransition(to, 0, 10), "%s -> %s", from, to)
		}
	}
}

func TestFailedOnlyLeavesWhileRetriesRemain(t *testing.T) {
	for _, to := range AllPostStatuses {
		if to == PostStatusRetrying || to == PostStatusCancelled {
			continue
		}
		assert.False(t, PostStatusFailed.CanTransition(to, 0, 3), "failed -> %s", to)
	}
	assert.True(t, PostStatusFailed.CanTransition(PostStatusRetrying, 2, 3))
	assert.False(t, PostStatusFailed.CanTransition(PostStatusRetrying, 3, 3))
	assert.True(t, PostStatusFailed.CanTransition(PostStatusCancelled, 2, 3))
	assert.False(t, PostStatusFailed.CanTransition(PostStatusCancelled, 3, 3))
}

func TestSettledAgreesWithTerminalAndRetryBudget(t *testing.T) {
	for _, status := range AllPostStatuses {
		post := &PostRecord{Status: status, RetryCount: 0, MaxRetries: 3}
		if status == PostStatusFailed {
			assert.False(t, post.IsSettled(), "failed with retries left")
			assert.False(t, status.IsTerminal())
			post.RetryCount = 3
			assert.True(t, post.IsSettled(), "failed with retries exhausted")
			continue
		}
		assert.Equal(t, status.IsTerminal(), post.IsSettled(), "%s", status)
	}
}

func TestCancellingFailedPostClearsNextAttempt(t *testing.T) {
	now := time.Now()
	post := &PostRecord{Status: PostStatusFailed, LastError: "bad request", MaxRetries: 3, NextAttemptAt: &now}
	require.NoError(t, post.Transition(PostStatusCancelled, now))
	assert.Equal(t, PostStatusCancelled, post.Status)
	assert.Nil(t, post.NextAttemptAt)
	assert.Equal(t, 0, post.RetryCount)
}

func TestTransitionKeepsInvariants(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	post := &PostRecord{Status: PostStatusPending, MaxRetries: 1}

	err := post.Transition(PostStatusPosted, now)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, PostStatusPending, post.Status)

	err = post.Transition(PostStatusFailed, now)
	require.ErrorIs(t, err, ErrInvalidTransition)

	post.LastError = "boom"
	require.NoError(t, post.Transition(PostStatusFailed, now))
	require.NoError(t, post.Transition(PostStatusRetrying, now))
	assert.Equal(t, 1, post.RetryCount)

	post.PlatformPostID = "abc"
	require.NoError(t, post.Transition(PostStatusPosted, now))
	assert.Empty(t, post.LastError)
	assert.Equal(t, now, post.UpdatedAt)
	require.NotNil(t, post.PostedAt)
}

func TestRetryingRescheduleDoesNotCountAsRetry(t *testing.T) {
	post := &PostRecord{Status: PostStatusRetrying, RetryCount: 1, MaxRetries: 3}
	require.NoError(t, post.Transition(PostStatusRetrying, time.Now()))
	assert.Equal(t, 1, post.RetryCount)
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" Pinterest ")
	require.NoError(t, err)
	assert.Equal(t, PlatformPinterest, p)

	_, err = ParsePlatform("myspace")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}
