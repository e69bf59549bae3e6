package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDueQueue_PopsInDueOrder(t *testing.T) {
	q := newDueQueue()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	q.Push("c", base.Add(3*time.Minute))
	q.Push("a", base.Add(1*time.Minute))
	q.Push("b", base.Add(2*time.Minute))
	q.Push("later", base.Add(time.Hour))

	assert.Equal(t, []string{"a", "b", "c"}, q.PopDue(base.Add(5*time.Minute)))
	assert.Equal(t, 1, q.Len())
	assert.Empty(t, q.PopDue(base.Add(5*time.Minute)))
}

func TestDueQueue_PushMovesExistingEntry(t *testing.T) {
	q := newDueQueue()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	q.Push("a", base.Add(time.Hour))
	q.Push("b", base.Add(2*time.Minute))
	q.Push("a", base.Add(time.Minute))

	assert.Equal(t, 2, q.Len())
	due, ok := q.Due("a")
	assert.True(t, ok)
	assert.Equal(t, base.Add(time.Minute), due)
	assert.Equal(t, []string{"a", "b"}, q.PopDue(base.Add(10*time.Minute)))
}

func TestDueQueue_Remove(t *testing.T) {
	q := newDueQueue()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	q.Push("a", base)
	q.Push("b", base)
	assert.True(t, q.Remove("a"))
	assert.False(t, q.Remove("a"))

	_, ok := q.Due("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, q.PopDue(base))
}

func TestBackoff_Delay(t *testing.T) {
	exp := Backoff{Kind: BackoffExponential, Base: time.Minute, Max: 30 * time.Minute}
	fixed := Backoff{Kind: BackoffFixed, Base: 5 * time.Minute, Max: 30 * time.Minute}

	tests := []struct {
		name    string
		backoff Backoff
		retry   int
		want    time.Duration
	}{
		{"exponential first", exp, 1, time.Minute},
		{"exponential second", exp, 2, 2 * time.Minute},
		{"exponential fourth", exp, 4, 8 * time.Minute},
		{"exponential capped", exp, 10, 30 * time.Minute},
		{"exponential zero retry", exp, 0, time.Minute},
		{"fixed", fixed, 1, 5 * time.Minute},
		{"fixed later", fixed, 6, 5 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.backoff.Delay(tt.retry))
		})
	}
}

func TestParseBackoffKind(t *testing.T) {
	kind, err := ParseBackoffKind("fixed")
	assert.NoError(t, err)
	assert.Equal(t, BackoffFixed, kind)

	_, err = ParseBackoffKind("linear")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigJSONUsesDurationStrings(t *testing.T) {
	raw, err := DefaultConfig().MarshalJSON()
	assert.NoError(t, err)
	assert.Contains(t, string(raw), `"backoffBase":"1m0s"`)
	assert.Contains(t, string(raw), `"backoffMax":"30m0s"`)
	assert.Contains(t, string(raw), `"concurrency":4`)
}
