package engine

import (
	"fmt"
	"time"
)

type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
)

func ParseBackoffKind(s string) (BackoffKind, error) {
	switch BackoffKind(s) {
	case BackoffFixed, BackoffExponential:
		return BackoffKind(s), nil
	}
	return "", fmt.Errorf("%w: backoff must be fixed or exponential, got %q", ErrInvalidConfig, s)
}

// Backoff computes the wait before a retry attempt
type Backoff struct {
	Kind BackoffKind
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before the given retry (1 for the first retry).
// Exponential doubles from Base and never exceeds Max.
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	if b.Kind != BackoffExponential {
		return b.Base
	}
	d := b.Base
	for i := 1; i < retry; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}
