// Package backoff provides pluggable retry delay strategies, used by
// the upload package to space out uploader acquisition attempts.
// All strategies are safe for concurrent use (they are stateless).
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Fixed
// ──────────────────────────────────────────────────

// Fixed always returns the same delay regardless of attempt number.
type Fixed struct {
	Interval time.Duration
}

// NewFixed creates a fixed-interval backoff strategy.
func NewFixed(interval time.Duration) *Fixed {
	return &Fixed{Interval: interval}
}

// Delay returns the fixed interval.
func (f *Fixed) Delay(_ int) time.Duration {
	return f.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each attempt.
// Delay = min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// Jitter (full jitter decorator)
// ──────────────────────────────────────────────────

// Jitter applies full jitter to any base strategy.
// Delay = random value in [0, base.Delay(attempt)]. This prevents
// thundering herd when many retries happen simultaneously.
type Jitter struct {
	Base Strategy
}

// NewJitter wraps a base strategy with full jitter.
func NewJitter(base Strategy) *Jitter {
	return &Jitter{Base: base}
}

// Delay returns a random duration in [0, Base.Delay(attempt)].
func (j *Jitter) Delay(attempt int) time.Duration {
	base := float64(j.Base.Delay(attempt))
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns the default backoff used for uploader
// acquisition: full jitter over an exponential base with 1s initial
// and 1m max.
func DefaultStrategy() Strategy {
	return NewJitter(NewExponential(1*time.Second, 1*time.Minute))
}
