package errors

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig bounds how a flaky call is retried.
type RetryConfig struct {
	// MaxAttempts counts the first call. Values below one mean one.
	MaxAttempts int

	// InitialBackoff is the wait after the first failure. It doubles after
	// every further failure up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Jitter stretches each wait by a random fraction in [0, Jitter).
	Jitter float64

	// Retryable overrides IsRetryable.
	Retryable func(error) bool

	// OnRetry runs before each wait. attempt is the 1-based attempt that
	// just failed.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetry suits short provider calls.
var DefaultRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: time.Second,
	MaxBackoff:     30 * time.Second,
	Jitter:         0.1,
}

// SpeechRetry is used for speech synthesis. Waits grow 1s, 2s, each
// stretched by up to half.
var SpeechRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: time.Second,
	MaxBackoff:     8 * time.Second,
	Jitter:         0.5,
}

// Backoff returns the wait after the given failed attempt, before jitter.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	d := c.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if c.MaxBackoff > 0 && d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return d
}

func (c RetryConfig) jittered(d time.Duration) time.Duration {
	if c.Jitter <= 0 {
		return d
	}
	return time.Duration(float64(d) * (1 + c.Jitter*rand.Float64()))
}

// RetryResult is the outcome of Do.
type RetryResult[T any] struct {
	Value    T
	Err      error
	Attempts int
	Duration time.Duration
}

// Do calls fn until it succeeds, fails with a non-retryable error, runs out
// of attempts or ctx ends. A failed result carries a *CategorizedError that
// wraps the last error.
func Do[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) RetryResult[T] {
	start := time.Now()
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	maxAttempts := max(cfg.MaxAttempts, 1)

	fail := func(err error, attempts int, reason string) RetryResult[T] {
		return RetryResult[T]{
			Err:      &CategorizedError{Err: err, Category: Categorize(err), Retries: attempts, Context: reason},
			Attempts: attempts,
			Duration: time.Since(start),
		}
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fail(err, attempt-1, "context cancelled")
		}
		v, err := fn(ctx)
		if err == nil {
			return RetryResult[T]{Value: v, Attempts: attempt, Duration: time.Since(start)}
		}
		if !retryable(err) {
			return fail(err, attempt, "")
		}
		if attempt >= maxAttempts {
			return fail(err, attempt, "max retries exceeded")
		}

		delay := cfg.jittered(cfg.Backoff(attempt))
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return fail(ctx.Err(), attempt, "context cancelled during backoff")
		case <-t.C:
		}
	}
}

// RetryOption adjusts a RetryConfig.
type RetryOption func(*RetryConfig)

func WithMaxAttempts(n int) RetryOption {
	return func(c *RetryConfig) { c.MaxAttempts = n }
}

func WithInitialBackoff(d time.Duration) RetryOption {
	return func(c *RetryConfig) { c.InitialBackoff = d }
}

func WithMaxBackoff(d time.Duration) RetryOption {
	return func(c *RetryConfig) { c.MaxBackoff = d }
}

func WithJitter(j float64) RetryOption {
	return func(c *RetryConfig) { c.Jitter = j }
}

func WithRetryable(fn func(error) bool) RetryOption {
	return func(c *RetryConfig) { c.Retryable = fn }
}

func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) RetryOption {
	return func(c *RetryConfig) { c.OnRetry = fn }
}

// NewRetryConfig applies opts to DefaultRetry.
func NewRetryConfig(opts ...RetryOption) RetryConfig {
	cfg := DefaultRetry
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
