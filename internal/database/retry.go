package database

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoffRetryer retries an operation with exponentially growing,
// jittered delays.
type ExponentialBackoffRetryer struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	multiplier float64
	jitter     bool
}

// RetryOption configures an ExponentialBackoffRetryer.
type RetryOption func(*ExponentialBackoffRetryer)

// WithMaxRetries sets how many times a failed attempt is repeated.
func WithMaxRetries(n int) RetryOption {
	return func(r *ExponentialBackoffRetryer) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(d time.Duration) RetryOption {
	return func(r *ExponentialBackoffRetryer) {
		r.baseDelay = d
	}
}

// WithMaxDelay caps the delay between attempts.
func WithMaxDelay(d time.Duration) RetryOption {
	return func(r *ExponentialBackoffRetryer) {
		r.maxDelay = d
	}
}

// WithoutJitter disables random jitter, making delays deterministic.
func WithoutJitter() RetryOption {
	return func(r *ExponentialBackoffRetryer) {
		r.jitter = false
	}
}

// NewExponentialBackoffRetryer creates a new retryer with sensible defaults
func NewExponentialBackoffRetryer(opts ...RetryOption) *ExponentialBackoffRetryer {
	r := &ExponentialBackoffRetryer{
		maxRetries: 5,
		baseDelay:  100 * time.Millisecond,
		maxDelay:   30 * time.Second,
		multiplier: 2.0,
		jitter:     true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retry executes fn, retrying every failure with exponential backoff.
func (r *ExponentialBackoffRetryer) Retry(ctx context.Context, fn func() error) error {
	return r.RetryIf(ctx, fn, nil)
}

// RetryIf executes fn, retrying only failures for which shouldRetry returns
// true. A nil shouldRetry retries every failure.
func (r *ExponentialBackoffRetryer) RetryIf(ctx context.Context, fn func() error, shouldRetry func(error) bool) error {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}

		lastErr = err

		if attempt == r.maxRetries {
			break
		}

		delay := r.calculateDelay(attempt)
		slog.DebugContext(ctx, "Retry attempt failed, waiting before next attempt",
			"event", "retry_attempt",
			"attempt", attempt+1, "max_attempts", r.maxRetries+1,
			"delay_ms", delay.Milliseconds(), "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

func (r *ExponentialBackoffRetryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.baseDelay) * math.Pow(r.multiplier, float64(attempt))
	if delay > float64(r.maxDelay) {
		delay = float64(r.maxDelay)
	}

	if r.jitter {
		// Up to 25% extra.
		jitterRange := delay * 0.25
		delay += rand.Float64() * jitterRange
	}

	return time.Duration(delay)
}
