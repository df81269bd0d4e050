package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryer(maxRetries int) *ExponentialBackoffRetryer {
	return NewExponentialBackoffRetryer(WithMaxRetries(maxRetries), WithBaseDelay(time.Millisecond), WithMaxDelay(2*time.Millisecond), WithoutJitter())
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	r := fastRetryer(3)
	calls := 0

	err := r.Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_GivesUp(t *testing.T) {
	r := fastRetryer(2)
	cause := errors.New("still down")
	calls := 0

	err := r.Retry(context.Background(), func() error {
		calls++
		return cause
	})

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestRetryIf_StopsOnPermanentError(t *testing.T) {
	r := fastRetryer(5)
	permanent := errors.New("permanent")
	calls := 0

	err := r.RetryIf(context.Background(), func() error {
		calls++
		return permanent
	}, func(err error) bool { return !errors.Is(err, permanent) })

	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_HonorsCancellation(t *testing.T) {
	r := NewExponentialBackoffRetryer(WithBaseDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := r.Retry(ctx, func() error {
		calls++
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCalculateDelay(t *testing.T) {
	r := NewExponentialBackoffRetryer(WithBaseDelay(100*time.Millisecond), WithMaxDelay(time.Second), WithoutJitter())

	assert.Equal(t, 100*time.Millisecond, r.calculateDelay(0))
	assert.Equal(t, 400*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, time.Second, r.calculateDelay(10))

	jittered := NewExponentialBackoffRetryer(WithBaseDelay(100 * time.Millisecond))
	d := jittered.calculateDelay(0)
	assert.GreaterOrEqual(t, d, 100*time.Millisecond)
	assert.LessOrEqual(t, d, 125*time.Millisecond)
}
