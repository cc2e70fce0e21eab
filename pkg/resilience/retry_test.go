package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", fast, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), "op", fast, func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
}

func TestRetryStopsOnPermanent(t *testing.T) {
	bad := errors.New("bad request")
	calls := 0
	err := Retry(context.Background(), "op", fast, func(context.Context) error {
		calls++
		return Permanent(bad)
	})
	assert.Equal(t, bad, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, Permanent(nil))
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "op", RetryConfig{MaxAttempts: 5, InitialDelay: time.Second}, func(context.Context) error {
		return errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffIsCapped(t *testing.T) {
	cfg := withDefaults(RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 10})
	assert.Equal(t, 3*time.Second, backoff(4, cfg))
}
