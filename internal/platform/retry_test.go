package platform

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, backoffDelay(0))
	assert.Equal(t, 500*time.Millisecond, backoffDelay(1))
	assert.Equal(t, time.Second, backoffDelay(2))
	assert.Equal(t, 5*time.Second, backoffDelay(5))
	assert.Equal(t, 5*time.Second, backoffDelay(40))
	assert.Equal(t, 250*time.Millisecond, backoffDelay(-1))
}

func TestWithRetryStopsAtMaxAttempts(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return Transportf("connection refused")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, MaxAttempts, calls)
}

func TestWithRetryDoesNotRetryNonTransport(t *testing.T) {
	for _, sentinel := range []error{ErrValidation, ErrAuth, ErrNotAuthenticated, ErrUpstreamFormat} {
		calls := 0
		err := WithRetry(context.Background(), "op", func(ctx context.Context) error {
			calls++
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls, "sentinel %v must not be retried", sentinel)
	}
}

func TestWithRetryRecoversWithinBudget(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Transportf("timeout")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, "op", func(ctx context.Context) error {
		calls++
		cancel()
		return Transportf("timeout")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, 1, calls)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Transportf("dial tcp")))
	assert.False(t, Retryable(Authf("bad token")))
	assert.False(t, Retryable(errors.New("plain")))
	assert.False(t, Retryable(nil))
}
