package governance

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsIdempotent(t *testing.T) {
	assert.True(t, IsIdempotent(http.MethodGet))
	assert.True(t, IsIdempotent(http.MethodDelete))
	assert.False(t, IsIdempotent(http.MethodPost))
}

func TestRetryPolicyShouldRetryHonorsMethodAndStatus(t *testing.T) {
	rp := NewRetryPolicy(DefaultRetryConfig())

	assert.True(t, rp.ShouldRetry(http.MethodGet, http.StatusServiceUnavailable, nil, 0))
	assert.False(t, rp.ShouldRetry(http.MethodPost, http.StatusServiceUnavailable, nil, 0))
	assert.False(t, rp.ShouldRetry(http.MethodGet, http.StatusOK, nil, 0))
	assert.False(t, rp.ShouldRetry(http.MethodGet, http.StatusServiceUnavailable, nil, 3))
}

func TestRetryPolicyCalculateBackoffCapsAtMax(t *testing.T) {
	rp := NewRetryPolicy(RetryConfig{
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        20 * time.Millisecond,
		BackoffMultiplier: 10,
	})
	backoff := rp.CalculateBackoff(5)
	assert.LessOrEqual(t, backoff, 20*time.Millisecond)
}

func TestRetryPolicyExecuteWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	rp := NewRetryPolicy(RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
	})

	attempts := 0
	status, err := rp.ExecuteWithRetry(context.Background(), http.MethodGet, func() (int, error) {
		attempts++
		if attempts < 3 {
			return http.StatusServiceUnavailable, nil
		}
		return http.StatusOK, nil
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, attempts)
}

func TestRetryPolicyExecuteWithRetryExhausted(t *testing.T) {
	rp := NewRetryPolicy(RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
	})

	attempts := 0
	_, err := rp.ExecuteWithRetry(context.Background(), http.MethodGet, func() (int, error) {
		attempts++
		return 0, errors.New("connection refused")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Equal(t, 3, attempts)
}

func TestTimeoutManagerWithRequestTimeoutExpires(t *testing.T) {
	tm := NewTimeoutManager(TimeoutConfig{RequestTimeout: time.Millisecond})
	ctx, cancel := tm.WithRequestTimeout(context.Background())
	defer cancel()

	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(errors.New("connection reset by peer")))
	assert.True(t, IsRetryableError(context.DeadlineExceeded))
	assert.False(t, IsRetryableError(errors.New("invalid argument")))
	assert.False(t, IsRetryableError(nil))
}
