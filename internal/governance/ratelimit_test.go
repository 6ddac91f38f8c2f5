package governance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsUpToBurstThenBlocks(t *testing.T) {
	rl := NewRateLimiter(map[string]RateLimiterConfig{
		"route-a": {RequestsPerSecond: 1, BurstSize: 2},
	})

	assert.True(t, rl.Allow("route-a"))
	assert.True(t, rl.Allow("route-a"))
	assert.False(t, rl.Allow("route-a"))
}

func TestRateLimiterUnconfiguredRouteAlwaysAllowed(t *testing.T) {
	rl := NewRateLimiter(nil)
	assert.True(t, rl.Allow("unconfigured"))
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(map[string]RateLimiterConfig{
		"route-a": {RequestsPerSecond: 100, BurstSize: 1},
	})

	require.True(t, rl.Allow("route-a"))
	require.False(t, rl.Allow("route-a"))

	time.Sleep(20 * time.Millisecond)
	assert.True(t, rl.Allow("route-a"))
}

func TestRateLimiterAllowContextRejectsCanceled(t *testing.T) {
	rl := NewRateLimiter(map[string]RateLimiterConfig{
		"route-a": {RequestsPerSecond: 10, BurstSize: 10},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, rl.AllowContext(ctx, "route-a"))
}

func TestRateLimiterConfigurePreservesExistingBucketState(t *testing.T) {
	rl := NewRateLimiter(map[string]RateLimiterConfig{
		"route-a": {RequestsPerSecond: 1, BurstSize: 5},
	})
	require.True(t, rl.Allow("route-a"))

	rl.Configure(map[string]RateLimiterConfig{
		"route-a": {RequestsPerSecond: 1, BurstSize: 10},
	})

	stats := rl.Stats()["route-a"]
	assert.Equal(t, 10, stats.BurstSize)
	// 5 tokens minus the one taken, plus the 5 added by the larger burst;
	// a freshly built bucket would hold 10.
	assert.InDelta(t, 9.0, stats.Available, 0.5)
}
