package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLimiter_AcquireWithinCapacity(t *testing.T) {
	l := NewLimiter("provider", Config{MaxRequests: 5, Per: time.Second}, zap.NewNop())
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond, "first 5 acquires should not wait")

	stats := l.Stats()
	assert.Equal(t, int64(5), stats.TotalRequests)
	assert.Equal(t, int64(5), stats.Successful)
	assert.Equal(t, int64(0), stats.Throttled)
}

func TestLimiter_AcquireThrottlesBeyondCapacity(t *testing.T) {
	// 5 requests per 100ms keeps the test fast: the 6th and 7th acquire
	// must each incur a ~20ms refill wait.
	l := NewLimiter("provider", Config{MaxRequests: 5, Per: 100 * time.Millisecond}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(ctx))
	}

	start := time.Now()
	require.NoError(t, l.Acquire(ctx))
	sixth := time.Since(start)

	start = time.Now()
	require.NoError(t, l.Acquire(ctx))
	seventh := time.Since(start)

	assert.Greater(t, sixth, 5*time.Millisecond, "6th acquire should wait for refill")
	assert.Greater(t, seventh, 5*time.Millisecond, "7th acquire should wait for refill")

	stats := l.Stats()
	assert.Equal(t, int64(7), stats.TotalRequests)
	assert.Equal(t, int64(2), stats.Throttled)
	assert.Greater(t, stats.CumulativeDelay, time.Duration(0))
}

func TestLimiter_TryAcquire(t *testing.T) {
	l := NewLimiter("provider", Config{MaxRequests: 2, Per: 100 * time.Millisecond}, zap.NewNop())

	assert.True(t, l.TryAcquire())
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire(), "bucket should be empty")

	// Tokens refill continuously; after a full window the bucket is full again.
	time.Sleep(110 * time.Millisecond)
	assert.True(t, l.TryAcquire())

	stats := l.Stats()
	assert.Equal(t, int64(1), stats.Rejected)
}

func TestLimiter_AcquireCancelled(t *testing.T) {
	l := NewLimiter("provider", Config{MaxRequests: 1, Per: time.Second}, zap.NewNop())

	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_RefillCap(t *testing.T) {
	l := NewLimiter("provider", Config{MaxRequests: 3, Per: 30 * time.Millisecond}, zap.NewNop())

	// Idle well past one window; tokens must cap at MaxRequests.
	time.Sleep(100 * time.Millisecond)

	granted := 0
	for i := 0; i < 10; i++ {
		if l.TryAcquire() {
			granted++
		}
	}
	assert.LessOrEqual(t, granted, 4, "burst after idle must stay near bucket capacity")
	assert.GreaterOrEqual(t, granted, 3)
}
