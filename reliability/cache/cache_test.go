package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(maxEntries int, ttl time.Duration) *Cache[string] {
	return New[string](Config{
		MaxEntries: maxEntries,
		DefaultTTL: ttl,
		// Sweeper disabled; tests drive expiry lazily or via sweep().
	}, zap.NewNop())
}

func TestCache_SetGet(t *testing.T) {
	c := newTestCache(10, time.Minute)
	defer c.Close()

	c.Set("contact:42", "alice@example.com")

	got, ok := c.Get("contact:42")
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", got)

	_, ok = c.Get("contact:43")
	assert.False(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := newTestCache(10, time.Minute)
	defer c.Close()

	c.SetTTL("k", "v", 50*time.Millisecond)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	time.Sleep(80 * time.Millisecond)

	_, ok = c.Get("k")
	assert.False(t, ok, "entry should be expired at t=80ms with ttl=50ms")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Expirations)
	assert.Equal(t, 0, stats.Size, "lazy expiry should have removed the entry")
}

func TestCache_LRUEviction(t *testing.T) {
	c := newTestCache(3, time.Minute)
	defer c.Close()

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")

	// Touch "a" so "b" becomes the least recently accessed.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", "4")

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently accessed entry should be evicted")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "key %q should survive eviction", key)
	}

	assert.Equal(t, int64(1), c.Stats().Evictions)
	assert.Equal(t, 3, c.Len())
}

func TestCache_UpdateExistingKeyDoesNotEvict(t *testing.T) {
	c := newTestCache(2, time.Minute)
	defer c.Close()

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("a", "updated")

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "updated", got)
	_, ok = c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, int64(0), c.Stats().Evictions)
}

func TestCache_Sweep(t *testing.T) {
	c := newTestCache(10, time.Minute)
	defer c.Close()

	c.SetTTL("short1", "v", 10*time.Millisecond)
	c.SetTTL("short2", "v", 10*time.Millisecond)
	c.Set("long", "v")

	time.Sleep(30 * time.Millisecond)

	removed := c.sweep()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("long")
	assert.True(t, ok)
}

func TestCache_Stats(t *testing.T) {
	c := newTestCache(10, time.Minute)
	defer c.Close()

	c.Set("k", "v")
	c.Get("k")
	c.Get("k")
	c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.001)
	assert.Equal(t, 1, stats.Size)
}

func TestCache_CapacityNeverExceeded(t *testing.T) {
	const capacity = 8
	c := newTestCache(capacity, time.Minute)
	defer c.Close()

	for i := 0; i < 100; i++ {
		c.Set(fmt.Sprintf("key-%d", i), "v")
		assert.LessOrEqual(t, c.Len(), capacity)
	}
}

func TestCache_Delete(t *testing.T) {
	c := newTestCache(10, time.Minute)
	defer c.Close()

	c.Set("k", "v")
	assert.True(t, c.Delete("k"))
	assert.False(t, c.Delete("k"))
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_CloseIdempotent(t *testing.T) {
	c := New[int](Config{MaxEntries: 4, DefaultTTL: time.Minute, SweepInterval: 10 * time.Millisecond}, zap.NewNop())
	c.Close()
	c.Close()

	// Still usable after Close; expiry is lazy only.
	c.Set("k", 1)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, got)
}
