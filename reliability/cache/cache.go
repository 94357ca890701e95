package cache

import (
	"container/list"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config configures a Cache instance.
type Config struct {
	// MaxEntries bounds the number of live entries. When full, the least
	// recently accessed entry is evicted before a new key is inserted.
	MaxEntries int `yaml:"max_entries" json:"max_entries"`
	// DefaultTTL applies when Set is called without an explicit TTL.
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`
	// SweepInterval controls the background purge of expired entries.
	// Zero disables the sweeper; expiry is then enforced lazily on Get.
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxEntries:    1000,
		DefaultTTL:    5 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Entry is a single cached value with its bookkeeping metadata.
type Entry[V any] struct {
	Value          V
	CreatedAt      time.Time
	ExpiresAt      time.Time
	AccessCount    int64
	LastAccessedAt time.Time
}

// Stats is a read-only snapshot of cache counters.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	Size        int     `json:"size"`
	HitRate     float64 `json:"hit_rate"`
}

type cacheItem[V any] struct {
	key   string
	entry Entry[V]
}

// Cache is a bounded in-memory key/value store with per-entry expiration
// and LRU eviction. Different data classes warrant different TTLs, so
// callers are expected to construct one instance per data class rather
// than share a global one.
type Cache[V any] struct {
	config Config
	logger *zap.Logger

	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List // front = most recently accessed
	hits    int64
	misses  int64
	evicted int64
	expired int64

	done   chan struct{}
	closed bool
}

// New creates a cache and starts its background sweeper when configured.
// Close must be called to stop the sweeper.
func New[V any](config Config, logger *zap.Logger) *Cache[V] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultConfig().MaxEntries
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = DefaultConfig().DefaultTTL
	}

	c := &Cache[V]{
		config: config,
		logger: logger.With(zap.String("component", "cache")),
		items:  make(map[string]*list.Element),
		order:  list.New(),
		done:   make(chan struct{}),
	}

	if config.SweepInterval > 0 {
		go c.sweepLoop()
	}

	return c
}

// Get returns the value for key if present and unexpired. An expired entry
// is deleted lazily and counts as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}

	item := elem.Value.(*cacheItem[V])
	now := time.Now()
	if now.After(item.entry.ExpiresAt) {
		c.removeLocked(elem)
		c.expired++
		c.misses++
		return zero, false
	}

	item.entry.AccessCount++
	item.entry.LastAccessedAt = now
	c.order.MoveToFront(elem)
	c.hits++

	return item.entry.Value, true
}

// Set stores value under key with the instance default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetTTL(key, value, c.config.DefaultTTL)
}

// SetTTL stores value under key with an explicit TTL. When the cache is at
// capacity and key is new, the least recently accessed entry is evicted
// first.
func (c *Cache[V]) SetTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		item := elem.Value.(*cacheItem[V])
		item.entry.Value = value
		item.entry.ExpiresAt = now.Add(ttl)
		item.entry.LastAccessedAt = now
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.config.MaxEntries {
		c.evictOldestLocked()
	}

	item := &cacheItem[V]{
		key: key,
		entry: Entry[V]{
			Value:          value,
			CreatedAt:      now,
			ExpiresAt:      now.Add(ttl),
			LastAccessedAt: now,
		},
	}
	c.items[key] = c.order.PushFront(item)
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeLocked(elem)
	return true
}

// Len returns the number of live entries, including not-yet-swept expired ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evicted,
		Expirations: c.expired,
		Size:        c.order.Len(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Close stops the background sweeper. The cache remains usable afterwards,
// with expiry enforced lazily on Get.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (c *Cache[V]) sweepLoop() {
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if n := c.sweep(); n > 0 {
				c.logger.Debug("swept expired entries", zap.Int("count", n))
			}
		}
	}
}

// sweep purges expired entries independent of reads. Returns the purge count.
func (c *Cache[V]) sweep() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		item := elem.Value.(*cacheItem[V])
		if now.After(item.entry.ExpiresAt) {
			c.removeLocked(elem)
			c.expired++
			removed++
		}
		elem = prev
	}
	return removed
}

func (c *Cache[V]) evictOldestLocked() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	item := elem.Value.(*cacheItem[V])
	c.removeLocked(elem)
	c.evicted++
	c.logger.Debug("evicted least recently used entry", zap.String("key", item.key))
}

func (c *Cache[V]) removeLocked(elem *list.Element) {
	item := elem.Value.(*cacheItem[V])
	delete(c.items, item.key)
	c.order.Remove(elem)
}
