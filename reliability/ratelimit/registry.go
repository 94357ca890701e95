package ratelimit

import (
	"sync"

	"go.uber.org/zap"
)

// Registry manages one limiter per downstream service, so every caller of a
// provider shares the same token bucket.
type Registry struct {
	config Config
	logger *zap.Logger

	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewRegistry creates a limiter registry with shared configuration.
func NewRegistry(config Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		config:   config,
		logger:   logger,
		limiters: make(map[string]*Limiter),
	}
}

// GetOrCreate returns the limiter for service, creating it on first use.
func (r *Registry) GetOrCreate(service string) *Limiter {
	r.mu.RLock()
	if l, ok := r.limiters[service]; ok {
		r.mu.RUnlock()
		return l
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[service]; ok {
		return l
	}

	l := NewLimiter(service, r.config, r.logger)
	r.limiters[service] = l
	return l
}

// Stats returns a snapshot of every registered limiter's counters.
func (r *Registry) Stats() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Stats, len(r.limiters))
	for service, l := range r.limiters {
		out[service] = l.Stats()
	}
	return out
}
