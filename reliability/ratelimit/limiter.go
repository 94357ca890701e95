package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/enrichflow/enrichflow/types"
)

// Config configures a token-bucket Limiter.
type Config struct {
	// MaxRequests is the bucket capacity and the number of requests
	// admitted per window.
	MaxRequests int `yaml:"max_requests" json:"max_requests"`
	// Per is the refill window. Tokens refill continuously at
	// MaxRequests / Per, capped at MaxRequests.
	Per time.Duration `yaml:"per" json:"per"`
}

// Stats is a read-only snapshot of limiter counters.
type Stats struct {
	TotalRequests   int64         `json:"total_requests"`
	Throttled       int64         `json:"throttled"`
	Successful      int64         `json:"successful"`
	Rejected        int64         `json:"rejected"`
	CumulativeDelay time.Duration `json:"cumulative_delay"`
}

// Limiter is a token-bucket admission controller for one named downstream
// service. Construct one instance per provider and share it between all
// blocks that call that provider; a per-call instance would defeat the
// purpose.
type Limiter struct {
	service string
	config  Config
	logger  *zap.Logger

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	stats      Stats
}

// NewLimiter creates a token-bucket limiter scoped to service.
func NewLimiter(service string, config Config, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = 1
	}
	if config.Per <= 0 {
		config.Per = time.Second
	}

	return &Limiter{
		service:    service,
		config:     config,
		logger:     logger.With(zap.String("component", "ratelimit"), zap.String("service", service)),
		tokens:     float64(config.MaxRequests),
		lastRefill: time.Now(),
	}
}

// Acquire blocks until a token is available or ctx is done, then consumes
// one token. The wait smooths bursts under the provider's published ceiling
// instead of rejecting requests outright.
func (l *Limiter) Acquire(ctx context.Context) error {
	wait := l.reserve()
	if wait <= 0 {
		return nil
	}

	l.logger.Debug("throttling request", zap.Duration("wait", wait))

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		l.mu.Lock()
		// Return the reserved token; the request never ran.
		l.tokens++
		if l.tokens > float64(l.config.MaxRequests) {
			l.tokens = float64(l.config.MaxRequests)
		}
		l.stats.Successful--
		l.stats.Rejected++
		l.mu.Unlock()
		return types.NewError(types.ErrCancelled, fmt.Sprintf("rate limit wait cancelled for %s", l.service)).
			WithCause(ctx.Err())
	case <-timer.C:
		return nil
	}
}

// TryAcquire consumes a token if one is immediately available and reports
// whether it did.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillLocked(time.Now())
	l.stats.TotalRequests++

	if l.tokens >= 1 {
		l.tokens--
		l.stats.Successful++
		return true
	}

	l.stats.Rejected++
	return false
}

// Stats returns a snapshot of the limiter counters.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Service returns the downstream service this limiter is scoped to.
func (l *Limiter) Service() string {
	return l.service
}

// reserve consumes one token, returning how long the caller must wait
// before the consumed token is actually backed by refill.
func (l *Limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.refillLocked(now)
	l.stats.TotalRequests++

	if l.tokens >= 1 {
		l.tokens--
		l.stats.Successful++
		return 0
	}

	// Wait until the deficit for one token refills.
	perToken := l.config.Per / time.Duration(l.config.MaxRequests)
	deficit := 1 - l.tokens
	wait := time.Duration(deficit * float64(perToken))

	l.tokens--
	l.stats.Successful++
	l.stats.Throttled++
	l.stats.CumulativeDelay += wait
	return wait
}

// refillLocked adds tokens for the time elapsed since the last refill,
// capped at capacity. Must be called with l.mu held.
func (l *Limiter) refillLocked(now time.Time) {
	elapsed := now.Sub(l.lastRefill)
	if elapsed <= 0 {
		return
	}
	l.lastRefill = now

	rate := float64(l.config.MaxRequests) / float64(l.config.Per)
	l.tokens += rate * float64(elapsed)
	if l.tokens > float64(l.config.MaxRequests) {
		l.tokens = float64(l.config.MaxRequests)
	}
}
