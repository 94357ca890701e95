package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/enrichflow/enrichflow/types"
)

// Policy defines the retry behavior wrapped around a callable.
type Policy struct {
	// MaxRetries is the number of attempts after the first (0 disables retry).
	MaxRetries int
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration
	// Multiplier is the exponential backoff factor.
	Multiplier float64
	// Jitter adds ±25% randomization to each delay to avoid thundering herds.
	Jitter bool
	// RetryIf filters which errors are retried. Nil retries everything.
	RetryIf func(err error) bool
	// OnRetry is invoked before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns a policy suited to flaky enrichment provider calls.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// ExhaustedError is returned when every attempt failed. It wraps the last
// underlying error and carries the attempt statistics.
type ExhaustedError struct {
	Attempts   int
	TotalDelay time.Duration
	LastErr    error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts (waited %v): %v",
		e.Attempts, e.TotalDelay.Round(time.Millisecond), e.LastErr)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// Executor retries a callable with exponential backoff.
type Executor interface {
	// Do executes fn, retrying per the policy on failure.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
	// DoWithResult executes fn and returns its result, retrying per the
	// policy on failure.
	DoWithResult(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error)
}

type backoffExecutor struct {
	policy *Policy
	logger *zap.Logger
}

// NewExecutor creates an exponential backoff executor. Invalid policy
// fields are replaced with defaults.
func NewExecutor(policy *Policy, logger *zap.Logger) Executor {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = DefaultPolicy().InitialDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultPolicy().MaxDelay
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = DefaultPolicy().Multiplier
	}

	return &backoffExecutor{
		policy: policy,
		logger: logger.With(zap.String("component", "retry")),
	}
}

// Do implements Executor.
func (r *backoffExecutor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := r.DoWithResult(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// DoWithResult implements Executor.
func (r *backoffExecutor) DoWithResult(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	var lastErr error
	var totalDelay time.Duration

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			totalDelay += delay

			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			select {
			case <-ctx.Done():
				return nil, types.NewError(types.ErrCancelled, "retry cancelled").WithCause(ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if !r.isRetryable(err) {
			r.logger.Debug("error not retryable", zap.Error(err))
			return nil, err
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr),
	)

	return nil, types.NewError(types.ErrRetryExhausted,
		fmt.Sprintf("all %d attempts failed", r.policy.MaxRetries+1)).
		WithCause(&ExhaustedError{
			Attempts:   r.policy.MaxRetries + 1,
			TotalDelay: totalDelay,
			LastErr:    lastErr,
		})
}

// calculateDelay computes initialDelay * multiplier^(attempt-1), capped at
// MaxDelay, with optional ±25% jitter.
func (r *backoffExecutor) calculateDelay(attempt int) time.Duration {
	delay := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))

	if delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}

	if r.policy.Jitter {
		jitter := delay * 0.25
		delay = delay + (rand.Float64()*2-1)*jitter
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

func (r *backoffExecutor) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if r.policy.RetryIf == nil {
		return true
	}
	return r.policy.RetryIf(err)
}
