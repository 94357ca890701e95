package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/enrichflow/enrichflow/types"
)

// State is the circuit breaker state.
type State int

const (
	// StateClosed admits all requests.
	StateClosed State = iota
	// StateOpen rejects all requests without invoking the wrapped call.
	StateOpen
	// StateHalfOpen admits a limited number of trial requests.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config configures a CircuitBreaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the circuit open.
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`
	// ResetTimeout is how long the circuit stays open before admitting
	// half-open trial requests.
	ResetTimeout time.Duration `yaml:"reset_timeout" json:"reset_timeout"`
	// HalfOpenMaxProbes caps concurrent trial requests while half-open.
	HalfOpenMaxProbes int `yaml:"half_open_max_probes" json:"half_open_max_probes"`
	// HalfOpenSuccesses is the consecutive successes required to close
	// the circuit again.
	HalfOpenSuccesses int `yaml:"half_open_successes" json:"half_open_successes"`
}

// DefaultConfig returns the default circuit breaker configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  5,
		ResetTimeout:      30 * time.Second,
		HalfOpenMaxProbes: 3,
		HalfOpenSuccesses: 2,
	}
}

// Event describes a state transition.
type Event struct {
	Service   string    `json:"service"`
	OldState  State     `json:"old_state"`
	NewState  State     `json:"new_state"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
	Failures  int       `json:"failures"`
}

// EventHandler observes state transitions.
type EventHandler interface {
	OnStateChange(event Event)
}

// CircuitBreaker short-circuits calls to a failing downstream service.
// Scope one breaker per service or endpoint and share it between all
// callers of that service.
type CircuitBreaker struct {
	service      string
	config       Config
	eventHandler EventHandler
	logger       *zap.Logger

	mu              sync.Mutex
	state           State
	failures        int
	successes       int
	probeCount      int
	lastFailureTime time.Time
}

// New creates a circuit breaker scoped to service.
func New(service string, config Config, eventHandler EventHandler, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = DefaultConfig().ResetTimeout
	}
	if config.HalfOpenMaxProbes <= 0 {
		config.HalfOpenMaxProbes = DefaultConfig().HalfOpenMaxProbes
	}
	if config.HalfOpenSuccesses <= 0 {
		config.HalfOpenSuccesses = DefaultConfig().HalfOpenSuccesses
	}

	return &CircuitBreaker{
		service:      service,
		config:       config,
		state:        StateClosed,
		eventHandler: eventHandler,
		logger:       logger.With(zap.String("component", "breaker"), zap.String("service", service)),
	}
}

// AllowRequest reports whether a request may proceed. While open it returns
// a CIRCUIT_OPEN error without invoking anything; once ResetTimeout has
// elapsed it transitions to half-open and admits trial requests.
func (cb *CircuitBreaker) AllowRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(cb.lastFailureTime) >= cb.config.ResetTimeout {
			cb.transitionToLocked(StateHalfOpen, "reset timeout elapsed")
			cb.probeCount = 1
			cb.successes = 0
			return nil
		}
		remaining := cb.config.ResetTimeout - time.Since(cb.lastFailureTime)
		return types.NewError(types.ErrCircuitOpen,
			fmt.Sprintf("circuit open for %s: %d consecutive failures, retry after %v",
				cb.service, cb.failures, remaining.Round(time.Millisecond))).
			WithService(cb.service).
			WithRetryable(true)

	case StateHalfOpen:
		if cb.probeCount < cb.config.HalfOpenMaxProbes {
			cb.probeCount++
			return nil
		}
		return types.NewError(types.ErrCircuitOpen,
			fmt.Sprintf("circuit half-open for %s: max trial requests (%d) reached",
				cb.service, cb.config.HalfOpenMaxProbes)).
			WithService(cb.service).
			WithRetryable(true)

	default:
		return types.NewError(types.ErrInternalError, fmt.Sprintf("unknown circuit state: %d", cb.state))
	}
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0

	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.HalfOpenSuccesses {
			cb.transitionToLocked(StateClosed, fmt.Sprintf("%d consecutive successes in half-open", cb.successes))
			cb.failures = 0
			cb.successes = 0
			cb.probeCount = 0
		}
	}
}

// RecordFailure records a failed call. Any failure while half-open reopens
// the circuit immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionToLocked(StateOpen, fmt.Sprintf("%d consecutive failures", cb.failures))
		}

	case StateHalfOpen:
		cb.successes = 0
		cb.transitionToLocked(StateOpen, "failure in half-open state")
	}
}

// Do guards fn with the breaker: rejected immediately while open, otherwise
// invoked with its outcome recorded.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.AllowRequest(); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// GetState returns the current state.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetFailures returns the consecutive failure count.
func (cb *CircuitBreaker) GetFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset forces the breaker closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.probeCount = 0
	if oldState != StateClosed {
		cb.emitEventLocked(oldState, StateClosed, "manual reset")
	}
}

// transitionToLocked changes state. Must be called with cb.mu held.
func (cb *CircuitBreaker) transitionToLocked(newState State, reason string) {
	oldState := cb.state
	cb.state = newState

	cb.logger.Info("circuit breaker state change",
		zap.String("old_state", oldState.String()),
		zap.String("new_state", newState.String()),
		zap.String("reason", reason),
		zap.Int("failures", cb.failures))

	cb.emitEventLocked(oldState, newState, reason)
}

// emitEventLocked notifies the handler. Must be called with cb.mu held;
// delivery is asynchronous to avoid deadlock with handlers that call back
// into the breaker.
func (cb *CircuitBreaker) emitEventLocked(oldState, newState State, reason string) {
	if cb.eventHandler == nil {
		return
	}
	event := Event{
		Service:   cb.service,
		OldState:  oldState,
		NewState:  newState,
		Timestamp: time.Now(),
		Reason:    reason,
		Failures:  cb.failures,
	}
	go cb.eventHandler.OnStateChange(event)
}

// Registry manages one breaker per downstream service.
type Registry struct {
	config       Config
	eventHandler EventHandler
	logger       *zap.Logger

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates a breaker registry with shared configuration.
func NewRegistry(config Config, eventHandler EventHandler, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		config:       config,
		eventHandler: eventHandler,
		logger:       logger,
		breakers:     make(map[string]*CircuitBreaker),
	}
}

// GetOrCreate returns the breaker for service, creating it on first use.
func (r *Registry) GetOrCreate(service string) *CircuitBreaker {
	r.mu.RLock()
	if cb, ok := r.breakers[service]; ok {
		r.mu.RUnlock()
		return cb
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[service]; ok {
		return cb
	}

	cb := New(service, r.config, r.eventHandler, r.logger)
	r.breakers[service] = cb
	return cb
}

// States returns the current state of every registered breaker.
func (r *Registry) States() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[string]State, len(r.breakers))
	for service, cb := range r.breakers {
		states[service] = cb.GetState()
	}
	return states
}

// ResetAll resets every registered breaker.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}
}
