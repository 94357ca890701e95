package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/enrichflow/enrichflow/types"
)

func newTestBreaker(threshold int, resetTimeout time.Duration) *CircuitBreaker {
	return New("provider", Config{
		FailureThreshold:  threshold,
		ResetTimeout:      resetTimeout,
		HalfOpenMaxProbes: 1,
		HalfOpenSuccesses: 1,
	}, nil, zap.NewNop())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
		assert.Equal(t, StateClosed, cb.GetState())
	}

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestBreaker_RejectsWhileOpenWithoutInvoking(t *testing.T) {
	cb := newTestBreaker(1, time.Minute)
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.GetState())

	invoked := false
	err := cb.Do(context.Background(), func(ctx context.Context) error {
		invoked = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, invoked, "wrapped function must not run while open")
	assert.Equal(t, types.ErrCircuitOpen, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb := newTestBreaker(1, 30*time.Millisecond)
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(50 * time.Millisecond)

	// One trial call is permitted once the reset timeout has elapsed.
	require.NoError(t, cb.AllowRequest())
	assert.Equal(t, StateHalfOpen, cb.GetState())

	// The probe budget is exhausted; a second concurrent trial is rejected.
	err := cb.AllowRequest()
	require.Error(t, err)
	assert.Equal(t, types.ErrCircuitOpen, types.GetErrorCode(err))
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.AllowRequest())
	cb.RecordSuccess()

	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, 0, cb.GetFailures())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.AllowRequest())
	cb.RecordFailure()

	assert.Equal(t, StateOpen, cb.GetState())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	assert.Equal(t, StateClosed, cb.GetState(), "non-consecutive failures must not trip the circuit")
}

func TestBreaker_DoRecordsOutcome(t *testing.T) {
	cb := newTestBreaker(2, time.Minute)
	boom := errors.New("boom")

	err := cb.Do(context.Background(), func(ctx context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, cb.GetFailures())

	require.NoError(t, cb.Do(context.Background(), func(ctx context.Context) error { return nil }))
	assert.Equal(t, 0, cb.GetFailures())
}

type recordingHandler struct {
	mu     sync.Mutex
	events []Event
	done   chan struct{}
}

func (h *recordingHandler) OnStateChange(event Event) {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
	select {
	case h.done <- struct{}{}:
	default:
	}
}

func TestBreaker_EmitsTransitionEvents(t *testing.T) {
	handler := &recordingHandler{done: make(chan struct{}, 1)}
	cb := New("provider", Config{FailureThreshold: 1, ResetTimeout: time.Minute}, handler, zap.NewNop())

	cb.RecordFailure()

	select {
	case <-handler.done:
	case <-time.After(time.Second):
		t.Fatal("expected a state change event")
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Len(t, handler.events, 1)
	assert.Equal(t, StateClosed, handler.events[0].OldState)
	assert.Equal(t, StateOpen, handler.events[0].NewState)
	assert.Equal(t, "provider", handler.events[0].Service)
}

func TestRegistry_GetOrCreate(t *testing.T) {
	reg := NewRegistry(DefaultConfig(), nil, zap.NewNop())

	a := reg.GetOrCreate("clearbit")
	b := reg.GetOrCreate("clearbit")
	c := reg.GetOrCreate("hunter")

	assert.Same(t, a, b, "same service must share one breaker")
	assert.NotSame(t, a, c)

	states := reg.States()
	assert.Len(t, states, 2)
	assert.Equal(t, StateClosed, states["clearbit"])
}

func TestRegistry_ResetAll(t *testing.T) {
	reg := NewRegistry(Config{FailureThreshold: 1, ResetTimeout: time.Minute}, nil, zap.NewNop())

	cb := reg.GetOrCreate("clearbit")
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.GetState())

	reg.ResetAll()
	assert.Equal(t, StateClosed, cb.GetState())
}
