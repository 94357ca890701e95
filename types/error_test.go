package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  NewError(ErrValidation, "edge references missing node"),
			want: "[VALIDATION] edge references missing node",
		},
		{
			name: "with cause",
			err:  NewError(ErrUpstreamError, "profile lookup failed").WithCause(errors.New("connection refused")),
			want: "[UPSTREAM_ERROR] profile lookup failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(ErrExecution, "block failed").WithCause(cause)

	require.ErrorIs(t, err, cause)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewError(ErrRateLimited, "throttled").WithRetryable(true)))
	assert.False(t, IsRetryable(NewError(ErrValidation, "bad config")))
	assert.False(t, IsRetryable(errors.New("plain error")))

	// Wrapped structured errors are still recognized.
	wrapped := fmt.Errorf("outer: %w", NewError(ErrTimeout, "deadline").WithRetryable(true))
	assert.True(t, IsRetryable(wrapped))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrJobConflict, GetErrorCode(NewError(ErrJobConflict, "already processing")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.True(t, IsErrorCode(NewError(ErrCircuitOpen, "open"), ErrCircuitOpen))
}
