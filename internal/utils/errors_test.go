package contextutils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		expected string
	}{
		{
			name: "error with details",
			appError: &AppError{
				Code:     ErrorCodeInvalidInput,
				Severity: SeverityError,
				Message:  "Invalid input",
				Details:  "Field 'rating' is required",
			},
			expected: "INVALID_INPUT: Invalid input - Field 'rating' is required",
		},
		{
			name: "error without details",
			appError: &AppError{
				Code:     ErrorCodeComplaintNotFound,
				Severity: SeverityInfo,
				Message:  "Complaint not found",
			},
			expected: "COMPLAINT_NOT_FOUND: Complaint not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appError.Error())
		})
	}
}

func TestAppError_Is(t *testing.T) {
	err := WrapError(ErrTerminalLevel, "escalating past hod")
	assert.True(t, errors.Is(err, ErrTerminalLevel))
	assert.False(t, errors.Is(err, ErrInvalidState))
}

func TestWrapError(t *testing.T) {
	t.Run("preserves AppError code", func(t *testing.T) {
		wrapped := WrapError(ErrInvalidState, "cannot reopen")
		appErr, ok := wrapped.(*AppError)
		assert.True(t, ok)
		assert.Equal(t, ErrorCodeInvalidState, appErr.Code)
		assert.Equal(t, "cannot reopen", appErr.Message)
	})

	t.Run("wraps plain error as internal", func(t *testing.T) {
		wrapped := WrapError(errors.New("boom"), "query failed")
		appErr, ok := wrapped.(*AppError)
		assert.True(t, ok)
		assert.Equal(t, ErrorCodeInternalError, appErr.Code)
		assert.Equal(t, "boom", appErr.Details)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, WrapError(nil, "context"))
	})
}

func TestWrapErrorf(t *testing.T) {
	wrapped := WrapErrorf(ErrCorruptToken, "reveal failed for complaint %s", "ECE-COMP-2025-ABCD1234")
	appErr, ok := wrapped.(*AppError)
	assert.True(t, ok)
	assert.Equal(t, ErrorCodeCorruptToken, appErr.Code)
	assert.Contains(t, appErr.Message, "ECE-COMP-2025-ABCD1234")
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrorCodeTerminalLevel, GetErrorCode(ErrTerminalLevel))
	assert.Equal(t, ErrorCodeInternalError, GetErrorCode(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrEmailDeliveryFailed))
	assert.True(t, IsRetryable(ErrTimeout))
	assert.False(t, IsRetryable(ErrInvalidState))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestToJSON(t *testing.T) {
	payload := ErrTerminalLevel.ToJSON()
	assert.Equal(t, "TERMINAL_LEVEL", payload["code"])
	assert.Equal(t, ErrTerminalLevel.Message, payload["message"])
	assert.Equal(t, false, payload["retryable"])
}

func TestUserIDContext(t *testing.T) {
	ctx := WithUserID(context.Background(), 42)
	assert.Equal(t, 42, GetUserIDFromContext(ctx))
	assert.Equal(t, 0, GetUserIDFromContext(context.Background()))
}
