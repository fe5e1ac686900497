package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	contextutils "complaintdesk/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		code contextutils.ErrorCode
		want int
	}{
		{"validation failed", contextutils.ErrorCodeValidationFailed, http.StatusBadRequest},
		{"invalid input", contextutils.ErrorCodeInvalidInput, http.StatusBadRequest},
		{"unauthorized", contextutils.ErrorCodeUnauthorized, http.StatusUnauthorized},
		{"invalid credentials", contextutils.ErrorCodeInvalidCredentials, http.StatusUnauthorized},
		{"forbidden", contextutils.ErrorCodeForbidden, http.StatusForbidden},
		{"complaint not found", contextutils.ErrorCodeComplaintNotFound, http.StatusNotFound},
		{"record not found", contextutils.ErrorCodeRecordNotFound, http.StatusNotFound},
		{"record exists", contextutils.ErrorCodeRecordExists, http.StatusConflict},
		{"invalid state", contextutils.ErrorCodeInvalidState, http.StatusConflict},
		{"invalid transition", contextutils.ErrorCodeInvalidTransition, http.StatusConflict},
		{"terminal level", contextutils.ErrorCodeTerminalLevel, http.StatusConflict},
		{"corrupt token stays opaque", contextutils.ErrorCodeCorruptToken, http.StatusInternalServerError},
		{"email delivery", contextutils.ErrorCodeEmailDeliveryFailed, http.StatusInternalServerError},
		{"unknown code", contextutils.ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestHandleAppError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("app error maps code and body", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		HandleAppError(c, contextutils.ErrForbidden)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "FORBIDDEN")
		assert.Contains(t, w.Body.String(), "retryable")
	})

	t.Run("wrapped app error keeps its code", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		err := contextutils.WrapError(contextutils.ErrComplaintNotFound, "lookup failed")
		HandleAppError(c, err)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "COMPLAINT_NOT_FOUND")
	})

	t.Run("plain error falls back to 500", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		HandleAppError(c, errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
