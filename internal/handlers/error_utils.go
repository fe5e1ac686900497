package handlers

import (
	"errors"
	"fmt"
	"net/http"

	contextutils "complaintdesk/internal/utils"

	"github.com/gin-gonic/gin"
)

// StandardizeHTTPError creates consistent HTTP error responses with structured error information
func StandardizeHTTPError(c *gin.Context, statusCode int, message, details string) {
	// Map HTTP status code to appropriate error code
	var errorCode contextutils.ErrorCode
	var severity contextutils.SeverityLevel

	switch statusCode {
	case http.StatusBadRequest:
		errorCode = contextutils.ErrorCodeInvalidInput
		severity = contextutils.SeverityWarn
	case http.StatusUnauthorized:
		errorCode = contextutils.ErrorCodeUnauthorized
		severity = contextutils.SeverityWarn
	case http.StatusForbidden:
		errorCode = contextutils.ErrorCodeForbidden
		severity = contextutils.SeverityWarn
	case http.StatusNotFound:
		errorCode = contextutils.ErrorCodeRecordNotFound
		severity = contextutils.SeverityInfo
	case http.StatusConflict:
		errorCode = contextutils.ErrorCodeConflict
		severity = contextutils.SeverityInfo
	case http.StatusServiceUnavailable:
		errorCode = contextutils.ErrorCodeServiceUnavailable
		severity = contextutils.SeverityError
	default:
		errorCode = contextutils.ErrorCodeInternalError
		severity = contextutils.SeverityError
	}

	appErr := contextutils.NewAppError(
		errorCode,
		severity,
		message,
		details,
	)

	c.JSON(statusCode, appErr.ToJSON())
}

// StandardizeAppError sends a structured error response using AppError
func StandardizeAppError(c *gin.Context, err *contextutils.AppError) {
	statusCode := mapErrorCodeToHTTPStatus(err.Code)

	errorJSON := err.ToJSON()
	errorJSON["retryable"] = contextutils.IsRetryable(err)

	c.JSON(statusCode, errorJSON)
}

// HandleValidationError handles input validation errors consistently
func HandleValidationError(c *gin.Context, field string, value interface{}, reason string) {
	appErr := contextutils.NewAppError(
		contextutils.ErrorCodeInvalidInput,
		contextutils.SeverityWarn,
		fmt.Sprintf("Invalid %s", field),
		fmt.Sprintf("Value '%v' is invalid: %s", value, reason),
	)

	StandardizeAppError(c, appErr)
}

// HandleAppError handles any AppError and sends appropriate HTTP response
func HandleAppError(c *gin.Context, err error) {
	var appErr *contextutils.AppError
	if errors.As(err, &appErr) {
		StandardizeAppError(c, appErr)
		return
	}
	// Fallback for non-AppError types
	StandardizeHTTPError(c, http.StatusInternalServerError, "Internal server error", err.Error())
}

// mapErrorCodeToHTTPStatus maps AppError codes to appropriate HTTP status codes
func mapErrorCodeToHTTPStatus(code contextutils.ErrorCode) int {
	switch code {
	// 4xx Client Errors
	case contextutils.ErrorCodeInvalidInput, contextutils.ErrorCodeMissingRequired,
		contextutils.ErrorCodeInvalidFormat, contextutils.ErrorCodeValidationFailed:
		return http.StatusBadRequest

	case contextutils.ErrorCodeUnauthorized, contextutils.ErrorCodeSessionExpired,
		contextutils.ErrorCodeInvalidCredentials:
		return http.StatusUnauthorized

	case contextutils.ErrorCodeForbidden:
		return http.StatusForbidden

	case contextutils.ErrorCodeRecordNotFound, contextutils.ErrorCodeComplaintNotFound:
		return http.StatusNotFound

	case contextutils.ErrorCodeRecordExists, contextutils.ErrorCodeConflict,
		contextutils.ErrorCodeInvalidState, contextutils.ErrorCodeInvalidTransition,
		contextutils.ErrorCodeTerminalLevel:
		return http.StatusConflict

	// 5xx Server Errors
	case contextutils.ErrorCodeServiceUnavailable, contextutils.ErrorCodeDatabaseConnection:
		return http.StatusServiceUnavailable

	case contextutils.ErrorCodeTimeout:
		return http.StatusRequestTimeout

	case contextutils.ErrorCodeInternalError, contextutils.ErrorCodeCorruptToken,
		contextutils.ErrorCodeDatabaseQuery, contextutils.ErrorCodeDatabaseTransaction,
		contextutils.ErrorCodeForeignKeyViolation, contextutils.ErrorCodeEmailDeliveryFailed:
		return http.StatusInternalServerError

	// Default to internal server error for unknown codes
	default:
		return http.StatusInternalServerError
	}
}
