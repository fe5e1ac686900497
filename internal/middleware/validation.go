package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"complaintdesk/internal/observability"

	"github.com/gin-gonic/gin"
)

// Global schema loader instance
var globalSchemaLoader *SchemaLoader

// initSchemaLoader initializes the global schema loader once
func initSchemaLoader() *SchemaLoader {
	if globalSchemaLoader == nil {
		globalSchemaLoader = NewSchemaLoader()
	}
	return globalSchemaLoader
}

// ValidateRequest returns middleware that validates the JSON request body
// against the named schema before the handler runs. The body is restored
// for the handler to bind.
func ValidateRequest(logger *observability.Logger, schemaName string) gin.HandlerFunc {
	schemaLoader := initSchemaLoader()
	if !schemaLoader.HasSchema(schemaName) {
		panic("unknown request schema: " + schemaName)
	}

	return func(c *gin.Context) {
		ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "request_validation")
		defer span.End()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Failed to read request body",
				"code":  "INVALID_INPUT",
			})
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		var data interface{}
		if err := json.Unmarshal(body, &data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Request body is not valid JSON",
				"code":  "INVALID_INPUT",
			})
			c.Abort()
			return
		}

		if err := schemaLoader.ValidateData(data, schemaName); err != nil {
			logger.Warn(ctx, "Request validation failed", map[string]interface{}{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"schema": schemaName,
				"error":  err.Error(),
			})
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Request validation failed",
				"code":    "VALIDATION_FAILED",
				"details": err.Error(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
