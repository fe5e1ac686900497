package handlers

import (
	"net/http"
	"strings"

	"complaintdesk/internal/config"
	"complaintdesk/internal/middleware"
	"complaintdesk/internal/models"
	"complaintdesk/internal/observability"
	"complaintdesk/internal/services"
	contextutils "complaintdesk/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// AuthHandler handles authentication related HTTP requests
type AuthHandler struct {
	userService *services.UserService
	config      *config.Config
	logger      *observability.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(userService *services.UserService, cfg *config.Config, logger *observability.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		config:      cfg,
		logger:      logger,
	}
}

// Login handles user login requests
func (h *AuthHandler) Login(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "login")
	defer observability.FinishSpan(span, nil)

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	span.SetAttributes(
		attribute.String("auth.email", email),
		attribute.Bool("auth.password_provided", req.Password != ""),
	)

	user, err := h.userService.AuthenticateUser(c.Request.Context(), email, req.Password)
	if err != nil {
		h.logger.Warn(c.Request.Context(), "Authentication failed", map[string]interface{}{"email": email, "error": err.Error()})
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", user.ID),
		attribute.String("user.role", string(user.Role)),
	)

	session := sessions.Default(c)
	session.Set(middleware.UserIDKey, user.ID)
	session.Set(middleware.UserNameKey, user.Name)
	session.Set(middleware.UserRoleKey, string(user.Role))

	if err := session.Save(); err != nil {
		h.logger.Error(c.Request.Context(), "Failed to save session", err, map[string]interface{}{"user_id": user.ID})
		HandleAppError(c, contextutils.WrapError(err, "failed to create session"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"user":    user,
	})
}

// Logout handles user logout requests
func (h *AuthHandler) Logout(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "logout")
	defer observability.FinishSpan(span, nil)

	session := sessions.Default(c)
	if userID := session.Get(middleware.UserIDKey); userID != nil {
		if id, ok := userID.(int); ok {
			span.SetAttributes(attribute.Int("user.id", id))
		}
	}

	session.Clear()
	if err := session.Save(); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to clear session"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logout successful",
	})
}

// Status returns the current authentication status
func (h *AuthHandler) Status(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "status")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		span.SetAttributes(attribute.Bool("auth.authenticated", false))
		c.JSON(http.StatusOK, gin.H{
			"authenticated": false,
			"user":          nil,
		})
		return
	}

	span.SetAttributes(
		attribute.Bool("auth.authenticated", true),
		attribute.Int("user.id", userID),
	)

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if contextutils.GetErrorCode(err) == contextutils.ErrorCodeRecordNotFound {
			// User deleted out from under an active session
			session := sessions.Default(c)
			session.Clear()
			if saveErr := session.Save(); saveErr != nil {
				h.logger.Error(c.Request.Context(), "Error clearing stale session", saveErr, map[string]interface{}{"user_id": userID})
			}
			span.SetAttributes(attribute.Bool("auth.user_found", false))
			c.JSON(http.StatusOK, gin.H{
				"authenticated": false,
				"user":          nil,
			})
			return
		}
		h.logger.Error(c.Request.Context(), "Error getting user by ID", err, map[string]interface{}{"user_id": userID})
		HandleAppError(c, contextutils.ErrInternalError)
		return
	}

	span.SetAttributes(
		attribute.Bool("auth.user_found", true),
		attribute.String("user.role", string(user.Role)),
	)

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          user,
	})
}

// Signup handles self-service registration requests
func (h *AuthHandler) Signup(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "signup")
	defer observability.FinishSpan(span, nil)

	var req services.RegisterUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return
	}

	span.SetAttributes(
		attribute.String("signup.role", string(req.Role)),
		attribute.Bool("signup.email_provided", req.Email != ""),
	)

	user, err := h.userService.RegisterUser(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn(c.Request.Context(), "Signup rejected", map[string]interface{}{"email": req.Email, "role": string(req.Role), "error": err.Error()})
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", user.ID),
		attribute.String("user.registration_status", user.RegistrationStatus),
	)

	h.logger.Info(c.Request.Context(), "User registered", map[string]interface{}{
		"user_id": user.ID,
		"role":    string(user.Role),
		"status":  user.RegistrationStatus,
	})

	message := "Account created successfully. Please log in."
	if user.RegistrationStatus == models.RegistrationPending {
		message = "Registration submitted. A department head must approve your account before you can log in."
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": message,
		"user":    user,
	})
}

// Check is a lightweight auth-check endpoint intended for reverse proxy auth_request.
// It requires authentication via middleware and returns 204 when authenticated.
func (h *AuthHandler) Check(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
