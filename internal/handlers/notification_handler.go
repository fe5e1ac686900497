package handlers

import (
	"net/http"
	"strconv"

	"complaintdesk/internal/observability"
	"complaintdesk/internal/services"
	contextutils "complaintdesk/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// NotificationHandler handles in-app notification HTTP requests
type NotificationHandler struct {
	notificationService *services.NotificationService
	logger              *observability.Logger
}

// NewNotificationHandler creates a new NotificationHandler instance
func NewNotificationHandler(notificationService *services.NotificationService, logger *observability.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// List returns the current user's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_notifications")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	unreadOnly := c.Query("unread") == "true"
	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.Bool("notifications.unread_only", unreadOnly),
	)

	notifications, err := h.notificationService.ListForUser(c.Request.Context(), userID, unreadOnly)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// UnreadCount returns the number of unread notifications for badge display.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "unread_count")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	count, err := h.notificationService.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("notifications.unread", count))
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// MarkRead marks a single notification as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "mark_notification_read")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	notificationID, err := strconv.Atoi(c.Param("notificationId"))
	if err != nil {
		HandleValidationError(c, "notificationId", c.Param("notificationId"), "must be an integer")
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.Int("notification.id", notificationID),
	)

	if err := h.notificationService.MarkRead(c.Request.Context(), userID, notificationID); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MarkAllRead marks every notification for the current user as read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "mark_all_notifications_read")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	span.SetAttributes(attribute.Int("user.id", userID))

	if err := h.notificationService.MarkAllRead(c.Request.Context(), userID); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
