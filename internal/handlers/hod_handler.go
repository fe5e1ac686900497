package handlers

import (
	"net/http"
	"strconv"

	"complaintdesk/internal/models"
	"complaintdesk/internal/observability"
	"complaintdesk/internal/services"
	contextutils "complaintdesk/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// HodHandler handles department-head administrative HTTP requests
type HodHandler struct {
	complaintService *services.ComplaintService
	userService      *services.UserService
	auditService     *services.AuditService
	logger           *observability.Logger
}

// NewHodHandler creates a new HodHandler instance
func NewHodHandler(complaintService *services.ComplaintService, userService *services.UserService, auditService *services.AuditService, logger *observability.Logger) *HodHandler {
	return &HodHandler{
		complaintService: complaintService,
		userService:      userService,
		auditService:     auditService,
		logger:           logger,
	}
}

// RevealIdentity discloses the author of an anonymous complaint.
// Every successful reveal is written to the audit log before any
// identity leaves the server.
func (h *HodHandler) RevealIdentity(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "reveal_identity")
	defer observability.FinishSpan(span, nil)

	actor, err := CurrentActor(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	complaintID := c.Param("complaintId")
	span.SetAttributes(
		attribute.String("complaint.id", complaintID),
		attribute.Int("actor.id", actor.ID),
	)

	student, err := h.complaintService.RevealIdentity(c.Request.Context(), actor, complaintID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Info(c.Request.Context(), "Anonymous identity revealed", map[string]interface{}{
		"complaint_id": complaintID,
		"revealed_by":  actor.ID,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"student": student,
	})
}

// Pool lists unassigned complaints waiting at the department-head level.
func (h *HodHandler) Pool(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "hod_pool")
	defer observability.FinishSpan(span, nil)

	actor, err := CurrentActor(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	complaints, err := h.complaintService.ListHodPool(c.Request.Context(), actor)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("pool.count", len(complaints)))
	c.JSON(http.StatusOK, gin.H{
		"complaints": complaints,
		"count":      len(complaints),
	})
}

// PendingRegistrations lists staff signups awaiting approval.
func (h *HodHandler) PendingRegistrations(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "pending_registrations")
	defer observability.FinishSpan(span, nil)

	actor, err := CurrentActor(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	users, err := h.userService.ListPendingRegistrations(c.Request.Context(), actor)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("registrations.pending", len(users)))
	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

// DecideRegistration approves or rejects a pending staff signup.
func (h *HodHandler) DecideRegistration(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "decide_registration")
	defer observability.FinishSpan(span, nil)

	actor, err := CurrentActor(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		HandleValidationError(c, "userId", c.Param("userId"), "must be an integer")
		return
	}

	var req struct {
		Approve bool `json:"approve"`
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

	span.SetAttributes(
		attribute.Int("registration.user_id", userID),
		attribute.Bool("registration.approved", req.Approve),
	)

	user, err := h.userService.DecideRegistration(c.Request.Context(), actor, userID, req.Approve)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Info(c.Request.Context(), "Registration decided", map[string]interface{}{
		"user_id":  userID,
		"approved": req.Approve,
		"actor_id": actor.ID,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
	})
}

// UpdateAssignments changes a student's assigned teacher and mentor.
func (h *HodHandler) UpdateAssignments(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "update_assignments")
	defer observability.FinishSpan(span, nil)

	actor, err := CurrentActor(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	studentID, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		HandleValidationError(c, "userId", c.Param("userId"), "must be an integer")
		return
	}

	var req struct {
		AssignedTeacher int `json:"assigned_teacher"`
		AssignedMentor  int `json:"assigned_mentor"`
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

	span.SetAttributes(
		attribute.Int("student.id", studentID),
		attribute.Int("assignment.teacher", req.AssignedTeacher),
		attribute.Int("assignment.mentor", req.AssignedMentor),
	)

	if err := h.userService.UpdateAssignments(c.Request.Context(), actor, studentID, req.AssignedTeacher, req.AssignedMentor); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListUsers returns users of a given role for assignment pickers.
func (h *HodHandler) ListUsers(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_users")
	defer observability.FinishSpan(span, nil)

	role := c.Query("role")
	if !models.ValidRole(role) {
		HandleValidationError(c, "role", role, "must be one of student, teacher, mentor, hod")
		return
	}
	span.SetAttributes(attribute.String("users.role", role))

	users, err := h.userService.ListByRole(c.Request.Context(), models.Role(role))
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

// SetUserActive enables or disables a user account.
func (h *HodHandler) SetUserActive(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "set_user_active")
	defer observability.FinishSpan(span, nil)

	actor, err := CurrentActor(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		HandleValidationError(c, "userId", c.Param("userId"), "must be an integer")
		return
	}

	var req struct {
		Active bool `json:"active"`
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

	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.Bool("user.active", req.Active),
	)

	if err := h.userService.SetActive(c.Request.Context(), actor, userID, req.Active); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AuditLog returns recent audit entries, or entries for one complaint
// when the complaint query parameter is set.
func (h *HodHandler) AuditLog(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "audit_log")
	defer observability.FinishSpan(span, nil)

	if complaintID := c.Query("complaint"); complaintID != "" {
		complaint, err := h.complaintService.GetByComplaintID(c.Request.Context(), complaintID)
		if err != nil {
			HandleAppError(c, err)
			return
		}
		entries, err := h.auditService.ListForComplaint(c.Request.Context(), complaint.ID)
		if err != nil {
			HandleAppError(c, err)
			return
		}
		span.SetAttributes(attribute.String("audit.complaint_id", complaintID))
		c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 0 {
			HandleValidationError(c, "limit", raw, "must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := h.auditService.ListRecent(c.Request.Context(), limit)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("audit.count", len(entries)))
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}
