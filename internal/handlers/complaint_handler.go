package handlers

import (
	"net/http"

	"complaintdesk/internal/models"
	"complaintdesk/internal/observability"
	"complaintdesk/internal/services"
	contextutils "complaintdesk/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// ComplaintHandler handles complaint lifecycle HTTP requests
type ComplaintHandler struct {
	complaintService *services.ComplaintService
	userService      *services.UserService
	attachments      services.AttachmentStore
	logger           *observability.Logger
}

// NewComplaintHandler creates a new ComplaintHandler instance
func NewComplaintHandler(complaintService *services.ComplaintService, userService *services.UserService, attachments services.AttachmentStore, logger *observability.Logger) *ComplaintHandler {
	return &ComplaintHandler{
		complaintService: complaintService,
		userService:      userService,
		attachments:      attachments,
		logger:           logger,
	}
}

// Submit files a new complaint for the authenticated student.
func (h *ComplaintHandler) Submit(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_complaint")
	defer observability.FinishSpan(span, nil)

	actor, err := CurrentActor(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	if actor.Role != models.RoleStudent {
		HandleAppError(c, contextutils.ErrForbidden)
		return
	}

	var input services.SubmitComplaintInput
	if err := c.ShouldBindJSON(&input); err != nil {
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
		attribute.String("complaint.category", string(input.Category)),
		attribute.Bool("complaint.anonymous", input.IsAnonymous),
	)

	student, err := h.userService.GetUserByID(c.Request.Context(), actor.ID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	complaint, err := h.complaintService.CreateComplaint(c.Request.Context(), student, &input)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(attribute.String("complaint.id", complaint.ComplaintID))
	h.logger.Info(c.Request.Context(), "Complaint submitted", map[string]interface{}{
		"complaint_id": complaint.ComplaintID,
		"category":     string(complaint.Category),
		"anonymous":    complaint.IsAnonymous,
	})

	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"complaint": complaint,
	})
}

// UploadAttachment stores a multipart file and returns its attachment record.
// The returned URL is what clients put in a complaint's attachments array.
func (h *ComplaintHandler) UploadAttachment(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "upload_attachment")
	defer observability.FinishSpan(span, nil)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		HandleValidationError(c, "file", nil, "a multipart file field named 'file' is required")
		return
	}

	span.SetAttributes(
		attribute.String("attachment.filename", fileHeader.Filename),
		attribute.Int64("attachment.size", fileHeader.Size),
	)

	file, err := fileHeader.Open()
	if err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to open uploaded file"))
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn(c.Request.Context(), "Failed to close uploaded file", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	attachment, err := h.attachments.Save(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"attachment": attachment,
	})
}

// AddAttachment stores a multipart file and appends it to an existing
// complaint in one step. Only the complaint's author may add files.
func (h *ComplaintHandler) AddAttachment(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "add_complaint_attachment")
	defer observability.FinishSpan(span, nil)

	actor, err := CurrentActor(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	complaintID := c.Param("complaintId")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		HandleValidationError(c, "file", nil, "a multipart file field named 'file' is required")
		return
	}

	span.SetAttributes(
		observability.AttributeComplaintID(complaintID),
		attribute.String("attachment.filename", fileHeader.Filename),
	)

	file, err := fileHeader.Open()
	if err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to open uploaded file"))
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn(c.Request.Context(), "Failed to close uploaded file", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	attachment, err := h.attachments.Save(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	complaint, err := h.complaintService.AddAttachment(c.Request.Context(), actor, complaintID, attachment)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"complaint": complaint,
	})
}

// List returns complaints visible to the authenticated actor, with optional filters.
func (h *ComplaintHandler) List(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_complaints")
	defer observability.FinishSpan(span, nil)

	actor, err := CurrentActor(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	filters := ParseComplaintFilters(c)

	span.SetAttributes(
		attribute.String("actor.role", string(actor.Role)),
		attribute.String("filter.status", filters.Status),
	)

	complaints, err := h.complaintService.ListForActor(c.Request.Context(), actor, filters)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("complaints.count", len(complaints)))
	c.JSON(http.StatusOK, gin.H{
		"complaints": complaints,
		"count":      len(complaints),
	})
}

// Get returns a single complaint by its public identifier.
func (h *ComplaintHandler) Get(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_complaint")
	defer observability.FinishSpan(span, nil)

	actor, err := CurrentActor(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	complaintID := c.Param("complaintId")
	span.SetAttributes(attribute.String("complaint.id", complaintID))

	complaint, err := h.complaintService.GetForActor(c.Request.Context(), actor, complaintID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"complaint": complaint})
}

// UpdateStatus changes a complaint's status on behalf of a staff handler.
func (h *ComplaintHandler) UpdateStatus(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "update_complaint_status")
	defer observability.FinishSpan(span, nil)

	actor, err := CurrentActor(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req struct {
		Status string `json:"status"`
		Note   string `json:"note"`
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

	complaintID := c.Param("complaintId")
	span.SetAttributes(
		attribute.String("complaint.id", complaintID),
		attribute.String("complaint.new_status", req.Status),
	)

	complaint, err := h.complaintService.UpdateStatus(c.Request.Context(), actor, complaintID, models.Status(req.Status), req.Note)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Info(c.Request.Context(), "Complaint status updated", map[string]interface{}{
		"complaint_id": complaintID,
		"status":       req.Status,
		"actor_id":     actor.ID,
	})

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"complaint": complaint,
	})
}

// Escalate moves a complaint one level up the handling chain.
func (h *ComplaintHandler) Escalate(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "escalate_complaint")
	defer observability.FinishSpan(span, nil)

	actor, err := CurrentActor(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req struct {
		Reason string `json:"reason"`
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

	complaintID := c.Param("complaintId")
	span.SetAttributes(attribute.String("complaint.id", complaintID))

	complaint, err := h.complaintService.Escalate(c.Request.Context(), actor, complaintID, req.Reason)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Info(c.Request.Context(), "Complaint escalated", map[string]interface{}{
		"complaint_id": complaintID,
		"level":        string(complaint.CurrentLevel),
		"actor_id":     actor.ID,
	})

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"complaint": complaint,
	})
}

// Reopen returns a resolved complaint to the start of the handling chain.
func (h *ComplaintHandler) Reopen(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "reopen_complaint")
	defer observability.FinishSpan(span, nil)

	actor, err := CurrentActor(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req struct {
		Reason string `json:"reason"`
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

	complaintID := c.Param("complaintId")
	span.SetAttributes(attribute.String("complaint.id", complaintID))

	complaint, err := h.complaintService.Reopen(c.Request.Context(), actor, complaintID, req.Reason)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"complaint": complaint,
	})
}

// Feedback records the complainant's rating after resolution.
func (h *ComplaintHandler) Feedback(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "complaint_feedback")
	defer observability.FinishSpan(span, nil)

	actor, err := CurrentActor(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
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

	complaintID := c.Param("complaintId")
	span.SetAttributes(
		attribute.String("complaint.id", complaintID),
		attribute.Int("feedback.rating", req.Rating),
	)

	complaint, err := h.complaintService.AttachFeedback(c.Request.Context(), actor, complaintID, req.Rating, req.Comment)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"complaint": complaint,
	})
}

// Stats returns aggregate complaint counts for staff dashboards.
func (h *ComplaintHandler) Stats(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "complaint_stats")
	defer observability.FinishSpan(span, nil)

	actor, err := CurrentActor(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	stats, err := h.complaintService.Stats(c.Request.Context(), actor)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
