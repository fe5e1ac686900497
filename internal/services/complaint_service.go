package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"complaintdesk/internal/config"
	"complaintdesk/internal/models"
	"complaintdesk/internal/observability"
	contextutils "complaintdesk/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// complaintColumns is the canonical select list for complaint rows. Every
// read path uses it so scanComplaint stays in sync.
const complaintColumns = `id, complaint_id, student_id, student_name, is_anonymous, identity_token,
	title, description, category, priority, attachments,
	current_level, assigned_to, assigned_teacher, assigned_mentor, status,
	resolution_notes, escalation_history,
	is_reopened, reopen_reason, reopened_at, reopen_count,
	feedback, resolved_at, created_at, updated_at`

// SubmitComplaintInput carries a new complaint from the transport layer.
type SubmitComplaintInput struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    models.Category     `json:"category"`
	Priority    models.Priority     `json:"priority"`
	IsAnonymous bool                `json:"is_anonymous"`
	Attachments []models.Attachment `json:"attachments"`
}

// ComplaintFilters narrows list queries. Zero values mean "no filter".
type ComplaintFilters struct {
	Status   string
	Category string
	Priority string
	Limit    int
	Offset   int
}

// ComplaintStats summarizes complaint counts for dashboards.
type ComplaintStats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByCategory map[string]int `json:"by_category"`
	Reopened   int            `json:"reopened"`
}

// ComplaintService owns the complaint lifecycle: submission, routing,
// status changes, escalation, reopening and feedback. All state machine
// checks live in the lifecycle functions; this service applies them and
// persists the result.
type ComplaintService struct {
	db       *sql.DB
	logger   *observability.Logger
	cfg      *config.Config
	identity *IdentityService
	notifier *NotificationService
}

// NewComplaintService creates a new ComplaintService instance.
func NewComplaintService(db *sql.DB, logger *observability.Logger, cfg *config.Config, identity *IdentityService, notifier *NotificationService) *ComplaintService {
	if db == nil {
		panic("NewComplaintService: db is nil")
	}
	if logger == nil {
		panic("NewComplaintService: logger is nil")
	}
	return &ComplaintService{db: db, logger: logger, cfg: cfg, identity: identity, notifier: notifier}
}

// CreateComplaint validates and stores a new complaint, routed to the
// student's assigned teacher at the teacher level. For anonymous
// complaints only the encrypted identity token references the author.
func (s *ComplaintService) CreateComplaint(ctx context.Context, student *models.User, input *SubmitComplaintInput) (result0 *models.Complaint, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "create_complaint",
		attribute.Bool("complaint.anonymous", input.IsAnonymous),
		attribute.String("complaint.category", string(input.Category)),
	)
	defer observability.FinishSpan(span, &err)

	if student.Role != models.RoleStudent {
		return nil, contextutils.ErrForbidden
	}
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Description) == "" {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "title and description are required")
	}
	if len(input.Title) > 200 || len(input.Description) > 2000 {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "title or description exceeds the maximum length")
	}
	if !models.ValidCategory(string(input.Category)) {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "unknown category: %s", input.Category)
	}
	priority := input.Priority
	if priority == "" {
		priority = models.Priority(config.DefaultPriority)
	}
	if !models.ValidPriority(string(priority)) {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "unknown priority: %s", priority)
	}
	if !student.AssignedTeacher.Valid {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "student has no assigned teacher to route the complaint to")
	}

	c := &models.Complaint{
		ComplaintID:     models.NewComplaintID(s.cfg.Server.Department, time.Now()),
		StudentName:     student.Name,
		IsAnonymous:     input.IsAnonymous,
		Title:           strings.TrimSpace(input.Title),
		Description:     input.Description,
		Category:        input.Category,
		Priority:        priority,
		Attachments:     input.Attachments,
		CurrentLevel:    models.LevelTeacher,
		AssignedTo:      student.AssignedTeacher,
		AssignedTeacher: student.AssignedTeacher,
		AssignedMentor:  student.AssignedMentor,
		Status:          models.StatusPending,
	}
	if input.IsAnonymous {
		c.StudentName = config.AnonymousDisplayName
		token, terr := s.identity.Anonymize(ctx, student.ID)
		if terr != nil {
			return nil, terr
		}
		c.IdentityToken = sql.NullString{String: token, Valid: true}
	} else {
		c.StudentID = sql.NullInt32{Int32: int32(student.ID), Valid: true}
	}

	attachmentsJSON, err := json.Marshal(emptyIfNil(c.Attachments))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to marshal attachments")
	}

	query := `INSERT INTO complaints
		(complaint_id, student_id, student_name, is_anonymous, identity_token,
		 title, description, category, priority, attachments,
		 current_level, assigned_to, assigned_teacher, assigned_mentor, status,
		 resolution_notes, escalation_history, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,'[]','[]',$16,$16)
		RETURNING id, created_at, updated_at`
	now := time.Now()
	err = s.db.QueryRowContext(ctx, query,
		c.ComplaintID, c.StudentID, c.StudentName, c.IsAnonymous, c.IdentityToken,
		c.Title, c.Description, c.Category, c.Priority, attachmentsJSON,
		c.CurrentLevel, c.AssignedTo, c.AssignedTeacher, c.AssignedMentor, c.Status,
		now).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert complaint")
	}

	s.logger.Info(ctx, "Complaint created", map[string]interface{}{
		"complaint_id": c.ComplaintID,
		"category":     c.Category,
		"anonymous":    c.IsAnonymous,
	})

	s.notify(ctx, TransitionEvent{
		Kind:      TransitionSubmitted,
		Complaint: c,
		Actor:     student.Actor(),
		StudentID: student.ID,
	})
	return c, nil
}

// GetByComplaintID loads one complaint by its human-readable identifier.
func (s *ComplaintService) GetByComplaintID(ctx context.Context, complaintID string) (result0 *models.Complaint, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "get_complaint",
		observability.AttributeComplaintID(complaintID))
	defer observability.FinishSpan(span, &err)

	query := fmt.Sprintf(`SELECT %s FROM complaints WHERE complaint_id = $1`, complaintColumns)
	row := s.db.QueryRowContext(ctx, query, complaintID)
	return scanComplaint(row)
}

// GetForActor loads a complaint and enforces the read-access policy for
// the actor. Inaccessible complaints surface as forbidden, not as absent.
func (s *ComplaintService) GetForActor(ctx context.Context, actor models.Actor, complaintID string) (result0 *models.Complaint, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "get_complaint_for_actor",
		observability.AttributeComplaintID(complaintID),
		observability.AttributeRole(string(actor.Role)),
	)
	defer observability.FinishSpan(span, &err)

	c, err := s.GetByComplaintID(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	isOwner, err := s.resolveOwnership(ctx, actor, c)
	if err != nil {
		return nil, err
	}
	if !CanAccess(actor, c, isOwner) {
		return nil, contextutils.ErrForbidden
	}
	return c, nil
}

// ListForActor returns the complaints visible to the actor, newest first.
// Students see their own complaints, staff see their assignment queue,
// the HOD sees the whole department.
func (s *ComplaintService) ListForActor(ctx context.Context, actor models.Actor, filters ComplaintFilters) (result0 []*models.Complaint, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "list_complaints",
		observability.AttributeRole(string(actor.Role)))
	defer observability.FinishSpan(span, &err)

	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch actor.Role {
	case models.RoleStudent:
		// Anonymous complaints carry no student_id; they are matched
		// against the identity token after the query.
		where = append(where, fmt.Sprintf("(student_id = %s OR is_anonymous = TRUE)", arg(actor.ID)))
	case models.RoleTeacher:
		where = append(where, fmt.Sprintf("(assigned_to = %s OR assigned_teacher = %s)", arg(actor.ID), arg(actor.ID)))
	case models.RoleMentor:
		where = append(where, fmt.Sprintf("(assigned_to = %s OR assigned_mentor = %s)", arg(actor.ID), arg(actor.ID)))
	case models.RoleHod:
		// no restriction
	default:
		return nil, contextutils.ErrForbidden
	}

	if filters.Status != "" {
		if !models.ValidStatus(filters.Status) {
			return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "unknown status: %s", filters.Status)
		}
		where = append(where, fmt.Sprintf("status = %s", arg(filters.Status)))
	}
	if filters.Category != "" {
		if !models.ValidCategory(filters.Category) {
			return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "unknown category: %s", filters.Category)
		}
		where = append(where, fmt.Sprintf("category = %s", arg(filters.Category)))
	}
	if filters.Priority != "" {
		if !models.ValidPriority(filters.Priority) {
			return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "unknown priority: %s", filters.Priority)
		}
		where = append(where, fmt.Sprintf("priority = %s", arg(filters.Priority)))
	}

	query := fmt.Sprintf("SELECT %s FROM complaints", complaintColumns)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %s", arg(filters.Limit))
		if filters.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %s", arg(filters.Offset))
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query complaints")
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": cerr.Error()})
		}
	}()

	var complaints []*models.Complaint
	for rows.Next() {
		c, serr := scanComplaint(rows)
		if serr != nil {
			return nil, serr
		}
		if actor.Role == models.RoleStudent && c.IsAnonymous {
			owns, merr := s.resolveOwnership(ctx, actor, c)
			if merr != nil || !owns {
				continue
			}
		}
		complaints = append(complaints, c)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate complaints")
	}
	return complaints, nil
}

// ListHodPool returns unclaimed complaints sitting at the HOD level.
func (s *ComplaintService) ListHodPool(ctx context.Context, actor models.Actor) (result0 []*models.Complaint, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "list_hod_pool")
	defer observability.FinishSpan(span, &err)

	if actor.Role != models.RoleHod {
		return nil, contextutils.ErrForbidden
	}
	query := fmt.Sprintf(`SELECT %s FROM complaints
		WHERE current_level = $1 AND assigned_to IS NULL
		ORDER BY created_at DESC`, complaintColumns)
	rows, err := s.db.QueryContext(ctx, query, models.LevelHod)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query hod pool")
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": cerr.Error()})
		}
	}()

	var complaints []*models.Complaint
	for rows.Next() {
		c, serr := scanComplaint(rows)
		if serr != nil {
			return nil, serr
		}
		complaints = append(complaints, c)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate hod pool")
	}
	return complaints, nil
}

// UpdateStatus applies a direct status change by a handler, appending a
// resolution note in the same transaction as the status write.
func (s *ComplaintService) UpdateStatus(ctx context.Context, actor models.Actor, complaintID string, newStatus models.Status, note string) (result0 *models.Complaint, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "update_status",
		observability.AttributeComplaintID(complaintID),
		observability.AttributeStatus(string(newStatus)),
	)
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error(ctx, "Failed to rollback transaction", rollbackErr, map[string]interface{}{"complaint_id": complaintID})
			}
		}
	}()

	c, err := lockComplaint(ctx, tx, complaintID)
	if err != nil {
		return nil, err
	}
	oldStatus := c.Status
	if err = EnsureCanUpdateStatus(actor, c, newStatus); err != nil {
		return nil, err
	}

	c.ResolutionNotes = append(c.ResolutionNotes, models.ResolutionNote{
		ResolvedBy:   actor.ID,
		ResolverName: actor.Name,
		Role:         actor.Role,
		Note:         note,
		Action:       fmt.Sprintf("Status changed to %s", newStatus),
		Timestamp:    time.Now(),
	})
	notesJSON, err := json.Marshal(c.ResolutionNotes)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to marshal resolution notes")
	}

	c.Status = newStatus
	now := time.Now()
	if newStatus.IsSettled() {
		c.ResolvedAt = sql.NullTime{Time: now, Valid: true}
	} else {
		c.ResolvedAt = sql.NullTime{}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE complaints SET status = $1, resolution_notes = $2, resolved_at = $3, updated_at = $4 WHERE id = $5`,
		c.Status, notesJSON, c.ResolvedAt, now, c.ID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to update complaint status")
	}
	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapError(err, "failed to commit transaction")
	}
	c.UpdatedAt = now

	s.logger.Info(ctx, "Complaint status updated", map[string]interface{}{
		"complaint_id": c.ComplaintID,
		"from":         oldStatus,
		"to":           c.Status,
		"by":           actor.ID,
	})

	s.notify(ctx, TransitionEvent{
		Kind:      TransitionStatusChanged,
		Complaint: c,
		Actor:     actor,
		OldStatus: oldStatus,
		NewStatus: c.Status,
		Note:      note,
	})
	return c, nil
}

// Escalate advances a complaint exactly one level up the hierarchy:
// teacher to the student's mentor, mentor to the HOD pool. The escalation
// history entry is written in the same transaction as the move.
func (s *ComplaintService) Escalate(ctx context.Context, actor models.Actor, complaintID, reason string) (result0 *models.Complaint, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "escalate_complaint",
		observability.AttributeComplaintID(complaintID))
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(reason) == "" {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "an escalation reason is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error(ctx, "Failed to rollback transaction", rollbackErr, map[string]interface{}{"complaint_id": complaintID})
			}
		}
	}()

	c, err := lockComplaint(ctx, tx, complaintID)
	if err != nil {
		return nil, err
	}
	if err = EnsureCanEscalate(actor, c); err != nil {
		return nil, err
	}
	fromLevel := c.CurrentLevel
	nextLevel, assignee, err := EscalationTarget(c)
	if err != nil {
		return nil, err
	}

	c.EscalationHistory = append(c.EscalationHistory, models.EscalationEntry{
		From:        fromLevel,
		To:          nextLevel,
		Reason:      reason,
		EscalatedBy: actor.ID,
		Timestamp:   time.Now(),
	})
	historyJSON, err := json.Marshal(c.EscalationHistory)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to marshal escalation history")
	}

	c.CurrentLevel = nextLevel
	c.AssignedTo = assignee
	c.Status = models.StatusEscalated
	now := time.Now()

	_, err = tx.ExecContext(ctx,
		`UPDATE complaints SET current_level = $1, assigned_to = $2, status = $3, escalation_history = $4, updated_at = $5 WHERE id = $6`,
		c.CurrentLevel, c.AssignedTo, c.Status, historyJSON, now, c.ID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to escalate complaint")
	}
	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapError(err, "failed to commit transaction")
	}
	c.UpdatedAt = now

	s.logger.Info(ctx, "Complaint escalated", map[string]interface{}{
		"complaint_id": c.ComplaintID,
		"from":         fromLevel,
		"to":           c.CurrentLevel,
		"by":           actor.ID,
	})

	s.notify(ctx, TransitionEvent{
		Kind:      TransitionEscalated,
		Complaint: c,
		Actor:     actor,
		FromLevel: fromLevel,
		ToLevel:   c.CurrentLevel,
		Reason:    reason,
	})
	return c, nil
}

// Reopen returns a resolved complaint to the original teacher. Only the
// complaint's author may reopen; for anonymous complaints authorship is
// proven through the identity token without revealing it.
func (s *ComplaintService) Reopen(ctx context.Context, actor models.Actor, complaintID, reason string) (result0 *models.Complaint, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "reopen_complaint",
		observability.AttributeComplaintID(complaintID))
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(reason) == "" {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "a reopen reason is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error(ctx, "Failed to rollback transaction", rollbackErr, map[string]interface{}{"complaint_id": complaintID})
			}
		}
	}()

	c, err := lockComplaint(ctx, tx, complaintID)
	if err != nil {
		return nil, err
	}
	isOwner, err := s.resolveOwnership(ctx, actor, c)
	if err != nil {
		return nil, err
	}
	if err = EnsureCanReopen(c, isOwner); err != nil {
		return nil, err
	}

	now := time.Now()
	c.Status = models.StatusReopened
	c.CurrentLevel = models.LevelTeacher
	c.AssignedTo = c.AssignedTeacher
	c.IsReopened = true
	c.ReopenReason = sql.NullString{String: reason, Valid: true}
	c.ReopenedAt = sql.NullTime{Time: now, Valid: true}
	c.ReopenCount++
	c.ResolvedAt = sql.NullTime{}
	c.Feedback = nil

	_, err = tx.ExecContext(ctx,
		`UPDATE complaints SET status = $1, current_level = $2, assigned_to = $3,
			is_reopened = TRUE, reopen_reason = $4, reopened_at = $5, reopen_count = reopen_count + 1,
			resolved_at = NULL, feedback = NULL, updated_at = $5
		 WHERE id = $6`,
		c.Status, c.CurrentLevel, c.AssignedTo, c.ReopenReason, now, c.ID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to reopen complaint")
	}
	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapError(err, "failed to commit transaction")
	}
	c.UpdatedAt = now

	s.logger.Info(ctx, "Complaint reopened", map[string]interface{}{
		"complaint_id": c.ComplaintID,
		"reopen_count": c.ReopenCount,
	})

	s.notify(ctx, TransitionEvent{
		Kind:      TransitionReopened,
		Complaint: c,
		Actor:     actor,
		Reason:    reason,
	})
	return c, nil
}

// AttachFeedback records the author's rating of a resolved complaint.
// Submitting again overwrites the previous rating.
func (s *ComplaintService) AttachFeedback(ctx context.Context, actor models.Actor, complaintID string, rating int, comment string) (result0 *models.Complaint, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "attach_feedback",
		observability.AttributeComplaintID(complaintID),
		attribute.Int("feedback.rating", rating),
	)
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error(ctx, "Failed to rollback transaction", rollbackErr, map[string]interface{}{"complaint_id": complaintID})
			}
		}
	}()

	c, err := lockComplaint(ctx, tx, complaintID)
	if err != nil {
		return nil, err
	}
	isOwner, err := s.resolveOwnership(ctx, actor, c)
	if err != nil {
		return nil, err
	}
	if err = EnsureCanLeaveFeedback(c, isOwner, rating); err != nil {
		return nil, err
	}

	c.Feedback = &models.Feedback{
		Rating:      rating,
		Comment:     comment,
		SubmittedAt: time.Now(),
	}
	feedbackJSON, err := json.Marshal(c.Feedback)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to marshal feedback")
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE complaints SET feedback = $1, updated_at = $2 WHERE id = $3`,
		feedbackJSON, now, c.ID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to store feedback")
	}
	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapError(err, "failed to commit transaction")
	}
	c.UpdatedAt = now

	s.notify(ctx, TransitionEvent{
		Kind:      TransitionFeedback,
		Complaint: c,
		Actor:     actor,
	})
	return c, nil
}

// AddAttachment appends a supporting file to an existing complaint. The
// attachments column is append-only; entries are never replaced or removed.
func (s *ComplaintService) AddAttachment(ctx context.Context, actor models.Actor, complaintID string, att models.Attachment) (result0 *models.Complaint, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "add_attachment",
		observability.AttributeComplaintID(complaintID),
		attribute.String("attachment.filename", att.Filename),
	)
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error(ctx, "Failed to rollback transaction", rollbackErr, map[string]interface{}{"complaint_id": complaintID})
			}
		}
	}()

	c, err := lockComplaint(ctx, tx, complaintID)
	if err != nil {
		return nil, err
	}
	isOwner, err := s.resolveOwnership(ctx, actor, c)
	if err != nil {
		return nil, err
	}
	if err = EnsureCanAddAttachment(c, isOwner); err != nil {
		return nil, err
	}

	c.Attachments = append(c.Attachments, att)
	attachmentsJSON, err := json.Marshal(c.Attachments)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to marshal attachments")
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE complaints SET attachments = $1, updated_at = $2 WHERE id = $3`,
		attachmentsJSON, now, c.ID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to store attachment")
	}
	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapError(err, "failed to commit transaction")
	}
	c.UpdatedAt = now
	return c, nil
}

// RevealIdentity exposes the author of an anonymous complaint to the HOD
// through the identity service, which enforces the role check and the
// audit write.
func (s *ComplaintService) RevealIdentity(ctx context.Context, actor models.Actor, complaintID string) (result0 *models.User, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "reveal_identity",
		observability.AttributeComplaintID(complaintID))
	defer observability.FinishSpan(span, &err)

	c, err := s.GetByComplaintID(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	return s.identity.Reveal(ctx, actor, c)
}

// Stats aggregates complaint counts over the complaints visible to the
// actor's role scope.
func (s *ComplaintService) Stats(ctx context.Context, actor models.Actor) (result0 *ComplaintStats, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "complaint_stats")
	defer observability.FinishSpan(span, &err)

	complaints, err := s.ListForActor(ctx, actor, ComplaintFilters{})
	if err != nil {
		return nil, err
	}
	stats := &ComplaintStats{
		ByStatus:   make(map[string]int),
		ByCategory: make(map[string]int),
	}
	for _, c := range complaints {
		stats.Total++
		stats.ByStatus[string(c.Status)]++
		stats.ByCategory[string(c.Category)]++
		if c.IsReopened {
			stats.Reopened++
		}
	}
	return stats, nil
}

// resolveOwnership establishes whether the actor authored the complaint.
// Named complaints compare IDs; anonymous ones prove ownership through
// the identity token without revealing it.
func (s *ComplaintService) resolveOwnership(ctx context.Context, actor models.Actor, c *models.Complaint) (bool, error) {
	if !c.IsAnonymous {
		return c.OwnedBy(actor.ID), nil
	}
	if actor.Role != models.RoleStudent || !c.IdentityToken.Valid {
		return false, nil
	}
	matches, err := s.identity.Matches(ctx, c.IdentityToken.String, actor.ID)
	if err != nil {
		return false, err
	}
	return matches, nil
}

// notify dispatches notifications for a lifecycle event. Delivery is best
// effort: failures are logged and never surfaced to the caller.
func (s *ComplaintService) notify(ctx context.Context, event TransitionEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyTransition(ctx, event); err != nil {
		s.logger.Warn(ctx, "Failed to dispatch notifications", map[string]interface{}{
			"complaint_id": event.Complaint.ComplaintID,
			"kind":         string(event.Kind),
			"error":        err.Error(),
		})
	}
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanComplaint(row rowScanner) (*models.Complaint, error) {
	var c models.Complaint
	var attachmentsJSON, notesJSON, historyJSON []byte
	var feedbackJSON []byte
	err := row.Scan(
		&c.ID, &c.ComplaintID, &c.StudentID, &c.StudentName, &c.IsAnonymous, &c.IdentityToken,
		&c.Title, &c.Description, &c.Category, &c.Priority, &attachmentsJSON,
		&c.CurrentLevel, &c.AssignedTo, &c.AssignedTeacher, &c.AssignedMentor, &c.Status,
		&notesJSON, &historyJSON,
		&c.IsReopened, &c.ReopenReason, &c.ReopenedAt, &c.ReopenCount,
		&feedbackJSON, &c.ResolvedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, contextutils.ErrComplaintNotFound
		}
		return nil, contextutils.WrapError(err, "failed to scan complaint")
	}
	if err = json.Unmarshal(attachmentsJSON, &c.Attachments); err != nil {
		return nil, contextutils.WrapError(err, "failed to unmarshal attachments")
	}
	if err = json.Unmarshal(notesJSON, &c.ResolutionNotes); err != nil {
		return nil, contextutils.WrapError(err, "failed to unmarshal resolution notes")
	}
	if err = json.Unmarshal(historyJSON, &c.EscalationHistory); err != nil {
		return nil, contextutils.WrapError(err, "failed to unmarshal escalation history")
	}
	if len(feedbackJSON) > 0 {
		var fb models.Feedback
		if err = json.Unmarshal(feedbackJSON, &fb); err != nil {
			return nil, contextutils.WrapError(err, "failed to unmarshal feedback")
		}
		c.Feedback = &fb
	}
	return &c, nil
}

// lockComplaint loads a complaint inside a transaction with a row lock so
// concurrent lifecycle operations serialize per complaint.
func lockComplaint(ctx context.Context, tx *sql.Tx, complaintID string) (*models.Complaint, error) {
	query := fmt.Sprintf(`SELECT %s FROM complaints WHERE complaint_id = $1 FOR UPDATE`, complaintColumns)
	return scanComplaint(tx.QueryRowContext(ctx, query, complaintID))
}

func emptyIfNil(a []models.Attachment) []models.Attachment {
	if a == nil {
		return []models.Attachment{}
	}
	return a
}
