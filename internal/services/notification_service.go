package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"complaintdesk/internal/models"
	"complaintdesk/internal/observability"
	contextutils "complaintdesk/internal/utils"
)

// TransitionKind identifies a complaint lifecycle event.
type TransitionKind string

// Lifecycle events that produce notifications.
const (
	TransitionSubmitted     TransitionKind = "submitted"
	TransitionStatusChanged TransitionKind = "status_changed"
	TransitionEscalated     TransitionKind = "escalated"
	TransitionReopened      TransitionKind = "reopened"
	TransitionFeedback      TransitionKind = "feedback"
)

// TransitionEvent describes one complaint lifecycle event for fan-out.
type TransitionEvent struct {
	Kind      TransitionKind
	Complaint *models.Complaint
	Actor     models.Actor
	OldStatus models.Status
	NewStatus models.Status
	FromLevel models.Level
	ToLevel   models.Level
	Note      string
	Reason    string
	// StudentID is the resolved author, needed when the complaint is
	// anonymous and the author must still be reached. Zero means the
	// author cannot be addressed for this event.
	StudentID int
}

// PlannedNotification is one recipient's share of a transition event.
// RecipientID zero with a RecipientRole set means "every active user
// with that role", which is how the HOD pool is addressed.
type PlannedNotification struct {
	RecipientID   int
	RecipientRole models.Role
	Type          models.NotificationType
	Title         string
	Message       string
	EmailTemplate string
}

// PlanTransition computes who gets told what for a lifecycle event. It is
// a pure function so the fan-out rules are testable without a database.
func PlanTransition(event TransitionEvent) []PlannedNotification {
	c := event.Complaint
	var plan []PlannedNotification

	switch event.Kind {
	case TransitionSubmitted:
		if c.AssignedTo.Valid {
			plan = append(plan, PlannedNotification{
				RecipientID:   int(c.AssignedTo.Int32),
				Type:          models.NotificationNewComplaint,
				Title:         "New complaint assigned",
				Message:       fmt.Sprintf("%s filed a new complaint: %s (%s)", c.StudentName, c.Title, c.ComplaintID),
				EmailTemplate: "complaint_assigned",
			})
		}
		if event.StudentID != 0 {
			plan = append(plan, PlannedNotification{
				RecipientID:   event.StudentID,
				Type:          models.NotificationNewComplaint,
				Title:         "Complaint submitted",
				Message:       fmt.Sprintf("Your complaint %s has been submitted and assigned for review.", c.ComplaintID),
				EmailTemplate: "complaint_confirmation",
			})
		}

	case TransitionStatusChanged:
		plan = append(plan, authorNotification(c,
			models.NotificationStatusUpdate,
			fmt.Sprintf("Complaint %s", event.NewStatus),
			fmt.Sprintf("Your complaint %s is now %s.", c.ComplaintID, event.NewStatus),
			"status_update",
		)...)

	case TransitionEscalated:
		if c.AssignedTo.Valid {
			plan = append(plan, PlannedNotification{
				RecipientID:   int(c.AssignedTo.Int32),
				Type:          models.NotificationEscalation,
				Title:         "Complaint escalated to you",
				Message:       fmt.Sprintf("Complaint %s was escalated from %s level: %s", c.ComplaintID, event.FromLevel, event.Reason),
				EmailTemplate: "complaint_escalated",
			})
		} else {
			// Unassigned at the hod level: address the whole HOD pool.
			plan = append(plan, PlannedNotification{
				RecipientRole: models.RoleHod,
				Type:          models.NotificationEscalation,
				Title:         "Complaint escalated to HOD",
				Message:       fmt.Sprintf("Complaint %s was escalated from %s level: %s", c.ComplaintID, event.FromLevel, event.Reason),
				EmailTemplate: "complaint_escalated",
			})
		}
		plan = append(plan, authorNotification(c,
			models.NotificationEscalation,
			"Complaint escalated",
			fmt.Sprintf("Your complaint %s was escalated to the %s level.", c.ComplaintID, event.ToLevel),
			"status_update",
		)...)

	case TransitionReopened:
		if c.AssignedTo.Valid {
			plan = append(plan, PlannedNotification{
				RecipientID:   int(c.AssignedTo.Int32),
				Type:          models.NotificationReopened,
				Title:         "Complaint reopened",
				Message:       fmt.Sprintf("Complaint %s was reopened by the student: %s", c.ComplaintID, event.Reason),
				EmailTemplate: "complaint_reopened",
			})
		}

	case TransitionFeedback:
		if c.AssignedTo.Valid && c.Feedback != nil {
			plan = append(plan, PlannedNotification{
				RecipientID: int(c.AssignedTo.Int32),
				Type:        models.NotificationFeedback,
				Title:       "Feedback received",
				Message:     fmt.Sprintf("The student rated the resolution of %s: %d/5.", c.ComplaintID, c.Feedback.Rating),
			})
		}
	}

	return plan
}

// authorNotification plans a notification to the complaint author. A named
// author gets an in-app notification; an anonymous author is skipped
// because no read path may link the notification table back to them.
func authorNotification(c *models.Complaint, typ models.NotificationType, title, message, emailTemplate string) []PlannedNotification {
	if c.IsAnonymous || !c.StudentID.Valid {
		return nil
	}
	return []PlannedNotification{{
		RecipientID:   int(c.StudentID.Int32),
		Type:          typ,
		Title:         title,
		Message:       message,
		EmailTemplate: emailTemplate,
	}}
}

// NotificationService stores in-app notifications and fans lifecycle
// events out to recipients, delegating email delivery to the email
// service. All delivery is best effort.
type NotificationService struct {
	db     *sql.DB
	logger *observability.Logger
	email  *EmailService
}

// NewNotificationService creates a new NotificationService instance.
// email may be nil when email delivery is disabled.
func NewNotificationService(db *sql.DB, logger *observability.Logger, email *EmailService) *NotificationService {
	if db == nil {
		panic("NewNotificationService: db is nil")
	}
	if logger == nil {
		panic("NewNotificationService: logger is nil")
	}
	return &NotificationService{db: db, logger: logger, email: email}
}

// NotifyTransition plans and delivers notifications for a lifecycle
// event. Individual delivery failures are logged and skipped; the
// returned error only reflects a failure to expand the plan at all.
func (s *NotificationService) NotifyTransition(ctx context.Context, event TransitionEvent) (err error) {
	ctx, span := observability.TraceNotificationFunction(ctx, "notify_transition")
	defer observability.FinishSpan(span, &err)

	for _, planned := range PlanTransition(event) {
		recipients, rerr := s.expandRecipients(ctx, planned)
		if rerr != nil {
			return rerr
		}
		for _, recipientID := range recipients {
			n := &models.Notification{
				RecipientID: recipientID,
				ComplaintID: sql.NullInt32{Int32: int32(event.Complaint.ID), Valid: true},
				Type:        planned.Type,
				Title:       planned.Title,
				Message:     planned.Message,
			}
			if cerr := s.Create(ctx, n); cerr != nil {
				s.logger.Warn(ctx, "Failed to store notification", map[string]interface{}{
					"recipient_id": recipientID,
					"error":        cerr.Error(),
				})
			}
			if planned.EmailTemplate != "" && s.email != nil {
				if eerr := s.email.SendComplaintEmail(ctx, recipientID, planned.EmailTemplate, planned.Title, event); eerr != nil {
					s.logger.Warn(ctx, "Failed to send notification email", map[string]interface{}{
						"recipient_id": recipientID,
						"template":     planned.EmailTemplate,
						"error":        eerr.Error(),
					})
				}
			}
		}
	}
	return nil
}

// expandRecipients resolves a planned notification to concrete user IDs.
func (s *NotificationService) expandRecipients(ctx context.Context, planned PlannedNotification) ([]int, error) {
	if planned.RecipientID != 0 {
		return []int{planned.RecipientID}, nil
	}
	if planned.RecipientRole == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM users WHERE role = $1 AND is_active = TRUE AND registration_status = $2`,
		planned.RecipientRole, models.RegistrationApproved)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to expand notification recipients")
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": cerr.Error()})
		}
	}()

	var ids []int
	for rows.Next() {
		var id int
		if err = rows.Scan(&id); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan recipient id")
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate recipients")
	}
	return ids, nil
}

// Create inserts one notification row.
func (s *NotificationService) Create(ctx context.Context, n *models.Notification) (err error) {
	ctx, span := observability.TraceNotificationFunction(ctx, "create_notification")
	defer observability.FinishSpan(span, &err)

	query := `INSERT INTO notifications (recipient_id, complaint_id, type, title, message, is_read, created_at)
              VALUES ($1, $2, $3, $4, $5, FALSE, $6) RETURNING id, created_at`
	err = s.db.QueryRowContext(ctx, query,
		n.RecipientID, n.ComplaintID, n.Type, n.Title, n.Message, time.Now()).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return contextutils.WrapError(err, "failed to insert notification")
	}
	return nil
}

// ListForUser returns a user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID int, unreadOnly bool) (result0 []models.Notification, err error) {
	ctx, span := observability.TraceNotificationFunction(ctx, "list_notifications")
	defer observability.FinishSpan(span, &err)

	query := `SELECT id, recipient_id, complaint_id, type, title, message, is_read, created_at
              FROM notifications WHERE recipient_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT 100`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query notifications")
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": cerr.Error()})
		}
	}()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err = rows.Scan(&n.ID, &n.RecipientID, &n.ComplaintID, &n.Type, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan notification")
		}
		notifications = append(notifications, n)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate notifications")
	}
	return notifications, nil
}

// UnreadCount returns the number of unread notifications for a user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID int) (result0 int, err error) {
	ctx, span := observability.TraceNotificationFunction(ctx, "unread_count")
	defer observability.FinishSpan(span, &err)

	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE`, userID).
		Scan(&count)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to count notifications")
	}
	return count, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID int) (err error) {
	ctx, span := observability.TraceNotificationFunction(ctx, "mark_notification_read")
	defer observability.FinishSpan(span, &err)

	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`,
		notificationID, userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to mark notification read")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to check affected rows")
	}
	if affected == 0 {
		return contextutils.ErrRecordNotFound
	}
	return nil
}

// MarkAllRead marks every notification of the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int) (err error) {
	ctx, span := observability.TraceNotificationFunction(ctx, "mark_all_notifications_read")
	defer observability.FinishSpan(span, &err)

	_, err = s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to mark notifications read")
	}
	return nil
}
