// Package services contains business logic for the complaint desk application.
package services

import (
	"database/sql"

	"complaintdesk/internal/models"
	contextutils "complaintdesk/internal/utils"
)

// Lifecycle rules for complaints. These are pure functions over the
// complaint and the acting principal; the ComplaintService calls them
// before touching the database so every write path enforces the same
// state machine.

// IsHandler reports whether the actor is the current handler of the
// complaint: either the directly assigned staff member, or any HOD when
// the complaint sits in the HOD pool.
func IsHandler(actor models.Actor, c *models.Complaint) bool {
	if c.AssignedTo.Valid {
		return int(c.AssignedTo.Int32) == actor.ID && actor.Role == c.CurrentLevel.Role()
	}
	return c.InHodPool() && actor.Role == models.RoleHod
}

// HasAuthorityOver reports whether the actor may act on the complaint as
// a handler. The current handler always qualifies; so does any staff
// member whose role outranks the complaint's current level, so a mentor
// or HOD can step in on a stalled teacher-level complaint.
func HasAuthorityOver(actor models.Actor, c *models.Complaint) bool {
	if IsHandler(actor, c) {
		return true
	}
	return actor.Role.Rank() > c.CurrentLevel.Rank()
}

// manuallySettable reports whether a status may be set directly through
// the status-update operation. Escalated and Reopened are reserved for
// the escalate and reopen operations so their side effects cannot be
// skipped.
func manuallySettable(s models.Status) bool {
	switch s {
	case models.StatusPending, models.StatusInReview, models.StatusResolved, models.StatusRejected:
		return true
	}
	return false
}

// EnsureCanUpdateStatus validates a direct status change by the actor.
func EnsureCanUpdateStatus(actor models.Actor, c *models.Complaint, newStatus models.Status) error {
	if !models.ValidStatus(string(newStatus)) {
		return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "unknown status: %s", newStatus)
	}
	if !manuallySettable(newStatus) {
		return contextutils.WrapErrorf(contextutils.ErrInvalidTransition, "status %s cannot be set directly", newStatus)
	}
	if !actor.Role.IsStaff() {
		return contextutils.ErrForbidden
	}
	if !HasAuthorityOver(actor, c) {
		return contextutils.ErrForbidden
	}
	return nil
}

// EscalationTarget computes where a complaint goes when escalated: the
// next level and its assignee. Teacher-level complaints move to the
// student's mentor; mentor-level complaints move to the HOD pool, which
// is the unassigned state at the hod level.
func EscalationTarget(c *models.Complaint) (next models.Level, assignee sql.NullInt32, err error) {
	next, ok := c.CurrentLevel.Next()
	if !ok {
		return c.CurrentLevel, sql.NullInt32{}, contextutils.WrapErrorf(contextutils.ErrTerminalLevel, "complaint %s is already at the top level", c.ComplaintID)
	}
	switch next {
	case models.LevelMentor:
		return next, c.AssignedMentor, nil
	default:
		return next, sql.NullInt32{}, nil
	}
}

// EnsureCanEscalate validates an escalation by the actor. Escalation
// always advances exactly one level from the complaint's current level,
// whatever its status.
func EnsureCanEscalate(actor models.Actor, c *models.Complaint) error {
	if c.Status.IsSettled() {
		return contextutils.WrapErrorf(contextutils.ErrInvalidState, "cannot escalate a %s complaint", c.Status)
	}
	if !actor.Role.IsStaff() {
		return contextutils.ErrForbidden
	}
	if !HasAuthorityOver(actor, c) {
		return contextutils.ErrForbidden
	}
	if _, ok := c.CurrentLevel.Next(); !ok {
		return contextutils.WrapErrorf(contextutils.ErrTerminalLevel, "complaint %s is already at the top level", c.ComplaintID)
	}
	return nil
}

// EnsureCanReopen validates a reopen request. Only the complaint's author
// may reopen, and only from the Resolved state. Rejected is final for the
// author.
func EnsureCanReopen(c *models.Complaint, isOwner bool) error {
	if !isOwner {
		return contextutils.ErrForbidden
	}
	if c.Status != models.StatusResolved {
		return contextutils.WrapErrorf(contextutils.ErrInvalidState, "only resolved complaints can be reopened, current status is %s", c.Status)
	}
	return nil
}

// EnsureCanAddAttachment validates a supporting-file addition. Only the
// author may attach, and only while the complaint is still open.
func EnsureCanAddAttachment(c *models.Complaint, isOwner bool) error {
	if !isOwner {
		return contextutils.ErrForbidden
	}
	if c.Status == models.StatusResolved || c.Status == models.StatusRejected {
		return contextutils.WrapErrorf(contextutils.ErrInvalidState, "attachments cannot be added to a %s complaint", c.Status)
	}
	return nil
}

// EnsureCanLeaveFeedback validates a feedback submission. Only the author
// may rate, only while the complaint is Resolved, and the rating must be
// within the 1..5 scale. Resubmission overwrites the previous rating.
func EnsureCanLeaveFeedback(c *models.Complaint, isOwner bool, rating int) error {
	if !isOwner {
		return contextutils.ErrForbidden
	}
	if c.Status != models.StatusResolved {
		return contextutils.WrapErrorf(contextutils.ErrInvalidState, "feedback is only accepted on resolved complaints, current status is %s", c.Status)
	}
	if !contextutils.IsValidRating(rating) {
		return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "rating must be between 1 and 5, got %d", rating)
	}
	return nil
}
