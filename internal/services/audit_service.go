package services

import (
	"context"
	"database/sql"
	"time"

	"complaintdesk/internal/models"
	"complaintdesk/internal/observability"
	contextutils "complaintdesk/internal/utils"
)

// AuditService writes and reads the immutable audit trail of sensitive
// actions. There is no update or delete path.
type AuditService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewAuditService creates a new AuditService instance.
func NewAuditService(db *sql.DB, logger *observability.Logger) *AuditService {
	if db == nil {
		panic("NewAuditService: db is nil")
	}
	if logger == nil {
		panic("NewAuditService: logger is nil")
	}
	return &AuditService{db: db, logger: logger}
}

// Record inserts one audit entry.
func (s *AuditService) Record(ctx context.Context, entry *models.AuditLog) (err error) {
	ctx, span := observability.TraceAuditFunction(ctx, "record_audit_entry")
	defer observability.FinishSpan(span, &err)

	query := `INSERT INTO audit_logs (performed_by, action, complaint_id, target_user, details, created_at)
              VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`
	err = s.db.QueryRowContext(ctx, query,
		entry.PerformedBy, entry.Action, entry.ComplaintID, entry.TargetUser, entry.Details, time.Now()).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return contextutils.WrapError(err, "failed to insert audit entry")
	}
	return nil
}

// ListForComplaint returns the audit trail of one complaint, newest first.
func (s *AuditService) ListForComplaint(ctx context.Context, complaintID int) (result0 []models.AuditLog, err error) {
	ctx, span := observability.TraceAuditFunction(ctx, "list_audit_for_complaint")
	defer observability.FinishSpan(span, &err)

	query := `SELECT id, performed_by, action, complaint_id, target_user, details, created_at
              FROM audit_logs WHERE complaint_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, complaintID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query audit entries")
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": cerr.Error()})
		}
	}()

	var entries []models.AuditLog
	for rows.Next() {
		var e models.AuditLog
		if err = rows.Scan(&e.ID, &e.PerformedBy, &e.Action, &e.ComplaintID, &e.TargetUser, &e.Details, &e.CreatedAt); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan audit entry")
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate audit entries")
	}
	return entries, nil
}

// ListRecent returns the most recent audit entries across all complaints,
// for the HOD dashboard.
func (s *AuditService) ListRecent(ctx context.Context, limit int) (result0 []models.AuditLog, err error) {
	ctx, span := observability.TraceAuditFunction(ctx, "list_recent_audit")
	defer observability.FinishSpan(span, &err)

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT id, performed_by, action, complaint_id, target_user, details, created_at
              FROM audit_logs ORDER BY created_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query audit entries")
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": cerr.Error()})
		}
	}()

	var entries []models.AuditLog
	for rows.Next() {
		var e models.AuditLog
		if err = rows.Scan(&e.ID, &e.PerformedBy, &e.Action, &e.ComplaintID, &e.TargetUser, &e.Details, &e.CreatedAt); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan audit entry")
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate audit entries")
	}
	return entries, nil
}
