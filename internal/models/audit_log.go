package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// AuditAction identifies the sensitive operation an audit entry records.
type AuditAction string

// Audited actions. Identity reveals are the security-critical case: every
// successful reveal must leave exactly one entry.
const (
	AuditViewAnonymousIdentity AuditAction = "view_anonymous_identity"
	AuditApproveRegistration   AuditAction = "approve_registration"
	AuditRejectRegistration    AuditAction = "reject_registration"
	AuditDeleteComplaint       AuditAction = "delete_complaint"
)

// AuditLog is an immutable record of a sensitive action. Entries are only
// ever inserted, never updated or deleted.
type AuditLog struct {
	ID          int            `json:"id"`
	PerformedBy int            `json:"performed_by"`
	Action      AuditAction    `json:"action"`
	ComplaintID sql.NullInt32  `json:"complaint_id"`
	TargetUser  sql.NullInt32  `json:"target_user"`
	Details     sql.NullString `json:"details"`
	CreatedAt   time.Time      `json:"created_at"`
}

// MarshalJSON customizes JSON marshaling to handle sql.Null types properly.
func (a AuditLog) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID          int           `json:"id"`
		PerformedBy int           `json:"performed_by"`
		Action      AuditAction   `json:"action"`
		ComplaintID *int32        `json:"complaint_id"`
		TargetUser  *int32        `json:"target_user"`
		Details     *string       `json:"details"`
		CreatedAt   time.Time     `json:"created_at"`
	}{
		ID:          a.ID,
		PerformedBy: a.PerformedBy,
		Action:      a.Action,
		ComplaintID: nullInt32ToPointer(a.ComplaintID),
		TargetUser:  nullInt32ToPointer(a.TargetUser),
		Details:     nullStringToPointer(a.Details),
		CreatedAt:   a.CreatedAt,
	})
}
