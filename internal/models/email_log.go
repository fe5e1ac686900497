package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// EmailStatus is the delivery outcome recorded for a sent email.
type EmailStatus string

// Email delivery statuses.
const (
	EmailStatusSent   EmailStatus = "sent"
	EmailStatusFailed EmailStatus = "failed"
)

// EmailLog records one attempted email delivery. Failures are logged here
// and never propagated to the operation that triggered the send.
type EmailLog struct {
	ID           int            `json:"id"`
	RecipientID  sql.NullInt32  `json:"recipient_id"`
	Recipient    string         `json:"recipient"`
	TemplateName string         `json:"template_name"`
	Subject      string         `json:"subject"`
	Status       EmailStatus    `json:"status"`
	ErrorMessage sql.NullString `json:"error_message"`
	SentAt       time.Time      `json:"sent_at"`
}

// MarshalJSON customizes JSON marshaling to handle sql.Null types properly.
func (e EmailLog) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID           int         `json:"id"`
		RecipientID  *int32      `json:"recipient_id"`
		Recipient    string      `json:"recipient"`
		TemplateName string      `json:"template_name"`
		Subject      string      `json:"subject"`
		Status       EmailStatus `json:"status"`
		ErrorMessage *string     `json:"error_message"`
		SentAt       time.Time   `json:"sent_at"`
	}{
		ID:           e.ID,
		RecipientID:  nullInt32ToPointer(e.RecipientID),
		Recipient:    e.Recipient,
		TemplateName: e.TemplateName,
		Subject:      e.Subject,
		Status:       e.Status,
		ErrorMessage: nullStringToPointer(e.ErrorMessage),
		SentAt:       e.SentAt,
	})
}
