package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// NotificationType identifies the lifecycle event a notification describes.
type NotificationType string

// Notification types.
const (
	NotificationNewComplaint  NotificationType = "new_complaint"
	NotificationStatusUpdate  NotificationType = "status_update"
	NotificationEscalation    NotificationType = "escalation"
	NotificationReopened      NotificationType = "complaint_reopened"
	NotificationFeedback      NotificationType = "feedback_received"
	NotificationRegistration  NotificationType = "registration_decision"
)

// Notification is an in-app message for one recipient about one complaint
// event. Delivery is best effort; the complaint write it describes never
// depends on it.
type Notification struct {
	ID          int              `json:"id"`
	RecipientID int              `json:"recipient_id"`
	ComplaintID sql.NullInt32    `json:"complaint_id"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	IsRead      bool             `json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
}

// MarshalJSON customizes JSON marshaling to handle sql.Null types properly.
func (n Notification) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID          int              `json:"id"`
		RecipientID int              `json:"recipient_id"`
		ComplaintID *int32           `json:"complaint_id"`
		Type        NotificationType `json:"type"`
		Title       string           `json:"title"`
		Message     string           `json:"message"`
		IsRead      bool             `json:"is_read"`
		CreatedAt   time.Time        `json:"created_at"`
	}{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		ComplaintID: nullInt32ToPointer(n.ComplaintID),
		Type:        n.Type,
		Title:       n.Title,
		Message:     n.Message,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
	})
}
