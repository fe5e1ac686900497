// Package mailer defines the outbound email interface for the complaint
// desk application.
package mailer

import "context"

// Mailer defines the interface for email sending functionality
type Mailer interface {
	// SendEmail sends a templated email to a single recipient
	SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) error

	// IsEnabled returns whether email functionality is enabled
	IsEnabled() bool
}
