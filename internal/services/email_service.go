package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"html/template"
	"time"

	"complaintdesk/internal/config"
	"complaintdesk/internal/models"
	"complaintdesk/internal/observability"
	"complaintdesk/internal/services/mailer"
	contextutils "complaintdesk/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/mail.v2"
)

// EmailService sends lifecycle emails over SMTP and records every attempt
// in email_logs. When email is disabled it degrades to a no-op.
type EmailService struct {
	cfg    *config.Config
	logger *observability.Logger
	dialer *mail.Dialer
	db     *sql.DB
}

// Ensure EmailService implements the mailer interface
var _ mailer.Mailer = (*EmailService)(nil)

// NewEmailService creates a new EmailService instance.
func NewEmailService(cfg *config.Config, logger *observability.Logger, db *sql.DB) *EmailService {
	if db == nil {
		panic("NewEmailService: db is nil")
	}

	var dialer *mail.Dialer
	if cfg.Email.Enabled && cfg.Email.SMTP.Host != "" {
		dialer = mail.NewDialer(
			cfg.Email.SMTP.Host,
			cfg.Email.SMTP.Port,
			cfg.Email.SMTP.Username,
			cfg.Email.SMTP.Password,
		)
	}

	return &EmailService{
		cfg:    cfg,
		logger: logger,
		dialer: dialer,
		db:     db,
	}
}

// IsEnabled returns whether email functionality is enabled
func (e *EmailService) IsEnabled() bool {
	return e.cfg.Email.Enabled && e.cfg.Email.SMTP.Host != ""
}

// SendComplaintEmail resolves the recipient's address and sends the
// lifecycle email for a transition event. The attempt is recorded in
// email_logs either way.
func (e *EmailService) SendComplaintEmail(ctx context.Context, recipientID int, templateName, subject string, event TransitionEvent) (err error) {
	ctx, span := otel.Tracer("email-service").Start(ctx, "SendComplaintEmail",
		trace.WithAttributes(
			attribute.Int("email.recipient_id", recipientID),
			attribute.String("email.template", templateName),
		),
	)
	defer observability.FinishSpan(span, &err)

	if !e.IsEnabled() {
		e.logger.Info(ctx, "Email disabled, skipping email send", map[string]interface{}{
			"recipient_id": recipientID,
			"template":     templateName,
		})
		return nil
	}

	var name, address string
	err = e.db.QueryRowContext(ctx, `SELECT name, email FROM users WHERE id = $1`, recipientID).
		Scan(&name, &address)
	if err != nil {
		return contextutils.WrapError(err, "failed to load email recipient")
	}

	c := event.Complaint
	data := map[string]interface{}{
		"Name":        name,
		"ComplaintID": c.ComplaintID,
		"Title":       c.Title,
		"Category":    string(c.Category),
		"Status":      string(c.Status),
		"Level":       string(c.CurrentLevel),
		"Reason":      event.Reason,
		"Note":        event.Note,
		"AppURL":      e.cfg.Server.AppBaseURL,
	}

	err = e.SendEmail(ctx, address, subject, templateName, data)
	e.record(ctx, recipientID, address, templateName, subject, err)
	return err
}

// SendEmail sends a templated email to a single recipient
func (e *EmailService) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) (err error) {
	ctx, span := otel.Tracer("email-service").Start(ctx, "SendEmail",
		trace.WithAttributes(
			attribute.String("email.to", to),
			attribute.String("email.subject", subject),
			attribute.String("email.template", templateName),
		),
	)
	defer observability.FinishSpan(span, &err)

	if !e.IsEnabled() {
		e.logger.Info(ctx, "Email disabled, skipping email send", map[string]interface{}{
			"to":       to,
			"template": templateName,
		})
		return nil
	}
	if e.dialer == nil {
		return contextutils.ErrorWithContextf("email service not properly configured")
	}

	content, err := renderEmailTemplate(templateName, data)
	if err != nil {
		return contextutils.WrapError(err, "failed to generate email content")
	}

	m := mail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", e.cfg.Email.SMTP.FromName, e.cfg.Email.SMTP.FromAddress))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", content)

	if err = e.dialer.DialAndSend(m); err != nil {
		e.logger.Error(ctx, "Failed to send email", err, map[string]interface{}{
			"to":       to,
			"template": templateName,
			"subject":  subject,
		})
		return contextutils.WrapErrorf(contextutils.ErrEmailDeliveryFailed, "failed to send %s email", templateName)
	}

	e.logger.Info(ctx, "Email sent successfully", map[string]interface{}{
		"to":       to,
		"template": templateName,
		"subject":  subject,
	})
	return nil
}

// record stores the delivery attempt. Failures to record are logged only;
// the email outcome stands on its own.
func (e *EmailService) record(ctx context.Context, recipientID int, address, templateName, subject string, sendErr error) {
	status := models.EmailStatusSent
	errorMessage := sql.NullString{}
	if sendErr != nil {
		status = models.EmailStatusFailed
		errorMessage = sql.NullString{String: sendErr.Error(), Valid: true}
	}

	query := `INSERT INTO email_logs (recipient_id, recipient, template_name, subject, status, error_message, sent_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := e.db.ExecContext(ctx, query,
		recipientID, address, templateName, subject, status, errorMessage, time.Now())
	if err != nil {
		e.logger.Error(ctx, "Failed to record email attempt", err, map[string]interface{}{
			"recipient_id": recipientID,
			"template":     templateName,
		})
	}
}

// emailTemplates maps template names to their HTML bodies. Templates are
// parsed once at startup.
var emailTemplates = template.Must(template.New("emails").Parse(`
{{define "complaint_confirmation"}}
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Complaint Submitted</h2>
  <p>Hi {{.Name}},</p>
  <p>Your complaint <strong>{{.ComplaintID}}</strong> ("{{.Title}}", {{.Category}})
  has been submitted and assigned for review.</p>
  <p>You can track its progress at <a href="{{.AppURL}}">{{.AppURL}}</a>.</p>
</body>
</html>
{{end}}

{{define "complaint_assigned"}}
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>New Complaint Assigned</h2>
  <p>Hi {{.Name}},</p>
  <p>Complaint <strong>{{.ComplaintID}}</strong> ("{{.Title}}", {{.Category}})
  has been assigned to you for review.</p>
  <p>Please review it at <a href="{{.AppURL}}">{{.AppURL}}</a>.</p>
</body>
</html>
{{end}}

{{define "status_update"}}
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Complaint Update</h2>
  <p>Hi {{.Name}},</p>
  <p>Your complaint <strong>{{.ComplaintID}}</strong> is now <strong>{{.Status}}</strong>.</p>
  {{if .Note}}<p>Note from the handler: {{.Note}}</p>{{end}}
  <p>See the details at <a href="{{.AppURL}}">{{.AppURL}}</a>.</p>
</body>
</html>
{{end}}

{{define "complaint_escalated"}}
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Complaint Escalated</h2>
  <p>Hi {{.Name}},</p>
  <p>Complaint <strong>{{.ComplaintID}}</strong> has been escalated to the
  <strong>{{.Level}}</strong> level.</p>
  {{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
  <p>See the details at <a href="{{.AppURL}}">{{.AppURL}}</a>.</p>
</body>
</html>
{{end}}

{{define "complaint_reopened"}}
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Complaint Reopened</h2>
  <p>Hi {{.Name}},</p>
  <p>Complaint <strong>{{.ComplaintID}}</strong> ("{{.Title}}") has been reopened.</p>
  {{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
  <p>Please take another look at <a href="{{.AppURL}}">{{.AppURL}}</a>.</p>
</body>
</html>
{{end}}

{{define "registration_decision"}}
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Registration {{.Status}}</h2>
  <p>Hi {{.Name}},</p>
  <p>Your staff registration has been <strong>{{.Status}}</strong>.</p>
  <p>Visit <a href="{{.AppURL}}">{{.AppURL}}</a> to continue.</p>
</body>
</html>
{{end}}
`))

func renderEmailTemplate(templateName string, data map[string]interface{}) (string, error) {
	if emailTemplates.Lookup(templateName) == nil {
		return "", contextutils.ErrorWithContextf("unknown template: %s", templateName)
	}
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, templateName, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
