package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"complaintdesk/internal/config"
	"complaintdesk/internal/models"
	"complaintdesk/internal/observability"
	contextutils "complaintdesk/internal/utils"

	"github.com/lib/pq"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// userSelectFields is the list of user columns (excluding password_hash)
// for queries that return user data
const userSelectFields = `id, name, email, role, employee_id, roll_number, year,
	assigned_teacher, assigned_mentor, specialization, contact_number,
	department, registration_status, is_active, created_at, updated_at`

// RegisterUserInput carries a signup request from the transport layer.
type RegisterUserInput struct {
	Name            string        `json:"name"`
	Email           string        `json:"email"`
	Password        string        `json:"password"`
	Role            models.Role   `json:"role"`
	EmployeeID      string        `json:"employee_id"`
	RollNumber      string        `json:"roll_number"`
	Year            int           `json:"year"`
	AssignedTeacher int           `json:"assigned_teacher"`
	AssignedMentor  int           `json:"assigned_mentor"`
	Specialization  string        `json:"specialization"`
	ContactNumber   string        `json:"contact_number"`
}

// UserService manages accounts, authentication and the staff registration
// approval queue.
type UserService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
	audit  *AuditService
	email  *EmailService
}

// NewUserService creates a new UserService instance. email may be nil
// when email delivery is disabled.
func NewUserService(db *sql.DB, cfg *config.Config, logger *observability.Logger, audit *AuditService, email *EmailService) *UserService {
	if db == nil {
		panic("NewUserService: db is nil")
	}
	if logger == nil {
		panic("NewUserService: logger is nil")
	}
	return &UserService{db: db, cfg: cfg, logger: logger, audit: audit, email: email}
}

// RegisterUser creates a new account. Students become active immediately;
// teacher and mentor accounts enter the pending queue until the HOD
// approves them. HOD accounts cannot be created through signup.
func (s *UserService) RegisterUser(ctx context.Context, input *RegisterUserInput) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "register_user",
		attribute.String("user.role", string(input.Role)))
	defer observability.FinishSpan(span, &err)

	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "name is required")
	}
	if !contextutils.IsValidEmail(email) {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "invalid email address")
	}
	if len(input.Password) < 6 {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "password must be at least 6 characters")
	}
	if !models.ValidRole(string(input.Role)) {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "unknown role: %s", input.Role)
	}
	if input.Role == models.RoleHod {
		return nil, contextutils.WrapError(contextutils.ErrForbidden, "HOD accounts are provisioned by the administrator")
	}
	if !s.cfg.IsSignupAllowed(email) {
		return nil, contextutils.WrapError(contextutils.ErrForbidden, "signups are restricted for this address")
	}
	if input.Role == models.RoleStudent && input.AssignedTeacher == 0 {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "students must choose an assigned teacher")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to hash password")
	}

	registrationStatus := models.RegistrationApproved
	if input.Role.IsStaff() {
		registrationStatus = models.RegistrationPending
	}

	query := `INSERT INTO users
		(name, email, password_hash, role, employee_id, roll_number, year,
		 assigned_teacher, assigned_mentor, specialization, contact_number,
		 department, registration_status, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,TRUE,$14,$14)
		RETURNING id`
	now := time.Now()
	var id int
	err = s.db.QueryRowContext(ctx, query,
		name, email, string(hashedPassword), input.Role,
		nullIfEmpty(input.EmployeeID), nullIfEmpty(input.RollNumber), nullIfZero(input.Year),
		nullIfZero(input.AssignedTeacher), nullIfZero(input.AssignedMentor),
		nullIfEmpty(input.Specialization), nullIfEmpty(input.ContactNumber),
		s.cfg.Server.Department, registrationStatus, now).
		Scan(&id)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, contextutils.WrapError(contextutils.ErrRecordExists, "an account with this email already exists")
		}
		return nil, contextutils.WrapError(err, "failed to insert user")
	}

	s.logger.Info(ctx, "User registered", map[string]interface{}{
		"user_id": id,
		"role":    input.Role,
		"status":  registrationStatus,
	})
	return s.GetUserByID(ctx, id)
}

// AuthenticateUser verifies credentials and returns the account. Pending
// or rejected staff accounts and deactivated accounts cannot log in.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "authenticate_user")
	defer observability.FinishSpan(span, &err)

	email = strings.ToLower(strings.TrimSpace(email))
	query := fmt.Sprintf(`SELECT %s, password_hash FROM users WHERE email = $1`, userSelectFields)
	row := s.db.QueryRowContext(ctx, query, email)

	var user models.User
	err = row.Scan(
		&user.ID, &user.Name, &user.Email, &user.Role, &user.EmployeeID, &user.RollNumber, &user.Year,
		&user.AssignedTeacher, &user.AssignedMentor, &user.Specialization, &user.ContactNumber,
		&user.Department, &user.RegistrationStatus, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
		&user.PasswordHash,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, contextutils.ErrInvalidCredentials
		}
		return nil, contextutils.WrapError(err, "failed to load user")
	}

	if !user.PasswordHash.Valid {
		return nil, contextutils.ErrInvalidCredentials
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(password)); err != nil {
		return nil, contextutils.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, contextutils.WrapError(contextutils.ErrForbidden, "account is deactivated")
	}
	if user.RegistrationStatus != models.RegistrationApproved {
		return nil, contextutils.WrapErrorf(contextutils.ErrForbidden, "registration is %s", user.RegistrationStatus)
	}

	return &user, nil
}

// GetUserByID retrieves a user by their ID
func (s *UserService) GetUserByID(ctx context.Context, id int) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_id", attribute.Int("user.id", id))
	defer observability.FinishSpan(span, &err)

	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userSelectFields)
	return s.getUserByQuery(ctx, query, id)
}

// GetUserByEmail retrieves a user by their email address
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_email")
	defer observability.FinishSpan(span, &err)

	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userSelectFields)
	return s.getUserByQuery(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

// ListByRole returns active, approved users with the given role, for
// assignment pickers and pool broadcasts.
func (s *UserService) ListByRole(ctx context.Context, role models.Role) (result0 []models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "list_users_by_role",
		attribute.String("user.role", string(role)))
	defer observability.FinishSpan(span, &err)

	query := fmt.Sprintf(`SELECT %s FROM users
		WHERE role = $1 AND is_active = TRUE AND registration_status = $2
		ORDER BY name`, userSelectFields)
	return s.listUsersByQuery(ctx, query, role, models.RegistrationApproved)
}

// ListPendingRegistrations returns staff accounts awaiting an HOD decision.
func (s *UserService) ListPendingRegistrations(ctx context.Context, actor models.Actor) (result0 []models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "list_pending_registrations")
	defer observability.FinishSpan(span, &err)

	if actor.Role != models.RoleHod {
		return nil, contextutils.ErrForbidden
	}
	query := fmt.Sprintf(`SELECT %s FROM users
		WHERE registration_status = $1
		ORDER BY created_at`, userSelectFields)
	return s.listUsersByQuery(ctx, query, models.RegistrationPending)
}

// DecideRegistration approves or rejects a pending staff registration.
// The decision is audited and the applicant is emailed.
func (s *UserService) DecideRegistration(ctx context.Context, actor models.Actor, userID int, approve bool) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "decide_registration",
		attribute.Int("user.id", userID),
		attribute.Bool("registration.approve", approve),
	)
	defer observability.FinishSpan(span, &err)

	if actor.Role != models.RoleHod {
		return nil, contextutils.ErrForbidden
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.RegistrationStatus != models.RegistrationPending {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidState, "registration is already %s", user.RegistrationStatus)
	}

	status := models.RegistrationApproved
	action := models.AuditApproveRegistration
	if !approve {
		status = models.RegistrationRejected
		action = models.AuditRejectRegistration
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET registration_status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now(), userID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to update registration status")
	}
	user.RegistrationStatus = status

	if s.audit != nil {
		aerr := s.audit.Record(ctx, &models.AuditLog{
			PerformedBy: actor.ID,
			Action:      action,
			TargetUser:  sql.NullInt32{Int32: int32(userID), Valid: true},
			Details:     sql.NullString{String: fmt.Sprintf("registration %s for %s (%s)", status, user.Name, user.Role), Valid: true},
		})
		if aerr != nil {
			s.logger.Warn(ctx, "Failed to audit registration decision", map[string]interface{}{
				"user_id": userID,
				"error":   aerr.Error(),
			})
		}
	}

	if s.email != nil {
		data := map[string]interface{}{
			"Name":   user.Name,
			"Status": string(status),
			"AppURL": s.cfg.Server.AppBaseURL,
		}
		if eerr := s.email.SendEmail(ctx, user.Email, fmt.Sprintf("Registration %s", status), "registration_decision", data); eerr != nil {
			s.logger.Warn(ctx, "Failed to send registration decision email", map[string]interface{}{
				"user_id": userID,
				"error":   eerr.Error(),
			})
		}
	}

	s.logger.Info(ctx, "Registration decided", map[string]interface{}{
		"user_id": userID,
		"status":  status,
		"by":      actor.ID,
	})
	return user, nil
}

// UpdateAssignments changes a student's assigned teacher and mentor.
// Only the HOD may rewire routing.
func (s *UserService) UpdateAssignments(ctx context.Context, actor models.Actor, studentID, teacherID, mentorID int) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_assignments",
		attribute.Int("user.id", studentID))
	defer observability.FinishSpan(span, &err)

	if actor.Role != models.RoleHod {
		return contextutils.ErrForbidden
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET assigned_teacher = $1, assigned_mentor = $2, updated_at = $3
		 WHERE id = $4 AND role = $5`,
		nullIfZero(teacherID), nullIfZero(mentorID), time.Now(), studentID, models.RoleStudent)
	if err != nil {
		return contextutils.WrapError(err, "failed to update assignments")
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

// UpdateUserPassword changes a user's password.
func (s *UserService) UpdateUserPassword(ctx context.Context, userID int, newPassword string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_user_password", attribute.Int("user.id", userID))
	defer observability.FinishSpan(span, &err)

	if len(newPassword) < 6 {
		return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "password must be at least 6 characters")
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return contextutils.WrapError(err, "failed to hash password")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		string(hashedPassword), time.Now(), userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to update password")
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

// SetActive activates or deactivates an account. Only the HOD may do this.
func (s *UserService) SetActive(ctx context.Context, actor models.Actor, userID int, active bool) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "set_user_active",
		attribute.Int("user.id", userID),
		attribute.Bool("user.active", active),
	)
	defer observability.FinishSpan(span, &err)

	if actor.Role != models.RoleHod {
		return contextutils.ErrForbidden
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now(), userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to update user")
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

// EnsureAdminUserExists creates or updates the HOD account from the
// configured admin credentials. Called at startup and from the admin CLI.
func (s *UserService) EnsureAdminUserExists(ctx context.Context, adminEmail, adminPassword string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "ensure_admin_user_exists")
	defer observability.FinishSpan(span, &err)

	if adminEmail == "" || adminPassword == "" {
		return contextutils.ErrorWithContextf("admin email and password must be configured")
	}

	existing, err := s.GetUserByEmail(ctx, adminEmail)
	if err != nil && !contextutils.IsError(err, contextutils.ErrRecordNotFound) {
		return contextutils.WrapError(err, "failed to check for admin user")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return contextutils.WrapError(err, "failed to hash admin password")
	}

	now := time.Now()
	if existing != nil {
		_, err = s.db.ExecContext(ctx,
			`UPDATE users SET password_hash = $1, role = $2, registration_status = $3, is_active = TRUE, updated_at = $4 WHERE id = $5`,
			string(hashedPassword), models.RoleHod, models.RegistrationApproved, now, existing.ID)
		if err != nil {
			return contextutils.WrapError(err, "failed to update admin user")
		}
		s.logger.Info(ctx, "Admin user updated", map[string]interface{}{"user_id": existing.ID})
		return nil
	}

	var id int
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO users (name, email, password_hash, role, department, registration_status, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $7) RETURNING id`,
		"Head of Department", strings.ToLower(adminEmail), string(hashedPassword),
		models.RoleHod, s.cfg.Server.Department, models.RegistrationApproved, now).
		Scan(&id)
	if err != nil {
		return contextutils.WrapError(err, "failed to create admin user")
	}
	s.logger.Info(ctx, "Admin user created", map[string]interface{}{"user_id": id})
	return nil
}

// GetDB returns the database connection
func (s *UserService) GetDB() *sql.DB {
	return s.db
}

func (s *UserService) getUserByQuery(ctx context.Context, query string, args ...interface{}) (result0 *models.User, err error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	var user models.User
	err = row.Scan(
		&user.ID, &user.Name, &user.Email, &user.Role, &user.EmployeeID, &user.RollNumber, &user.Year,
		&user.AssignedTeacher, &user.AssignedMentor, &user.Specialization, &user.ContactNumber,
		&user.Department, &user.RegistrationStatus, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, contextutils.ErrRecordNotFound
		}
		return nil, contextutils.WrapError(err, "failed to scan user")
	}
	return &user, nil
}

func (s *UserService) listUsersByQuery(ctx context.Context, query string, args ...interface{}) (result0 []models.User, err error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query users")
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logger.Warn(context.Background(), "Failed to close rows", map[string]interface{}{"error": cerr.Error()})
		}
	}()

	var users []models.User
	for rows.Next() {
		var user models.User
		err = rows.Scan(
			&user.ID, &user.Name, &user.Email, &user.Role, &user.EmployeeID, &user.RollNumber, &user.Year,
			&user.AssignedTeacher, &user.AssignedMentor, &user.Specialization, &user.ContactNumber,
			&user.Department, &user.RegistrationStatus, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
		)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan user")
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate users")
	}
	return users, nil
}

// isDuplicateKeyError checks if the error is a duplicate key constraint violation
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if pqErr, ok := err.(*pq.Error); ok {
		// PostgreSQL error code 23505 is for unique constraint violations
		if pqErr.Code == "23505" {
			return true
		}
	}
	return false
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullIfZero(n int) sql.NullInt32 {
	if n == 0 {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(n), Valid: true}
}
