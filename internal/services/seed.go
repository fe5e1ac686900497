package services

import (
	"context"
	"database/sql"
	"time"

	"complaintdesk/internal/models"
	"complaintdesk/internal/observability"
	contextutils "complaintdesk/internal/utils"

	"golang.org/x/crypto/bcrypt"
)

// demoUser describes one seeded demo account.
type demoUser struct {
	name       string
	email      string
	password   string
	role       models.Role
	rollNumber string
	employeeID string
	year       int
}

var demoUsers = []demoUser{
	{name: "Dr. Ravi Menon", email: "hod@demo.local", password: "hod12345", role: models.RoleHod, employeeID: "EMP-001"},
	{name: "Sunita Rao", email: "mentor@demo.local", password: "mentor123", role: models.RoleMentor, employeeID: "EMP-014"},
	{name: "Arun Kumar", email: "teacher@demo.local", password: "teacher123", role: models.RoleTeacher, employeeID: "EMP-027"},
	{name: "Priya Sharma", email: "student1@demo.local", password: "student123", role: models.RoleStudent, rollNumber: "21EC041", year: 3},
	{name: "Vikram Nair", email: "student2@demo.local", password: "student123", role: models.RoleStudent, rollNumber: "21EC042", year: 3},
}

// SeedDemoData provisions a small set of demo accounts wired together:
// an HOD, a mentor, a teacher, and two students routed to them. It is
// idempotent and intended to be run explicitly from the admin CLI, never
// from the request path.
func (s *UserService) SeedDemoData(ctx context.Context) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "seed_demo_data")
	defer observability.FinishSpan(span, &err)

	now := time.Now()
	ids := make(map[string]int, len(demoUsers))

	for _, du := range demoUsers {
		existing, gerr := s.GetUserByEmail(ctx, du.email)
		if gerr == nil {
			ids[du.email] = existing.ID
			continue
		}
		if !contextutils.IsError(gerr, contextutils.ErrRecordNotFound) {
			return contextutils.WrapError(gerr, "failed to check for demo user")
		}

		hashedPassword, herr := bcrypt.GenerateFromPassword([]byte(du.password), bcrypt.DefaultCost)
		if herr != nil {
			return contextutils.WrapError(herr, "failed to hash demo password")
		}

		var id int
		err = s.db.QueryRowContext(ctx,
			`INSERT INTO users (name, email, password_hash, role, employee_id, roll_number, year,
				department, registration_status, is_active, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,TRUE,$10,$10) RETURNING id`,
			du.name, du.email, string(hashedPassword), du.role,
			nullIfEmpty(du.employeeID), nullIfEmpty(du.rollNumber), nullIfZero(du.year),
			s.cfg.Server.Department, models.RegistrationApproved, now).
			Scan(&id)
		if err != nil {
			return contextutils.WrapError(err, "failed to insert demo user")
		}
		ids[du.email] = id
		s.logger.Info(ctx, "Demo user created", map[string]interface{}{
			"email": du.email,
			"role":  du.role,
		})
	}

	// Route the demo students through the demo teacher and mentor.
	teacherID := sql.NullInt32{Int32: int32(ids["teacher@demo.local"]), Valid: true}
	mentorID := sql.NullInt32{Int32: int32(ids["mentor@demo.local"]), Valid: true}
	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET assigned_teacher = $1, assigned_mentor = $2, updated_at = $3
		 WHERE email IN ('student1@demo.local', 'student2@demo.local')`,
		teacherID, mentorID, now)
	if err != nil {
		return contextutils.WrapError(err, "failed to wire demo assignments")
	}

	s.logger.Info(ctx, "Demo data seeded", map[string]interface{}{"users": len(demoUsers)})
	return nil
}
