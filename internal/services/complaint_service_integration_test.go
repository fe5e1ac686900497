//go:build integration
// +build integration

package services

import (
	"context"
	"database/sql"
	"testing"

	"complaintdesk/internal/config"
	"complaintdesk/internal/models"
	"complaintdesk/internal/observability"
	contextutils "complaintdesk/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type complaintFixture struct {
	svc      *ComplaintService
	users    *UserService
	identity *IdentityService
	audit    *AuditService
	student  *models.User
	teacher  *models.User
	mentor   *models.User
	hod      *models.User
}

func setupComplaintFixture(t *testing.T, db *sql.DB) *complaintFixture {
	t.Helper()
	ctx := context.Background()
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	cfg := testConfig()

	audit := NewAuditService(db, logger)
	identity, err := NewIdentityService(db, logger, cfg.Privacy.EncryptionKey, audit)
	require.NoError(t, err)
	users := NewUserService(db, cfg, logger, audit, nil)
	notifier := NewNotificationService(db, logger, nil)
	svc := NewComplaintService(db, logger, cfg, identity, notifier)

	fx := &complaintFixture{svc: svc, users: users, identity: identity, audit: audit}

	seed := func(name, email string, role models.Role) *models.User {
		var id int
		err := db.QueryRowContext(ctx,
			`INSERT INTO users (name, email, password_hash, role, department, registration_status, is_active, created_at, updated_at)
			 VALUES ($1, $2, 'x', $3, 'ECE', 'approved', TRUE, NOW(), NOW()) RETURNING id`,
			name, email, role).Scan(&id)
		require.NoError(t, err)
		u, err := users.GetUserByID(ctx, id)
		require.NoError(t, err)
		return u
	}

	fx.hod = seed("HOD", "hod@test.local", models.RoleHod)
	fx.mentor = seed("Mentor", "mentor@test.local", models.RoleMentor)
	fx.teacher = seed("Teacher", "teacher@test.local", models.RoleTeacher)
	fx.student = seed("Student", "student@test.local", models.RoleStudent)

	_, err = db.ExecContext(ctx,
		`UPDATE users SET assigned_teacher = $1, assigned_mentor = $2 WHERE id = $3`,
		fx.teacher.ID, fx.mentor.ID, fx.student.ID)
	require.NoError(t, err)
	fx.student, err = users.GetUserByID(ctx, fx.student.ID)
	require.NoError(t, err)

	return fx
}

func TestComplaintLifecycle_FullEscalationPath(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	fx := setupComplaintFixture(t, db)
	ctx := context.Background()

	c, err := fx.svc.CreateComplaint(ctx, fx.student, &SubmitComplaintInput{
		Title:       "Broken oscilloscope in lab 2",
		Description: "Channel B shows no trace.",
		Category:    models.CategoryLabEquipment,
	})
	require.NoError(t, err)
	assert.Regexp(t, `^ECE-COMP-\d{4}-[0-9A-F]{8}$`, c.ComplaintID)
	assert.Equal(t, models.StatusPending, c.Status)
	assert.Equal(t, models.LevelTeacher, c.CurrentLevel)
	assert.Equal(t, models.PriorityMedium, c.Priority, "priority defaults to Medium")
	assert.Equal(t, int32(fx.teacher.ID), c.AssignedTo.Int32)

	// teacher starts review
	c, err = fx.svc.UpdateStatus(ctx, fx.teacher.Actor(), c.ComplaintID, models.StatusInReview, "taking a look")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInReview, c.Status)
	require.Len(t, c.ResolutionNotes, 1)
	assert.Equal(t, "Status changed to In Review", c.ResolutionNotes[0].Action)

	// teacher escalates to the mentor
	c, err = fx.svc.Escalate(ctx, fx.teacher.Actor(), c.ComplaintID, "needs budget approval")
	require.NoError(t, err)
	assert.Equal(t, models.LevelMentor, c.CurrentLevel)
	assert.Equal(t, int32(fx.mentor.ID), c.AssignedTo.Int32)
	assert.Equal(t, models.StatusEscalated, c.Status)
	require.Len(t, c.EscalationHistory, 1)
	assert.Equal(t, models.LevelTeacher, c.EscalationHistory[0].From)

	// mentor escalates to the hod pool
	c, err = fx.svc.Escalate(ctx, fx.mentor.Actor(), c.ComplaintID, "department-level decision")
	require.NoError(t, err)
	assert.Equal(t, models.LevelHod, c.CurrentLevel)
	assert.True(t, c.InHodPool())

	// pool complaints show up in the hod queue
	pool, err := fx.svc.ListHodPool(ctx, fx.hod.Actor())
	require.NoError(t, err)
	require.Len(t, pool, 1)

	// escalating past hod fails
	_, err = fx.svc.Escalate(ctx, fx.hod.Actor(), c.ComplaintID, "even higher")
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeTerminalLevel, contextutils.GetErrorCode(err))

	// hod resolves
	c, err = fx.svc.UpdateStatus(ctx, fx.hod.Actor(), c.ComplaintID, models.StatusResolved, "new unit ordered")
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, c.Status)
	assert.True(t, c.ResolvedAt.Valid)

	// student rates the resolution
	c, err = fx.svc.AttachFeedback(ctx, fx.student.Actor(), c.ComplaintID, 4, "quick turnaround")
	require.NoError(t, err)
	require.NotNil(t, c.Feedback)
	assert.Equal(t, 4, c.Feedback.Rating)

	// and reopens it; routing resets to the original teacher
	c, err = fx.svc.Reopen(ctx, fx.student.Actor(), c.ComplaintID, "still broken")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReopened, c.Status)
	assert.Equal(t, models.LevelTeacher, c.CurrentLevel)
	assert.Equal(t, int32(fx.teacher.ID), c.AssignedTo.Int32)
	assert.Equal(t, 1, c.ReopenCount)
	assert.False(t, c.ResolvedAt.Valid)
	assert.Nil(t, c.Feedback, "feedback resets with the new resolution cycle")
}

func TestComplaintAccess_Authority(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	fx := setupComplaintFixture(t, db)
	ctx := context.Background()

	c, err := fx.svc.CreateComplaint(ctx, fx.student, &SubmitComplaintInput{
		Title:       "Projector flickers",
		Description: "Room 204 projector flickers constantly.",
		Category:    models.CategoryInfrastructure,
	})
	require.NoError(t, err)

	// an unassigned teacher cannot act on it
	var otherID int
	err = db.QueryRowContext(ctx,
		`INSERT INTO users (name, email, password_hash, role, department, registration_status, is_active, created_at, updated_at)
		 VALUES ('Other', 'other@test.local', 'x', 'teacher', 'ECE', 'approved', TRUE, NOW(), NOW()) RETURNING id`).Scan(&otherID)
	require.NoError(t, err)
	other := models.Actor{ID: otherID, Name: "Other", Role: models.RoleTeacher}

	_, err = fx.svc.UpdateStatus(ctx, other, c.ComplaintID, models.StatusResolved, "")
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeForbidden, contextutils.GetErrorCode(err))
	_, err = fx.svc.GetForActor(ctx, other, c.ComplaintID)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeForbidden, contextutils.GetErrorCode(err))

	// a mentor outranks the teacher level and can resolve directly
	_, err = fx.svc.UpdateStatus(ctx, fx.mentor.Actor(), c.ComplaintID, models.StatusResolved, "fixed during rounds")
	require.NoError(t, err)
}

func TestAnonymousComplaint_IdentityProtection(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	fx := setupComplaintFixture(t, db)
	ctx := context.Background()

	c, err := fx.svc.CreateComplaint(ctx, fx.student, &SubmitComplaintInput{
		Title:       "Faculty behavior concern",
		Description: "Details withheld.",
		Category:    models.CategoryFaculty,
		IsAnonymous: true,
	})
	require.NoError(t, err)
	assert.Equal(t, config.AnonymousDisplayName, c.StudentName)
	assert.False(t, c.StudentID.Valid, "anonymous complaints store no author id")
	assert.True(t, c.IdentityToken.Valid)

	// only the hod can reveal, and the reveal is audited
	_, err = fx.svc.RevealIdentity(ctx, fx.teacher.Actor(), c.ComplaintID)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeForbidden, contextutils.GetErrorCode(err))

	revealed, err := fx.svc.RevealIdentity(ctx, fx.hod.Actor(), c.ComplaintID)
	require.NoError(t, err)
	assert.Equal(t, fx.student.ID, revealed.ID)

	entries, err := fx.audit.ListForComplaint(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditViewAnonymousIdentity, entries[0].Action)
	assert.Equal(t, fx.hod.ID, entries[0].PerformedBy)

	// the author can still reopen and rate through the identity check
	_, err = fx.svc.UpdateStatus(ctx, fx.teacher.Actor(), c.ComplaintID, models.StatusResolved, "addressed")
	require.NoError(t, err)
	_, err = fx.svc.AttachFeedback(ctx, fx.student.Actor(), c.ComplaintID, 5, "")
	require.NoError(t, err)
	_, err = fx.svc.Reopen(ctx, fx.student.Actor(), c.ComplaintID, "not addressed")
	require.NoError(t, err)

	// but another student cannot
	var impostorID int
	err = db.QueryRowContext(ctx,
		`INSERT INTO users (name, email, password_hash, role, department, registration_status, is_active, created_at, updated_at)
		 VALUES ('Impostor', 'impostor@test.local', 'x', 'student', 'ECE', 'approved', TRUE, NOW(), NOW()) RETURNING id`).Scan(&impostorID)
	require.NoError(t, err)
	_, err = fx.svc.UpdateStatus(ctx, fx.teacher.Actor(), c.ComplaintID, models.StatusResolved, "addressed again")
	require.NoError(t, err)
	_, err = fx.svc.Reopen(ctx, models.Actor{ID: impostorID, Role: models.RoleStudent}, c.ComplaintID, "not mine")
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeForbidden, contextutils.GetErrorCode(err))
}

func TestListForActor_Scoping(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	fx := setupComplaintFixture(t, db)
	ctx := context.Background()

	_, err := fx.svc.CreateComplaint(ctx, fx.student, &SubmitComplaintInput{
		Title:       "Attendance not recorded",
		Description: "March attendance is missing.",
		Category:    models.CategoryAttendance,
	})
	require.NoError(t, err)
	_, err = fx.svc.CreateComplaint(ctx, fx.student, &SubmitComplaintInput{
		Title:       "Anonymous issue",
		Description: "Withheld.",
		Category:    models.CategoryOthers,
		IsAnonymous: true,
	})
	require.NoError(t, err)

	mine, err := fx.svc.ListForActor(ctx, fx.student.Actor(), ComplaintFilters{})
	require.NoError(t, err)
	assert.Len(t, mine, 2, "students see their anonymous complaints too")

	teacherQueue, err := fx.svc.ListForActor(ctx, fx.teacher.Actor(), ComplaintFilters{})
	require.NoError(t, err)
	assert.Len(t, teacherQueue, 2)

	all, err := fx.svc.ListForActor(ctx, fx.hod.Actor(), ComplaintFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := fx.svc.ListForActor(ctx, fx.hod.Actor(), ComplaintFilters{Category: string(models.CategoryAttendance)})
	require.NoError(t, err)
	assert.Len(t, filtered, 1)
}
