package services

import (
	"database/sql"
	"testing"

	"complaintdesk/internal/models"
	contextutils "complaintdesk/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func teacherActor() models.Actor { return models.Actor{ID: 10, Name: "Teacher", Role: models.RoleTeacher} }
func mentorActor() models.Actor  { return models.Actor{ID: 20, Name: "Mentor", Role: models.RoleMentor} }
func hodActor() models.Actor     { return models.Actor{ID: 30, Name: "HOD", Role: models.RoleHod} }
func studentActor() models.Actor { return models.Actor{ID: 1, Name: "Student", Role: models.RoleStudent} }

func teacherLevelComplaint() *models.Complaint {
	return &models.Complaint{
		ComplaintID:     "ECE-COMP-2026-AAAA1111",
		StudentID:       sql.NullInt32{Int32: 1, Valid: true},
		CurrentLevel:    models.LevelTeacher,
		AssignedTo:      sql.NullInt32{Int32: 10, Valid: true},
		AssignedTeacher: sql.NullInt32{Int32: 10, Valid: true},
		AssignedMentor:  sql.NullInt32{Int32: 20, Valid: true},
		Status:          models.StatusPending,
	}
}

func TestIsHandler(t *testing.T) {
	c := teacherLevelComplaint()

	assert.True(t, IsHandler(teacherActor(), c))
	assert.False(t, IsHandler(mentorActor(), c))
	assert.False(t, IsHandler(studentActor(), c))

	// another teacher is not the handler
	other := models.Actor{ID: 11, Role: models.RoleTeacher}
	assert.False(t, IsHandler(other, c))

	// pool complaints are handled by any hod
	pool := &models.Complaint{CurrentLevel: models.LevelHod}
	assert.True(t, IsHandler(hodActor(), pool))
	assert.False(t, IsHandler(teacherActor(), pool))
}

func TestHasAuthorityOver(t *testing.T) {
	c := teacherLevelComplaint()

	tests := []struct {
		name  string
		actor models.Actor
		want  bool
	}{
		{name: "assigned teacher", actor: teacherActor(), want: true},
		{name: "unassigned teacher has no authority", actor: models.Actor{ID: 11, Role: models.RoleTeacher}, want: false},
		{name: "mentor outranks teacher level", actor: mentorActor(), want: true},
		{name: "hod outranks teacher level", actor: hodActor(), want: true},
		{name: "student never has authority", actor: studentActor(), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasAuthorityOver(tt.actor, c))
		})
	}
}

func TestEnsureCanUpdateStatus(t *testing.T) {
	c := teacherLevelComplaint()

	tests := []struct {
		name     string
		actor    models.Actor
		status   models.Status
		wantCode contextutils.ErrorCode
	}{
		{name: "handler resolves", actor: teacherActor(), status: models.StatusResolved},
		{name: "handler rejects", actor: teacherActor(), status: models.StatusRejected},
		{name: "handler starts review", actor: teacherActor(), status: models.StatusInReview},
		{name: "higher role steps in", actor: hodActor(), status: models.StatusResolved},
		{name: "student cannot change status", actor: studentActor(), status: models.StatusResolved, wantCode: contextutils.ErrorCodeForbidden},
		{name: "other teacher cannot change status", actor: models.Actor{ID: 11, Role: models.RoleTeacher}, status: models.StatusResolved, wantCode: contextutils.ErrorCodeForbidden},
		{name: "escalated cannot be set directly", actor: teacherActor(), status: models.StatusEscalated, wantCode: contextutils.ErrorCodeInvalidTransition},
		{name: "reopened cannot be set directly", actor: teacherActor(), status: models.StatusReopened, wantCode: contextutils.ErrorCodeInvalidTransition},
		{name: "unknown status", actor: teacherActor(), status: models.Status("Closed"), wantCode: contextutils.ErrorCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := EnsureCanUpdateStatus(tt.actor, c, tt.status)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, contextutils.GetErrorCode(err))
		})
	}
}

func TestEscalationTarget(t *testing.T) {
	c := teacherLevelComplaint()

	next, assignee, err := EscalationTarget(c)
	require.NoError(t, err)
	assert.Equal(t, models.LevelMentor, next)
	assert.Equal(t, sql.NullInt32{Int32: 20, Valid: true}, assignee)

	// mentor level escalates to the unassigned hod pool
	c.CurrentLevel = models.LevelMentor
	c.AssignedTo = sql.NullInt32{Int32: 20, Valid: true}
	next, assignee, err = EscalationTarget(c)
	require.NoError(t, err)
	assert.Equal(t, models.LevelHod, next)
	assert.False(t, assignee.Valid)

	// hod level is terminal
	c.CurrentLevel = models.LevelHod
	_, _, err = EscalationTarget(c)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeTerminalLevel, contextutils.GetErrorCode(err))
}

func TestEnsureCanEscalate(t *testing.T) {
	t.Run("handler escalates whatever the status", func(t *testing.T) {
		for _, status := range []models.Status{models.StatusPending, models.StatusInReview, models.StatusReopened} {
			c := teacherLevelComplaint()
			c.Status = status
			assert.NoError(t, EnsureCanEscalate(teacherActor(), c), "status %s", status)
		}
	})

	t.Run("settled complaints cannot escalate", func(t *testing.T) {
		for _, status := range []models.Status{models.StatusResolved, models.StatusRejected} {
			c := teacherLevelComplaint()
			c.Status = status
			err := EnsureCanEscalate(teacherActor(), c)
			require.Error(t, err)
			assert.Equal(t, contextutils.ErrorCodeInvalidState, contextutils.GetErrorCode(err))
		}
	})

	t.Run("student cannot escalate", func(t *testing.T) {
		err := EnsureCanEscalate(studentActor(), teacherLevelComplaint())
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeForbidden, contextutils.GetErrorCode(err))
	})

	t.Run("terminal level", func(t *testing.T) {
		c := teacherLevelComplaint()
		c.CurrentLevel = models.LevelHod
		c.AssignedTo = sql.NullInt32{}
		err := EnsureCanEscalate(hodActor(), c)
		require.Error(t, err)
		assert.Equal(t, contextutils.ErrorCodeTerminalLevel, contextutils.GetErrorCode(err))
	})
}

func TestEnsureCanReopen(t *testing.T) {
	c := teacherLevelComplaint()
	c.Status = models.StatusResolved

	assert.NoError(t, EnsureCanReopen(c, true))

	err := EnsureCanReopen(c, false)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeForbidden, contextutils.GetErrorCode(err))

	// rejected is final for the author
	c.Status = models.StatusRejected
	err = EnsureCanReopen(c, true)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeInvalidState, contextutils.GetErrorCode(err))

	c.Status = models.StatusPending
	err = EnsureCanReopen(c, true)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeInvalidState, contextutils.GetErrorCode(err))
}

func TestEnsureCanLeaveFeedback(t *testing.T) {
	c := teacherLevelComplaint()
	c.Status = models.StatusResolved

	assert.NoError(t, EnsureCanLeaveFeedback(c, true, 4))

	err := EnsureCanLeaveFeedback(c, false, 4)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeForbidden, contextutils.GetErrorCode(err))

	for _, rating := range []int{0, 6, -1} {
		err = EnsureCanLeaveFeedback(c, true, rating)
		require.Error(t, err, "rating %d", rating)
		assert.Equal(t, contextutils.ErrorCodeValidationFailed, contextutils.GetErrorCode(err))
	}

	c.Status = models.StatusInReview
	err = EnsureCanLeaveFeedback(c, true, 4)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeInvalidState, contextutils.GetErrorCode(err))
}

func TestEnsureCanAddAttachment(t *testing.T) {
	c := teacherLevelComplaint()

	assert.NoError(t, EnsureCanAddAttachment(c, true))

	err := EnsureCanAddAttachment(c, false)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeForbidden, contextutils.GetErrorCode(err))

	for _, status := range []models.Status{models.StatusResolved, models.StatusRejected} {
		c.Status = status
		err = EnsureCanAddAttachment(c, true)
		require.Error(t, err, "status %s", status)
		assert.Equal(t, contextutils.ErrorCodeInvalidState, contextutils.GetErrorCode(err))
	}
}
