package services

import (
	"database/sql"
	"testing"

	"complaintdesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanTransitionSubmitted(t *testing.T) {
	c := teacherLevelComplaint()
	plan := PlanTransition(TransitionEvent{
		Kind:      TransitionSubmitted,
		Complaint: c,
		Actor:     studentActor(),
		StudentID: 1,
	})

	require.Len(t, plan, 2)
	assert.Equal(t, 10, plan[0].RecipientID, "assigned teacher is told first")
	assert.Equal(t, models.NotificationNewComplaint, plan[0].Type)
	assert.Equal(t, "complaint_assigned", plan[0].EmailTemplate)
	assert.Equal(t, 1, plan[1].RecipientID, "author gets a confirmation")
	assert.Equal(t, "complaint_confirmation", plan[1].EmailTemplate)
}

func TestPlanTransitionStatusChanged(t *testing.T) {
	c := teacherLevelComplaint()
	c.Status = models.StatusResolved

	plan := PlanTransition(TransitionEvent{
		Kind:      TransitionStatusChanged,
		Complaint: c,
		Actor:     teacherActor(),
		OldStatus: models.StatusInReview,
		NewStatus: models.StatusResolved,
	})

	require.Len(t, plan, 1)
	assert.Equal(t, 1, plan[0].RecipientID)
	assert.Equal(t, models.NotificationStatusUpdate, plan[0].Type)
	assert.Contains(t, plan[0].Message, "Resolved")
}

func TestPlanTransitionNeverAddressesAnonymousAuthor(t *testing.T) {
	c := teacherLevelComplaint()
	c.IsAnonymous = true
	c.StudentID = sql.NullInt32{}
	c.Status = models.StatusResolved

	plan := PlanTransition(TransitionEvent{
		Kind:      TransitionStatusChanged,
		Complaint: c,
		Actor:     teacherActor(),
		NewStatus: models.StatusResolved,
	})
	assert.Empty(t, plan, "no notification row may link back to an anonymous author")
}

func TestPlanTransitionEscalatedToMentor(t *testing.T) {
	c := teacherLevelComplaint()
	c.CurrentLevel = models.LevelMentor
	c.AssignedTo = sql.NullInt32{Int32: 20, Valid: true}
	c.Status = models.StatusEscalated

	plan := PlanTransition(TransitionEvent{
		Kind:      TransitionEscalated,
		Complaint: c,
		Actor:     teacherActor(),
		FromLevel: models.LevelTeacher,
		ToLevel:   models.LevelMentor,
		Reason:    "needs mentor attention",
	})

	require.Len(t, plan, 2)
	assert.Equal(t, 20, plan[0].RecipientID)
	assert.Equal(t, models.NotificationEscalation, plan[0].Type)
	assert.Equal(t, 1, plan[1].RecipientID, "author is told their complaint moved")
}

func TestPlanTransitionEscalatedToHodPool(t *testing.T) {
	c := teacherLevelComplaint()
	c.CurrentLevel = models.LevelHod
	c.AssignedTo = sql.NullInt32{}
	c.Status = models.StatusEscalated

	plan := PlanTransition(TransitionEvent{
		Kind:      TransitionEscalated,
		Complaint: c,
		Actor:     mentorActor(),
		FromLevel: models.LevelMentor,
		ToLevel:   models.LevelHod,
		Reason:    "beyond mentor scope",
	})

	require.Len(t, plan, 2)
	assert.Zero(t, plan[0].RecipientID)
	assert.Equal(t, models.RoleHod, plan[0].RecipientRole, "pool escalations broadcast to every hod")
}

func TestPlanTransitionReopened(t *testing.T) {
	c := teacherLevelComplaint()
	c.Status = models.StatusReopened

	plan := PlanTransition(TransitionEvent{
		Kind:      TransitionReopened,
		Complaint: c,
		Actor:     studentActor(),
		Reason:    "issue came back",
	})

	require.Len(t, plan, 1)
	assert.Equal(t, 10, plan[0].RecipientID)
	assert.Equal(t, models.NotificationReopened, plan[0].Type)
	assert.Contains(t, plan[0].Message, "issue came back")
}

func TestPlanTransitionFeedback(t *testing.T) {
	c := teacherLevelComplaint()
	c.Status = models.StatusResolved
	c.Feedback = &models.Feedback{Rating: 5}

	plan := PlanTransition(TransitionEvent{
		Kind:      TransitionFeedback,
		Complaint: c,
		Actor:     studentActor(),
	})

	require.Len(t, plan, 1)
	assert.Equal(t, 10, plan[0].RecipientID)
	assert.Equal(t, models.NotificationFeedback, plan[0].Type)
	assert.Empty(t, plan[0].EmailTemplate, "feedback stays in-app")
}
