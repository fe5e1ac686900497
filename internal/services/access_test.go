package services

import (
	"database/sql"
	"testing"

	"complaintdesk/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanAccess(t *testing.T) {
	c := &models.Complaint{
		StudentID:       sql.NullInt32{Int32: 1, Valid: true},
		CurrentLevel:    models.LevelMentor,
		AssignedTo:      sql.NullInt32{Int32: 20, Valid: true},
		AssignedTeacher: sql.NullInt32{Int32: 10, Valid: true},
		AssignedMentor:  sql.NullInt32{Int32: 20, Valid: true},
	}

	tests := []struct {
		name    string
		actor   models.Actor
		isOwner bool
		want    bool
	}{
		{name: "owner always sees their complaint", actor: studentActor(), isOwner: true, want: true},
		{name: "other student sees nothing", actor: models.Actor{ID: 2, Role: models.RoleStudent}, want: false},
		{name: "assigned mentor", actor: mentorActor(), want: true},
		{name: "other mentor", actor: models.Actor{ID: 21, Role: models.RoleMentor}, want: false},
		{name: "original teacher keeps visibility after escalation", actor: teacherActor(), want: true},
		{name: "unrelated teacher", actor: models.Actor{ID: 11, Role: models.RoleTeacher}, want: false},
		{name: "hod sees everything", actor: hodActor(), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccess(tt.actor, c, tt.isOwner))
		})
	}
}

func TestCanAccessHodPool(t *testing.T) {
	pool := &models.Complaint{CurrentLevel: models.LevelHod}

	assert.True(t, CanAccess(hodActor(), pool, false))
	assert.False(t, CanAccess(teacherActor(), pool, false))
	assert.False(t, CanAccess(mentorActor(), pool, false))
}
