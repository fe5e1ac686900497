package models

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleRank(t *testing.T) {
	tests := []struct {
		role Role
		want int
	}{
		{RoleStudent, 0},
		{RoleTeacher, 1},
		{RoleMentor, 2},
		{RoleHod, 3},
		{Role("admin"), 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.Rank())
		})
	}
}

func TestRoleIsStaff(t *testing.T) {
	assert.False(t, RoleStudent.IsStaff())
	assert.True(t, RoleTeacher.IsStaff())
	assert.True(t, RoleMentor.IsStaff())
	assert.True(t, RoleHod.IsStaff())
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole("student"))
	assert.True(t, ValidRole("hod"))
	assert.False(t, ValidRole("principal"))
	assert.False(t, ValidRole(""))
}

func TestUserMarshalJSONOmitsPasswordHash(t *testing.T) {
	u := User{
		ID:           1,
		Name:         "Arun Kumar",
		Email:        "arun@ece.example.edu",
		PasswordHash: sql.NullString{String: "$2a$10$abc", Valid: true},
		Role:         RoleTeacher,
		Department:   "ECE",
	}

	data, err := json.Marshal(u)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "$2a$10$abc")
	assert.NotContains(t, string(data), "password")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "Arun Kumar", payload["name"])
	assert.Nil(t, payload["roll_number"], "unset null fields serialize as null")
}

func TestUserActor(t *testing.T) {
	u := User{ID: 9, Name: "Meena", Role: RoleMentor}
	actor := u.Actor()
	assert.Equal(t, Actor{ID: 9, Name: "Meena", Role: RoleMentor}, actor)
}
