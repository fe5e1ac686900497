// Package models defines data structures used throughout the complaint desk application.
package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Role identifies the position a user holds in the department hierarchy.
type Role string

// User roles, ordered from lowest to highest authority over complaints.
const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleMentor  Role = "mentor"
	RoleHod     Role = "hod"
)

// ValidRole reports whether the given string is a known role.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleStudent, RoleTeacher, RoleMentor, RoleHod:
		return true
	}
	return false
}

// Rank returns the authority rank of a role for handler comparisons.
// Students have no handler authority.
func (r Role) Rank() int {
	switch r {
	case RoleTeacher:
		return 1
	case RoleMentor:
		return 2
	case RoleHod:
		return 3
	default:
		return 0
	}
}

// IsStaff reports whether the role handles complaints rather than filing them.
func (r Role) IsStaff() bool {
	return r == RoleTeacher || r == RoleMentor || r == RoleHod
}

// RegistrationStatus values for staff signup approval.
const (
	RegistrationPending  = "pending"
	RegistrationApproved = "approved"
	RegistrationRejected = "rejected"
)

// User represents a user in the system
type User struct {
	ID                 int            `json:"id" yaml:"id"`
	Name               string         `json:"name" yaml:"name"`
	Email              string         `json:"email" yaml:"email"`
	PasswordHash       sql.NullString `json:"-" yaml:"-"` // Omit from JSON responses
	Role               Role           `json:"role" yaml:"role"`
	EmployeeID         sql.NullString `json:"employee_id" yaml:"employee_id"`
	RollNumber         sql.NullString `json:"roll_number" yaml:"roll_number"`
	Year               sql.NullInt32  `json:"year" yaml:"year"`
	AssignedTeacher    sql.NullInt32  `json:"assigned_teacher" yaml:"assigned_teacher"`
	AssignedMentor     sql.NullInt32  `json:"assigned_mentor" yaml:"assigned_mentor"`
	Specialization     sql.NullString `json:"specialization" yaml:"specialization"`
	ContactNumber      sql.NullString `json:"contact_number" yaml:"contact_number"`
	Department         string         `json:"department" yaml:"department"`
	RegistrationStatus string         `json:"registration_status" yaml:"registration_status"`
	IsActive           bool           `json:"is_active" yaml:"is_active"`
	CreatedAt          time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at" yaml:"updated_at"`
}

// Actor is the authenticated principal attached to every core operation.
// It is supplied by the auth layer; the core trusts it as already
// authenticated at the transport boundary.
type Actor struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Actor derives the acting principal from a user record.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Name: u.Name, Role: u.Role}
}

// MarshalJSON customizes JSON marshaling for User to handle sql.Null types properly
func (u User) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID                 int       `json:"id"`
		Name               string    `json:"name"`
		Email              string    `json:"email"`
		Role               Role      `json:"role"`
		EmployeeID         *string   `json:"employee_id"`
		RollNumber         *string   `json:"roll_number"`
		Year               *int32    `json:"year"`
		AssignedTeacher    *int32    `json:"assigned_teacher"`
		AssignedMentor     *int32    `json:"assigned_mentor"`
		Specialization     *string   `json:"specialization"`
		ContactNumber      *string   `json:"contact_number"`
		Department         string    `json:"department"`
		RegistrationStatus string    `json:"registration_status"`
		IsActive           bool      `json:"is_active"`
		CreatedAt          time.Time `json:"created_at"`
		UpdatedAt          time.Time `json:"updated_at"`
	}{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Role:               u.Role,
		EmployeeID:         nullStringToPointer(u.EmployeeID),
		RollNumber:         nullStringToPointer(u.RollNumber),
		Year:               nullInt32ToPointer(u.Year),
		AssignedTeacher:    nullInt32ToPointer(u.AssignedTeacher),
		AssignedMentor:     nullInt32ToPointer(u.AssignedMentor),
		Specialization:     nullStringToPointer(u.Specialization),
		ContactNumber:      nullStringToPointer(u.ContactNumber),
		Department:         u.Department,
		RegistrationStatus: u.RegistrationStatus,
		IsActive:           u.IsActive,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	})
}

// Helper functions for converting sql.Null types to pointers
func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

func nullInt32ToPointer(ni sql.NullInt32) *int32 {
	if ni.Valid {
		return &ni.Int32
	}
	return nil
}
