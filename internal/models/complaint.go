package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Level is the role tier currently responsible for a complaint.
type Level string

// Escalation levels in ascending order. The hierarchy is fixed with no cycles.
const (
	LevelTeacher Level = "teacher"
	LevelMentor  Level = "mentor"
	LevelHod     Level = "hod"
)

// ValidLevel reports whether the given string is a known escalation level.
func ValidLevel(s string) bool {
	switch Level(s) {
	case LevelTeacher, LevelMentor, LevelHod:
		return true
	}
	return false
}

// Next returns the next escalation level. ok is false at the terminal level.
func (l Level) Next() (next Level, ok bool) {
	switch l {
	case LevelTeacher:
		return LevelMentor, true
	case LevelMentor:
		return LevelHod, true
	default:
		return l, false
	}
}

// Role returns the handler role that owns complaints at this level.
func (l Level) Role() Role {
	switch l {
	case LevelTeacher:
		return RoleTeacher
	case LevelMentor:
		return RoleMentor
	case LevelHod:
		return RoleHod
	default:
		return ""
	}
}

// Rank returns the position of the level in the hierarchy (teacher=1).
func (l Level) Rank() int {
	return l.Role().Rank()
}

// Status tracks a complaint through its lifecycle.
type Status string

// Complaint statuses.
const (
	StatusPending   Status = "Pending"
	StatusInReview  Status = "In Review"
	StatusResolved  Status = "Resolved"
	StatusEscalated Status = "Escalated"
	StatusRejected  Status = "Rejected"
	StatusReopened  Status = "Reopened"
)

// ValidStatus reports whether the given string is a known status.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusInReview, StatusResolved, StatusEscalated, StatusRejected, StatusReopened:
		return true
	}
	return false
}

// IsSettled reports whether the status closes the current resolution cycle.
// Settled complaints carry a resolvedAt timestamp.
func (s Status) IsSettled() bool {
	return s == StatusResolved || s == StatusRejected
}

// Category is the closed set of complaint subjects.
type Category string

// Complaint categories.
const (
	CategoryLabEquipment   Category = "Lab Equipment"
	CategoryInfrastructure Category = "Classroom Infrastructure"
	CategoryFaculty        Category = "Faculty Related"
	CategoryAcademic       Category = "Academic Issues"
	CategoryProject        Category = "Project/Internship"
	CategoryExam           Category = "Exam Related"
	CategoryAttendance     Category = "Attendance Issues"
	CategoryTimetable      Category = "Timetable Issues"
	CategoryOthers         Category = "Others"
)

// Categories returns every valid complaint category.
func Categories() []Category {
	return []Category{
		CategoryLabEquipment,
		CategoryInfrastructure,
		CategoryFaculty,
		CategoryAcademic,
		CategoryProject,
		CategoryExam,
		CategoryAttendance,
		CategoryTimetable,
		CategoryOthers,
	}
}

// ValidCategory reports whether the given string is a known category.
func ValidCategory(s string) bool {
	for _, c := range Categories() {
		if Category(s) == c {
			return true
		}
	}
	return false
}

// Priority of a complaint.
type Priority string

// Complaint priorities.
const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// ValidPriority reports whether the given string is a known priority.
func ValidPriority(s string) bool {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Attachment is a stored file reference. The core never holds file bytes,
// only the URL the storage collaborator returned.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// ResolutionNote is one entry in a complaint's append-only resolution log.
type ResolutionNote struct {
	ResolvedBy   int       `json:"resolved_by"`
	ResolverName string    `json:"resolver_name"`
	Role         Role      `json:"role"`
	Note         string    `json:"note"`
	Action       string    `json:"action"`
	Timestamp    time.Time `json:"timestamp"`
}

// EscalationEntry is one entry in a complaint's append-only escalation log.
type EscalationEntry struct {
	From        Level     `json:"from"`
	To          Level     `json:"to"`
	Reason      string    `json:"reason"`
	EscalatedBy int       `json:"escalated_by"`
	Timestamp   time.Time `json:"timestamp"`
}

// Feedback is the single per-resolution-cycle rating slot on a complaint.
type Feedback struct {
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Complaint is a ticket raised by a student, tracked through escalation
// levels to resolution. It is the aggregate root of the system.
type Complaint struct {
	ID          int    `json:"id"`
	ComplaintID string `json:"complaint_id"` // human-readable, unique, immutable

	// Identity. For anonymous complaints StudentID is never stored; only
	// IdentityToken carries the (encrypted) author reference and StudentName
	// holds a placeholder display name.
	StudentID     sql.NullInt32  `json:"student_id"`
	StudentName   string         `json:"student_name"`
	IsAnonymous   bool           `json:"is_anonymous"`
	IdentityToken sql.NullString `json:"-"` // encrypted; revealed only via the identity service

	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    Category     `json:"category"`
	Priority    Priority     `json:"priority"`
	Attachments []Attachment `json:"attachments"`

	// Hierarchical assignment. AssignedTo NULL at hod level means the
	// complaint sits in the HOD pool, not that assignment failed.
	CurrentLevel    Level         `json:"current_level"`
	AssignedTo      sql.NullInt32 `json:"assigned_to"`
	AssignedTeacher sql.NullInt32 `json:"assigned_teacher"`
	AssignedMentor  sql.NullInt32 `json:"assigned_mentor"`

	Status Status `json:"status"`

	ResolutionNotes   []ResolutionNote  `json:"resolution_notes"`
	EscalationHistory []EscalationEntry `json:"escalation_history"`

	IsReopened   bool           `json:"is_reopened"`
	ReopenReason sql.NullString `json:"reopen_reason"`
	ReopenedAt   sql.NullTime   `json:"reopened_at"`
	ReopenCount  int            `json:"reopen_count"`

	Feedback *Feedback `json:"feedback,omitempty"`

	ResolvedAt sql.NullTime `json:"resolved_at"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// InHodPool reports whether the complaint is owned by the HOD pool rather
// than an individual handler.
func (c *Complaint) InHodPool() bool {
	return c.CurrentLevel == LevelHod && !c.AssignedTo.Valid
}

// OwnedBy reports whether the given user ID is the complaint's (visible)
// author. Always false for anonymous complaints; ownership of those is
// established through the identity service.
func (c *Complaint) OwnedBy(userID int) bool {
	return !c.IsAnonymous && c.StudentID.Valid && int(c.StudentID.Int32) == userID
}

// MarshalJSON customizes JSON marshaling so sql.Null types serialize as
// nullable values and the encrypted identity token never leaves the server.
func (c Complaint) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID                int               `json:"id"`
		ComplaintID       string            `json:"complaint_id"`
		StudentID         *int32            `json:"student_id"`
		StudentName       string            `json:"student_name"`
		IsAnonymous       bool              `json:"is_anonymous"`
		Title             string            `json:"title"`
		Description       string            `json:"description"`
		Category          Category          `json:"category"`
		Priority          Priority          `json:"priority"`
		Attachments       []Attachment      `json:"attachments"`
		CurrentLevel      Level             `json:"current_level"`
		AssignedTo        *int32            `json:"assigned_to"`
		AssignedTeacher   *int32            `json:"assigned_teacher"`
		AssignedMentor    *int32            `json:"assigned_mentor"`
		Status            Status            `json:"status"`
		ResolutionNotes   []ResolutionNote  `json:"resolution_notes"`
		EscalationHistory []EscalationEntry `json:"escalation_history"`
		IsReopened        bool              `json:"is_reopened"`
		ReopenReason      *string           `json:"reopen_reason"`
		ReopenedAt        *time.Time        `json:"reopened_at"`
		ReopenCount       int               `json:"reopen_count"`
		Feedback          *Feedback         `json:"feedback,omitempty"`
		ResolvedAt        *time.Time        `json:"resolved_at"`
		CreatedAt         time.Time         `json:"created_at"`
		UpdatedAt         time.Time         `json:"updated_at"`
	}{
		ID:                c.ID,
		ComplaintID:       c.ComplaintID,
		StudentID:         anonymizedStudentID(c),
		StudentName:       c.StudentName,
		IsAnonymous:       c.IsAnonymous,
		Title:             c.Title,
		Description:       c.Description,
		Category:          c.Category,
		Priority:          c.Priority,
		Attachments:       c.Attachments,
		CurrentLevel:      c.CurrentLevel,
		AssignedTo:        nullInt32ToPointer(c.AssignedTo),
		AssignedTeacher:   nullInt32ToPointer(c.AssignedTeacher),
		AssignedMentor:    nullInt32ToPointer(c.AssignedMentor),
		Status:            c.Status,
		ResolutionNotes:   c.ResolutionNotes,
		EscalationHistory: c.EscalationHistory,
		IsReopened:        c.IsReopened,
		ReopenReason:      nullStringToPointer(c.ReopenReason),
		ReopenedAt:        nullTimeToPointer(c.ReopenedAt),
		ReopenCount:       c.ReopenCount,
		Feedback:          c.Feedback,
		ResolvedAt:        nullTimeToPointer(c.ResolvedAt),
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	})
}

// anonymizedStudentID hides the author reference for anonymous complaints
// on every read path.
func anonymizedStudentID(c Complaint) *int32 {
	if c.IsAnonymous {
		return nil
	}
	return nullInt32ToPointer(c.StudentID)
}
