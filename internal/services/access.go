package services

import (
	"database/sql"

	"complaintdesk/internal/models"
)

// CanAccess is the single read-access policy for complaints. Every read
// path funnels through it so visibility rules cannot drift between
// endpoints.
//
// isOwner is the resolved authorship of the complaint for this actor:
// for named complaints it is a plain ID comparison, for anonymous ones
// the caller establishes it through the identity service first.
func CanAccess(actor models.Actor, c *models.Complaint, isOwner bool) bool {
	if isOwner {
		return true
	}
	switch actor.Role {
	case models.RoleHod:
		// The HOD oversees the whole department.
		return true
	case models.RoleMentor:
		return matchesID(c.AssignedTo, actor.ID) || matchesID(c.AssignedMentor, actor.ID)
	case models.RoleTeacher:
		// Teachers keep visibility into complaints that escalated past them.
		return matchesID(c.AssignedTo, actor.ID) || matchesID(c.AssignedTeacher, actor.ID)
	default:
		return false
	}
}

func matchesID(n sql.NullInt32, id int) bool {
	return n.Valid && int(n.Int32) == id
}
