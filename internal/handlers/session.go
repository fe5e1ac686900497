package handlers

import (
	"errors"

	"complaintdesk/internal/middleware"
	"complaintdesk/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

var (
	// ErrUnauthenticated indicates no current user could be determined
	ErrUnauthenticated = errors.New("user not authenticated")
	// ErrInvalidSession indicates the stored session values are malformed
	ErrInvalidSession = errors.New("invalid session data")
)

// GetUserIDFromSession retrieves the current user ID from the session.
// Returns (0, false) if not authenticated or if the stored value is invalid.
func GetUserIDFromSession(c *gin.Context) (int, bool) {
	session := sessions.Default(c)
	userID := session.Get(middleware.UserIDKey)
	if userID == nil {
		return 0, false
	}
	id, ok := userID.(int)
	if !ok {
		return 0, false
	}
	return id, true
}

// CurrentActor returns the authenticated actor for the request.
// It first checks the Gin context (set by RequireAuth/RequireRole),
// then falls back to the session store.
func CurrentActor(c *gin.Context) (models.Actor, error) {
	if rawID, exists := c.Get(middleware.UserIDKey); exists {
		id, ok := rawID.(int)
		if !ok {
			return models.Actor{}, ErrInvalidSession
		}
		name, _ := c.Get(middleware.UserNameKey)
		nameStr, ok := name.(string)
		if !ok {
			return models.Actor{}, ErrInvalidSession
		}
		roleRaw, _ := c.Get(middleware.UserRoleKey)
		roleStr, ok := roleRaw.(string)
		if !ok || !models.ValidRole(roleStr) {
			return models.Actor{}, ErrInvalidSession
		}
		return models.Actor{ID: id, Name: nameStr, Role: models.Role(roleStr)}, nil
	}

	// Fallback to session lookup if context not populated
	session := sessions.Default(c)
	userID := session.Get(middleware.UserIDKey)
	if userID == nil {
		return models.Actor{}, ErrUnauthenticated
	}
	id, ok := userID.(int)
	if !ok {
		return models.Actor{}, ErrInvalidSession
	}
	name, ok := session.Get(middleware.UserNameKey).(string)
	if !ok {
		return models.Actor{}, ErrInvalidSession
	}
	role, ok := session.Get(middleware.UserRoleKey).(string)
	if !ok || !models.ValidRole(role) {
		return models.Actor{}, ErrInvalidSession
	}
	return models.Actor{ID: id, Name: name, Role: models.Role(role)}, nil
}
