// Package middleware provides authentication and authorization middleware for the Gin web framework.
package middleware

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"complaintdesk/internal/models"
)

// Session keys for storing user information
const (
	// UserIDKey is the key used to store user ID in session
	UserIDKey = "user_id"
	// UserNameKey is the key used to store the display name in session
	UserNameKey = "user_name"
	// UserRoleKey is the key used to store the role in session
	UserRoleKey = "user_role"
)

// actorFromSession reads the authenticated principal out of the session.
// ok is false when any piece is missing or malformed.
func actorFromSession(c *gin.Context) (models.Actor, bool) {
	session := sessions.Default(c)

	userID := session.Get(UserIDKey)
	if userID == nil {
		return models.Actor{}, false
	}
	userIDInt, ok := userID.(int)
	if !ok {
		// JSON numbers round-trip through the session store as float64
		userIDFloat, fok := userID.(float64)
		if !fok {
			return models.Actor{}, false
		}
		userIDInt = int(userIDFloat)
	}

	name, ok := session.Get(UserNameKey).(string)
	if !ok || name == "" {
		return models.Actor{}, false
	}
	role, ok := session.Get(UserRoleKey).(string)
	if !ok || !models.ValidRole(role) {
		return models.Actor{}, false
	}

	return models.Actor{ID: userIDInt, Name: name, Role: models.Role(role)}, true
}

func abortUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error": "Authentication required",
		"code":  "UNAUTHORIZED",
	})
	c.Abort()
}

// RequireAuth returns a middleware that requires authentication
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromSession(c)
		if !ok {
			abortUnauthorized(c)
			return
		}

		// Store the principal in context for handlers to use
		c.Set(UserIDKey, actor.ID)
		c.Set(UserNameKey, actor.Name)
		c.Set(UserRoleKey, string(actor.Role))

		c.Next()
	}
}

// RequireRole returns a middleware that requires authentication and one of
// the given roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(c *gin.Context) {
		actor, ok := actorFromSession(c)
		if !ok {
			abortUnauthorized(c)
			return
		}

		if !allowed[actor.Role] {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Insufficient role",
				"code":  "FORBIDDEN",
			})
			c.Abort()
			return
		}

		c.Set(UserIDKey, actor.ID)
		c.Set(UserNameKey, actor.Name)
		c.Set(UserRoleKey, string(actor.Role))

		c.Next()
	}
}

// RequireStaff is shorthand for the three complaint-handling roles.
func RequireStaff() gin.HandlerFunc {
	return RequireRole(models.RoleTeacher, models.RoleMentor, models.RoleHod)
}
