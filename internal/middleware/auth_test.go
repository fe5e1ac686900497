package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"complaintdesk/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupAuthRouter(authorize gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	router.Use(sessions.Sessions("test-session", store))

	router.POST("/login", func(c *gin.Context) {
		session := sessions.Default(c)
		session.Set(UserIDKey, 7)
		session.Set(UserNameKey, c.Query("name"))
		session.Set(UserRoleKey, c.Query("role"))
		_ = session.Save()
		c.Status(http.StatusOK)
	})
	router.GET("/protected", authorize, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetInt(UserIDKey),
			"role":    c.GetString(UserRoleKey),
		})
	})
	return router
}

func login(t *testing.T, router *gin.Engine, name, role string) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login?name="+name+"&role="+role, nil)
	router.ServeHTTP(w, req)
	return w.Result().Cookies()
}

func TestRequireAuth(t *testing.T) {
	router := setupAuthRouter(RequireAuth())

	t.Run("no session", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	})

	t.Run("valid session", func(t *testing.T) {
		cookies := login(t, router, "Priya", "student")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":7`)
	})

	t.Run("unknown role in session", func(t *testing.T) {
		cookies := login(t, router, "Priya", "superuser")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	router := setupAuthRouter(RequireRole(models.RoleHod))

	t.Run("role allowed", func(t *testing.T) {
		cookies := login(t, router, "Ravi", "hod")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("role denied", func(t *testing.T) {
		cookies := login(t, router, "Priya", "student")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "FORBIDDEN")
	})

	t.Run("unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireStaff(t *testing.T) {
	router := setupAuthRouter(RequireStaff())

	for role, wantCode := range map[string]int{
		"teacher": http.StatusOK,
		"mentor":  http.StatusOK,
		"hod":     http.StatusOK,
		"student": http.StatusForbidden,
	} {
		cookies := login(t, router, "User", role)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		router.ServeHTTP(w, req)
		assert.Equal(t, wantCode, w.Code, "role %s", role)
	}
}
