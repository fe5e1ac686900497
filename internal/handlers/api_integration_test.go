//go:build integration

package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"complaintdesk/internal/config"
	"complaintdesk/internal/handlers"
	"complaintdesk/internal/observability"
	"complaintdesk/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	router *gin.Engine
	cfg    *config.Config
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := services.SharedTestDBSetup(t)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{IsTest: true}
	cfg.Server.Department = "ECE"
	cfg.Server.AppBaseURL = "http://localhost:3000"
	cfg.Server.SessionSecret = "api-test-secret"
	cfg.Server.Debug = true
	cfg.Server.AdminUsername = "hod@api-test.local"
	cfg.Server.AdminPassword = "hod-password"
	cfg.Privacy.EncryptionKey = "api-test-passphrase"
	cfg.Storage.AttachmentsDir = t.TempDir()
	cfg.Storage.BaseURL = "/attachments"

	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	auditService := services.NewAuditService(db, logger)
	emailService := services.NewEmailService(cfg, logger, db)
	identityService, err := services.NewIdentityService(db, logger, cfg.Privacy.EncryptionKey, auditService)
	require.NoError(t, err)
	userService := services.NewUserService(db, cfg, logger, auditService, emailService)
	notificationService := services.NewNotificationService(db, logger, emailService)
	complaintService := services.NewComplaintService(db, logger, cfg, identityService, notificationService)
	attachments, err := services.NewLocalAttachmentStore(cfg.Storage, logger)
	require.NoError(t, err)

	require.NoError(t, userService.EnsureAdminUserExists(context.Background(), cfg.Server.AdminUsername, cfg.Server.AdminPassword))

	router := handlers.NewRouter(cfg, userService, complaintService, notificationService, auditService, attachments, logger)
	return &apiFixture{router: router, cfg: cfg}
}

// do issues a JSON request, carrying the session cookies for the given user.
func (f *apiFixture) do(t *testing.T, cookies []*http.Cookie, method, path string, body interface{}) (*httptest.ResponseRecorder, []*http.Cookie) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	next := cookies
	if got := w.Result().Cookies(); len(got) > 0 {
		next = got
	}
	return w, next
}

// login authenticates and returns the session cookies.
func (f *apiFixture) login(t *testing.T, email, password string) []*http.Cookie {
	t.Helper()
	w, cookies := f.do(t, nil, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, w.Code, "login failed: %s", w.Body.String())
	require.NotEmpty(t, cookies)
	return cookies
}

func (f *apiFixture) signupStudent(t *testing.T, name, email string, teacherID int) {
	t.Helper()
	w, _ := f.do(t, nil, http.MethodPost, "/v1/auth/signup", map[string]interface{}{
		"name":             name,
		"email":            email,
		"password":         "student-password",
		"role":             "student",
		"roll_number":      "21EC001",
		"year":             3,
		"assigned_teacher": teacherID,
	})
	require.Equal(t, http.StatusCreated, w.Code, "signup failed: %s", w.Body.String())
}

func TestAPI_AuthFlow(t *testing.T) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	f := newAPIFixture(t)

	t.Run("login with wrong password fails", func(t *testing.T) {
		w, _ := f.do(t, nil, http.MethodPost, "/v1/auth/login", map[string]string{
			"email":    f.cfg.Server.AdminUsername,
			"password": "not-the-password",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("login and status", func(t *testing.T) {
		cookies := f.login(t, f.cfg.Server.AdminUsername, f.cfg.Server.AdminPassword)

		w, _ := f.do(t, cookies, http.MethodGet, "/v1/auth/status", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"authenticated":true`)
		assert.Contains(t, w.Body.String(), `"hod"`)
	})

	t.Run("protected route without session is 401", func(t *testing.T) {
		w, _ := f.do(t, nil, http.MethodGet, "/v1/complaints", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("hod signup via API is forbidden", func(t *testing.T) {
		w, _ := f.do(t, nil, http.MethodPost, "/v1/auth/signup", map[string]interface{}{
			"name":     "Impostor Head",
			"email":    "impostor@api-test.local",
			"password": "password123",
			"role":     "hod",
		})
		// Rejected by schema validation before reaching the service
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAPI_ComplaintLifecycle(t *testing.T) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	f := newAPIFixture(t)
	hodCookies := f.login(t, f.cfg.Server.AdminUsername, f.cfg.Server.AdminPassword)

	// Register a teacher and approve them
	w, _ := f.do(t, nil, http.MethodPost, "/v1/auth/signup", map[string]interface{}{
		"name":        "Prof. Rao",
		"email":       "rao@api-test.local",
		"password":    "teacher-password",
		"role":        "teacher",
		"employee_id": "EMP-100",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var signupResp struct {
		User struct {
			ID int `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signupResp))
	teacherID := signupResp.User.ID

	w, _ = f.do(t, hodCookies, http.MethodPut, fmt.Sprintf("/v1/hod/registrations/%d", teacherID), map[string]bool{"approve": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Student signs up (auto-approved) and files a complaint
	f.signupStudent(t, "Asha Verma", "asha@api-test.local", teacherID)
	studentCookies := f.login(t, "asha@api-test.local", "student-password")

	w, _ = f.do(t, studentCookies, http.MethodPost, "/v1/complaints", map[string]interface{}{
		"title":       "Oscilloscope broken at bench 4",
		"description": "The oscilloscope in the communications lab has a dead channel.",
		"category":    "Lab Equipment",
		"priority":    "High",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Complaint struct {
			ComplaintID string `json:"complaint_id"`
			Status      string `json:"status"`
		} `json:"complaint"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	complaintID := created.Complaint.ComplaintID
	assert.Equal(t, "Pending", created.Complaint.Status)
	assert.Regexp(t, `^ECE-COMP-\d{4}-[0-9A-F]{8}$`, complaintID)

	teacherCookies := f.login(t, "rao@api-test.local", "teacher-password")

	t.Run("student cannot change status", func(t *testing.T) {
		w, _ := f.do(t, studentCookies, http.MethodPut, "/v1/complaints/"+complaintID+"/status", map[string]string{"status": "Resolved"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("schema rejects derived statuses", func(t *testing.T) {
		w, _ := f.do(t, teacherCookies, http.MethodPut, "/v1/complaints/"+complaintID+"/status", map[string]string{"status": "Escalated"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "VALIDATION_FAILED")
	})

	t.Run("teacher resolves and student leaves feedback", func(t *testing.T) {
		w, _ := f.do(t, teacherCookies, http.MethodPut, "/v1/complaints/"+complaintID+"/status", map[string]string{
			"status": "Resolved",
			"note":   "Replaced the faulty probe.",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w, _ = f.do(t, studentCookies, http.MethodPost, "/v1/complaints/"+complaintID+"/feedback", map[string]interface{}{
			"rating":  5,
			"comment": "Fixed quickly, thanks.",
		})
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("reopen returns complaint to the teacher", func(t *testing.T) {
		w, _ := f.do(t, studentCookies, http.MethodPost, "/v1/complaints/"+complaintID+"/reopen", map[string]string{
			"reason": "Second channel is dead now too.",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"Reopened"`)
		assert.Contains(t, w.Body.String(), `"teacher"`)
	})

	t.Run("escalation reason is required", func(t *testing.T) {
		w, _ := f.do(t, teacherCookies, http.MethodPost, "/v1/complaints/"+complaintID+"/escalate", map[string]string{"reason": ""})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("notifications were delivered to the teacher", func(t *testing.T) {
		w, _ := f.do(t, teacherCookies, http.MethodGet, "/v1/notifications/unread-count", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Unread int `json:"unread"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Greater(t, resp.Unread, 0)
	})
}

func TestAPI_AnonymousComplaint(t *testing.T) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	f := newAPIFixture(t)
	hodCookies := f.login(t, f.cfg.Server.AdminUsername, f.cfg.Server.AdminPassword)

	// Approved teacher for routing
	w, _ := f.do(t, nil, http.MethodPost, "/v1/auth/signup", map[string]interface{}{
		"name":        "Prof. Iyer",
		"email":       "iyer@api-test.local",
		"password":    "teacher-password",
		"role":        "teacher",
		"employee_id": "EMP-101",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var signupResp struct {
		User struct {
			ID int `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signupResp))
	w, _ = f.do(t, hodCookies, http.MethodPut, fmt.Sprintf("/v1/hod/registrations/%d", signupResp.User.ID), map[string]bool{"approve": true})
	require.Equal(t, http.StatusOK, w.Code)

	f.signupStudent(t, "Ravi Kumar", "ravi@api-test.local", signupResp.User.ID)
	studentCookies := f.login(t, "ravi@api-test.local", "student-password")

	w, _ = f.do(t, studentCookies, http.MethodPost, "/v1/complaints", map[string]interface{}{
		"title":        "Unfair internal assessment",
		"description":  "Marks were reduced without explanation after the review session.",
		"category":     "Faculty Related",
		"is_anonymous": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := w.Body.String()
	assert.Contains(t, body, `"Anonymous Student"`)
	assert.NotContains(t, body, "Ravi Kumar")
	assert.NotContains(t, body, "identity_token")

	var created struct {
		Complaint struct {
			ComplaintID string `json:"complaint_id"`
			StudentID   *int   `json:"student_id"`
		} `json:"complaint"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Nil(t, created.Complaint.StudentID)

	teacherCookies := f.login(t, "iyer@api-test.local", "teacher-password")

	t.Run("teacher cannot reveal identity", func(t *testing.T) {
		w, _ := f.do(t, teacherCookies, http.MethodPost, "/v1/hod/complaints/"+created.Complaint.ComplaintID+"/reveal", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("hod reveal returns the author and is audited", func(t *testing.T) {
		w, _ := f.do(t, hodCookies, http.MethodPost, "/v1/hod/complaints/"+created.Complaint.ComplaintID+"/reveal", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "Ravi Kumar")

		w, _ = f.do(t, hodCookies, http.MethodGet, "/v1/hod/audit-log?complaint="+created.Complaint.ComplaintID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "view_anonymous_identity")
	})
}
