package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"complaintdesk/internal/config"
	"complaintdesk/internal/middleware"
	"complaintdesk/internal/models"
	"complaintdesk/internal/observability"
	"complaintdesk/internal/services"
	"complaintdesk/internal/version"
)

// NewRouter creates a new router with all the necessary middleware and routes
func NewRouter(
	cfg *config.Config,
	userService *services.UserService,
	complaintService *services.ComplaintService,
	notificationService *services.NotificationService,
	auditService *services.AuditService,
	attachments services.AttachmentStore,
	logger *observability.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// HTTP request logging via the observability logger
	router.Use(func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  latency.Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		if statusCode >= 500 {
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		} else if statusCode >= 400 {
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		} else {
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	})

	// Health check endpoint (defined before any middleware)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "complaint-desk"})
	})

	// OpenTelemetry middleware for HTTP tracing and context propagation
	router.Use(observability.GinMiddlewareWithErrorHandling("complaint-desk"))

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	// CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Session middleware
	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   config.SessionSecure,
	}
	if cfg.Server.Debug {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	} else {
		sessionOpts.SameSite = http.SameSiteLaxMode
		sessionOpts.Secure = true
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	// Security headers
	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	// Initialize handlers
	authHandler := NewAuthHandler(userService, cfg, logger)
	complaintHandler := NewComplaintHandler(complaintService, userService, attachments, logger)
	notificationHandler := NewNotificationHandler(notificationService, logger)
	hodHandler := NewHodHandler(complaintService, userService, auditService, logger)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"service":   "complaint-desk",
				"version":   version.Version,
				"commit":    version.Commit,
				"buildTime": version.BuildTime,
			})
		})

		auth := v1.Group("/auth")
		{
			auth.POST("/login", middleware.ValidateRequest(logger, "LoginRequest"), authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/status", authHandler.Status)
			auth.GET("/check", middleware.RequireAuth(), authHandler.Check)
			auth.POST("/signup", middleware.ValidateRequest(logger, "RegisterRequest"), authHandler.Signup)
		}

		complaints := v1.Group("/complaints")
		complaints.Use(middleware.RequireAuth())
		{
			complaints.POST("", middleware.RequireRole(models.RoleStudent), middleware.ValidateRequest(logger, "SubmitComplaintRequest"), complaintHandler.Submit)
			complaints.GET("", complaintHandler.List)
			complaints.GET("/stats", middleware.RequireStaff(), complaintHandler.Stats)
			complaints.GET("/:complaintId", complaintHandler.Get)
			complaints.PUT("/:complaintId/status", middleware.RequireStaff(), middleware.ValidateRequest(logger, "UpdateStatusRequest"), complaintHandler.UpdateStatus)
			complaints.POST("/:complaintId/escalate", middleware.RequireStaff(), middleware.ValidateRequest(logger, "EscalateRequest"), complaintHandler.Escalate)
			complaints.POST("/:complaintId/attachments", middleware.RequireRole(models.RoleStudent), complaintHandler.AddAttachment)
			complaints.POST("/:complaintId/reopen", middleware.RequireRole(models.RoleStudent), middleware.ValidateRequest(logger, "ReopenRequest"), complaintHandler.Reopen)
			complaints.POST("/:complaintId/feedback", middleware.RequireRole(models.RoleStudent), middleware.ValidateRequest(logger, "FeedbackRequest"), complaintHandler.Feedback)
		}

		v1.POST("/uploads", middleware.RequireAuth(), complaintHandler.UploadAttachment)

		notifications := v1.Group("/notifications")
		notifications.Use(middleware.RequireAuth())
		{
			notifications.GET("", notificationHandler.List)
			notifications.GET("/unread-count", notificationHandler.UnreadCount)
			notifications.PUT("/:notificationId/read", notificationHandler.MarkRead)
			notifications.PUT("/read-all", notificationHandler.MarkAllRead)
		}

		hod := v1.Group("/hod")
		hod.Use(middleware.RequireRole(models.RoleHod))
		{
			hod.GET("/pool", hodHandler.Pool)
			hod.POST("/complaints/:complaintId/reveal", hodHandler.RevealIdentity)
			hod.GET("/registrations", hodHandler.PendingRegistrations)
			hod.PUT("/registrations/:userId", middleware.ValidateRequest(logger, "RegistrationDecisionRequest"), hodHandler.DecideRegistration)
			hod.GET("/users", hodHandler.ListUsers)
			hod.PUT("/users/:userId/assignments", middleware.ValidateRequest(logger, "AssignmentsRequest"), hodHandler.UpdateAssignments)
			hod.PUT("/users/:userId/active", hodHandler.SetUserActive)
			hod.GET("/audit-log", hodHandler.AuditLog)
		}
	}

	// Serve stored attachments
	router.Static("/attachments", cfg.Storage.AttachmentsDir)

	// Automatic route listing at root path
	routeListing := NewRouteListingHandler("ComplaintDesk")
	routeListing.CollectRoutes(router)

	router.GET("/", func(c *gin.Context) {
		if c.Query("json") == "true" {
			routeListing.GetRouteListingJSON(c)
		} else {
			routeListing.GetRouteListingPage(c)
		}
	})

	return router
}
