// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"complaintdesk/internal/config"
	"complaintdesk/internal/database"
	"complaintdesk/internal/observability"
	"complaintdesk/internal/services"
	contextutils "complaintdesk/internal/utils"
)

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	if err := sc.initializeServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return err
	}

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetUserService returns the user service
func (sc *ServiceContainer) GetUserService() (*services.UserService, error) {
	return GetServiceAs[*services.UserService](sc, "user")
}

// GetComplaintService returns the complaint service
func (sc *ServiceContainer) GetComplaintService() (*services.ComplaintService, error) {
	return GetServiceAs[*services.ComplaintService](sc, "complaint")
}

// GetIdentityService returns the identity protection service
func (sc *ServiceContainer) GetIdentityService() (*services.IdentityService, error) {
	return GetServiceAs[*services.IdentityService](sc, "identity")
}

// GetNotificationService returns the notification service
func (sc *ServiceContainer) GetNotificationService() (*services.NotificationService, error) {
	return GetServiceAs[*services.NotificationService](sc, "notification")
}

// GetAuditService returns the audit service
func (sc *ServiceContainer) GetAuditService() (*services.AuditService, error) {
	return GetServiceAs[*services.AuditService](sc, "audit")
}

// GetEmailService returns the email service
func (sc *ServiceContainer) GetEmailService() (*services.EmailService, error) {
	return GetServiceAs[*services.EmailService](sc, "email")
}

// GetAttachmentStore returns the attachment store
func (sc *ServiceContainer) GetAttachmentStore() (services.AttachmentStore, error) {
	return GetServiceAs[services.AttachmentStore](sc, "attachments")
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup handles shutdown of all services
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errs []error

	for name := range sc.services {
		if lifecycleService, ok := sc.services[name].(interface{ Shutdown(context.Context) error }); ok {
			sc.logger.Info(ctx, "Shutting down service", map[string]interface{}{"service": name})
			if err := lifecycleService.Shutdown(ctx); err != nil {
				sc.logger.Error(ctx, "Failed to shutdown service", err, map[string]interface{}{"service": name})
				errs = append(errs, contextutils.WrapErrorf(err, "service %s shutdown failed", name))
			}
		}
	}

	// Shutdown in reverse order of initialization
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errs)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(_ context.Context) error {
	// Audit first: identity and user services both write to it
	auditService := services.NewAuditService(sc.db, sc.logger)
	sc.services["audit"] = auditService

	emailService := services.NewEmailService(sc.cfg, sc.logger, sc.db)
	sc.services["email"] = emailService

	identityService, err := services.NewIdentityService(sc.db, sc.logger, sc.cfg.Privacy.EncryptionKey, auditService)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize identity service")
	}
	sc.services["identity"] = identityService

	userService := services.NewUserService(sc.db, sc.cfg, sc.logger, auditService, emailService)
	sc.services["user"] = userService

	notificationService := services.NewNotificationService(sc.db, sc.logger, emailService)
	sc.services["notification"] = notificationService

	complaintService := services.NewComplaintService(sc.db, sc.logger, sc.cfg, identityService, notificationService)
	sc.services["complaint"] = complaintService

	attachmentStore, err := services.NewLocalAttachmentStore(sc.cfg.Storage, sc.logger)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize attachment store")
	}
	sc.services["attachments"] = attachmentStore

	return nil
}

// EnsureAdminUser creates the department-head admin account if it doesn't exist
func (sc *ServiceContainer) EnsureAdminUser(ctx context.Context) error {
	userService, err := sc.GetUserService()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to get user service")
	}

	return userService.EnsureAdminUserExists(ctx, sc.cfg.Server.AdminUsername, sc.cfg.Server.AdminPassword)
}
