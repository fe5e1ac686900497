// Package main provides a small CLI utility to reset the application's
// database to a clean state. It is intended for local development and
// testing only and will permanently delete all data when run.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"complaintdesk/internal/config"
	"complaintdesk/internal/database"
	"complaintdesk/internal/observability"
	"complaintdesk/internal/services"
)

// fatalIfErr logs the error with context and exits
func fatalIfErr(ctx context.Context, logger *observability.Logger, msg string, err error, fields map[string]interface{}) {
	logger.Error(ctx, msg, err, fields)
	os.Exit(1)
}

func main() {
	ctx := context.Background()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "reset-db")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if tp, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
			if err := tp.Shutdown(context.TODO()); err != nil {
				logger.Warn(ctx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
			}
		}
		if mp != nil {
			if err := mp.Shutdown(context.TODO()); err != nil {
				logger.Warn(ctx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
	}()

	fmt.Println("DATABASE RESET UTILITY")
	fmt.Println("======================")
	fmt.Println("This will PERMANENTLY DELETE ALL DATA in the database!")
	fmt.Println("This includes:")
	fmt.Println("- All users (including the department head admin)")
	fmt.Println("- All complaints and their history")
	fmt.Println("- All notifications, audit entries and email logs")
	fmt.Println("")

	logger.Info(ctx, "Attempting to reset the database", map[string]interface{}{"service": "reset-db"})

	if cfg.Database.URL == "" {
		fatalIfErr(ctx, logger, "Database URL is empty", nil, map[string]interface{}{"error": "Database URL is empty. Cannot proceed with reset."})
	}

	fmt.Println("Database Information:")
	fmt.Printf("URL: %s\n", maskDatabaseURL(cfg.Database.URL))
	fmt.Println("")

	if !confirmReset() {
		fmt.Println("Reset cancelled.")
		return
	}

	dbManager := database.NewManager(logger)

	db, err := dbManager.InitDBWithConfig(cfg.Database)
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to connect to database", err, map[string]interface{}{"db_url": cfg.Database.URL})
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error(), "db_url": cfg.Database.URL})
		}
	}()

	fmt.Println("Truncating all tables...")
	logger.Info(ctx, "Truncating all tables", map[string]interface{}{"service": "reset-db"})

	if _, err := db.ExecContext(ctx,
		"TRUNCATE notifications, email_logs, audit_logs, complaints, users RESTART IDENTITY CASCADE"); err != nil {
		fatalIfErr(ctx, logger, "Failed to truncate tables", err, map[string]interface{}{"db_url": cfg.Database.URL})
	}

	fmt.Println("Running database migrations...")
	if err := dbManager.RunMigrations(cfg.Database.URL); err != nil {
		fatalIfErr(ctx, logger, "Failed to run migrations", err, map[string]interface{}{"db_url": cfg.Database.URL})
	}
	fmt.Println("Database migrations completed successfully!")

	auditService := services.NewAuditService(db, logger)
	emailService := services.NewEmailService(cfg, logger, db)
	userService := services.NewUserService(db, cfg, logger, auditService, emailService)

	fmt.Printf("Recreating admin user '%s'...\n", cfg.Server.AdminUsername)
	if err := userService.EnsureAdminUserExists(ctx, cfg.Server.AdminUsername, cfg.Server.AdminPassword); err != nil {
		fatalIfErr(ctx, logger, "Failed to ensure admin user exists", err, map[string]interface{}{"admin_username": cfg.Server.AdminUsername})
	}

	fmt.Println("Admin user recreated successfully!")
	fmt.Println("")
	fmt.Printf("Admin user credentials:\n")
	fmt.Printf("   Email:    %s\n", cfg.Server.AdminUsername)
	fmt.Printf("   Password: %s\n", cfg.Server.AdminPassword)
	fmt.Println("")
	fmt.Println("Database is now ready to use!")
}

func confirmReset() bool {
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("Are you sure you want to reset the database? (type 'yes' to confirm): ")
		response, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("Error reading input:", err)
			continue
		}

		response = strings.TrimSpace(strings.ToLower(response))

		switch response {
		case "yes":
			return true
		case "no", "":
			return false
		default:
			fmt.Println("Please type 'yes' to confirm or 'no' to cancel.")
		}
	}
}

func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) == 2 {
			return "postgres://***:***@" + parts[1]
		}
	}
	return url
}
