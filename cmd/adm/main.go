// Package main provides the main entry point for the complaint desk admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"complaintdesk/cmd/adm/commands"
	"complaintdesk/internal/config"
	"complaintdesk/internal/database"
	"complaintdesk/internal/observability"
	"complaintdesk/internal/services"

	"github.com/spf13/cobra"
)

// Global variables for shared resources
var (
	cfg         *config.Config
	logger      *observability.Logger
	userService *services.UserService
)

func main() {
	ctx := context.Background()

	// Set default config file if not already set
	if os.Getenv("COMPLAINTDESK_CONFIG_FILE") == "" {
		defaultPaths := []string{
			"../config.yaml",    // From cmd/adm/
			"../../config.yaml", // From cmd/adm/ (alternative)
			"config.yaml",       // Current directory
		}

		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv("COMPLAINTDESK_CONFIG_FILE", path); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to set COMPLAINTDESK_CONFIG_FILE environment variable: %v\n", err)
					os.Exit(1)
				}
				break
			}
		}
	}

	var err error
	cfg, err = config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override log level for admin tool
	cfg.Server.LogLevel = "error"

	// Disable all OpenTelemetry features for admin CLI to avoid connection errors
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	tp, mp, loggerInstance, err := observability.SetupObservability(&cfg.OpenTelemetry, "complaint-desk-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	logger = loggerInstance

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

	dbManager := database.NewManager(logger)

	// No migrations for the admin tool; the server owns the schema
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		logger.Error(ctx, "Failed to connect to database", err, map[string]interface{}{"db_url": cfg.Database.URL})
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error(), "db_url": cfg.Database.URL})
		}
	}()

	auditService := services.NewAuditService(db, logger)
	emailService := services.NewEmailService(cfg, logger, db)
	userService = services.NewUserService(db, cfg, logger, auditService, emailService)

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Complaint Desk Administration Tool",
		Long: `Complaint Desk Administration Tool

A CLI tool for administering the department complaint desk.
Provides commands for user management, database operations, and demo data seeding.`,

		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.UserCommands(userService, logger, cfg.Database.URL))
	rootCmd.AddCommand(commands.DatabaseCommands(userService, logger, db))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
