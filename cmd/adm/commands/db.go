// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"database/sql"
	"os"

	"complaintdesk/internal/observability"
	"complaintdesk/internal/services"
	contextutils "complaintdesk/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(userService *services.UserService, logger *observability.Logger, db *sql.DB) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the complaint desk.

Available commands:
  stats     - Show database statistics
  seed-demo - Insert demo users for local development`,
	}

	dbCmd.AddCommand(statsCmd(logger, db))
	dbCmd.AddCommand(seedDemoCmd(userService, logger, db))

	return dbCmd
}

func statsCmd(logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Long:  `Show row counts for the main tables.`,
		RunE:  runStats(logger, db),
	}
}

func seedDemoCmd(userService *services.UserService, logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-demo",
		Short: "Insert demo users",
		Long: `Insert a demo department head, mentor, teacher and two students.

Seeding is idempotent: existing demo accounts are left untouched.`,
		RunE: runSeedDemo(userService, logger, db),
	}
}

// runStats returns a function that shows database statistics
func runStats(logger *observability.Logger, db *sql.DB) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		logger.Info(ctx, "Diagnostic info", map[string]interface{}{"config_file": os.Getenv("COMPLAINTDESK_CONFIG_FILE"), "database": getDatabaseInfo(db)})

		counts := map[string]int{}
		for _, table := range []string{"users", "complaints", "notifications", "audit_logs", "email_logs"} {
			var n int
			if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
				logger.Error(ctx, "Failed to count table rows", err, map[string]interface{}{"table": table})
				return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to count rows in %s: %v", table, err)
			}
			counts[table] = n
		}

		logger.Info(ctx, "Database statistics", map[string]interface{}{
			"users":         counts["users"],
			"complaints":    counts["complaints"],
			"notifications": counts["notifications"],
			"audit_logs":    counts["audit_logs"],
			"email_logs":    counts["email_logs"],
			"database":      "PostgreSQL",
			"status":        "Connected",
		})

		return nil
	}
}

// runSeedDemo returns a function that seeds demo users
func runSeedDemo(userService *services.UserService, logger *observability.Logger, db *sql.DB) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		logger.Info(ctx, "Diagnostic info", map[string]interface{}{"config_file": os.Getenv("COMPLAINTDESK_CONFIG_FILE"), "database": getDatabaseInfo(db)})

		if err := userService.SeedDemoData(ctx); err != nil {
			logger.Error(ctx, "Failed to seed demo data", err, nil)
			return contextutils.WrapError(err, "failed to seed demo data")
		}

		logger.Info(ctx, "Demo data seeded", nil)
		return nil
	}
}
