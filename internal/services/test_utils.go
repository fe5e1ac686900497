//go:build integration

package services

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"complaintdesk/internal/config"
	"complaintdesk/internal/database"
	"complaintdesk/internal/observability"

	"github.com/stretchr/testify/require"
)

// SharedTestDBSetup provides a clean, isolated database for each
// integration test.
func SharedTestDBSetup(t *testing.T) *sql.DB {
	observabilityLogger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	dbManager := database.NewManager(observabilityLogger)

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Fatal("TEST_DATABASE_URL environment variable must be set for integration tests")
	}

	db, err := dbManager.InitDB(databaseURL)
	require.NoError(t, err)

	CleanupTestDatabase(db, t)
	return db
}

// CleanupTestDatabase truncates every application table between tests.
func CleanupTestDatabase(db *sql.DB, t *testing.T) {
	t.Helper()
	ctx := context.Background()

	cleanupQueries := []string{
		"TRUNCATE TABLE notifications CASCADE",
		"TRUNCATE TABLE email_logs CASCADE",
		"TRUNCATE TABLE audit_logs CASCADE",
		"TRUNCATE TABLE complaints CASCADE",
		"TRUNCATE TABLE users CASCADE",
	}
	for _, query := range cleanupQueries {
		_, err := db.ExecContext(ctx, query)
		require.NoError(t, err, "cleanup query failed: %s", query)
	}
}

// testConfig returns a minimal config for integration tests.
func testConfig() *config.Config {
	cfg := &config.Config{IsTest: true}
	cfg.Server.Department = "ECE"
	cfg.Server.AppBaseURL = "http://localhost:3000"
	cfg.Privacy.EncryptionKey = "integration-test-passphrase"
	return cfg
}
