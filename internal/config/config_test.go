package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestNewConfig_LoadsYAMLAndDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "9090"
  session_secret: "test-secret"
database:
  url: "postgres://localhost/complaintdesk_test?sslmode=disable"
privacy:
  encryption_key: "unit-test-key"
`)
	t.Setenv("COMPLAINTDESK_CONFIG_FILE", path)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "unit-test-key", cfg.Privacy.EncryptionKey)
	// Defaults kick in for everything the file omits
	assert.Equal(t, DefaultDepartment, cfg.Server.Department)
	assert.Equal(t, DefaultMaxOpenConns, cfg.Database.MaxOpenConns)
	assert.Equal(t, DatabaseConnMaxLifetime, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, DefaultServiceName, cfg.OpenTelemetry.ServiceName)
	assert.Equal(t, DefaultAttachmentsDir, cfg.Storage.AttachmentsDir)
}

func TestNewConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "9090"
`)
	t.Setenv("COMPLAINTDESK_CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://override/db")
	t.Setenv("SERVER_CORS_ORIGINS", "http://a.example,http://b.example")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "postgres://override/db", cfg.Database.URL)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.CORSOrigins)
}

func TestIsSignupAllowed(t *testing.T) {
	tests := []struct {
		name    string
		system  *SystemConfig
		email   string
		allowed bool
	}{
		{name: "no system config allows everyone", system: nil, email: "s@ece.edu", allowed: true},
		{
			name:    "signups disabled blocks everyone",
			system:  &SystemConfig{Auth: AuthConfig{SignupsDisabled: true}},
			email:   "s@ece.edu",
			allowed: false,
		},
		{
			name:    "empty whitelist allows everyone",
			system:  &SystemConfig{},
			email:   "s@anywhere.org",
			allowed: true,
		},
		{
			name:    "domain whitelist allows matching domain",
			system:  &SystemConfig{Auth: AuthConfig{AllowedDomains: []string{"ece.edu"}}},
			email:   "student@ECE.EDU",
			allowed: true,
		},
		{
			name:    "domain whitelist blocks other domains",
			system:  &SystemConfig{Auth: AuthConfig{AllowedDomains: []string{"ece.edu"}}},
			email:   "intruder@other.edu",
			allowed: false,
		},
		{
			name:    "email whitelist allows exact address",
			system:  &SystemConfig{Auth: AuthConfig{AllowedEmails: []string{"hod@other.edu"}}},
			email:   "hod@other.edu",
			allowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{System: tt.system}
			assert.Equal(t, tt.allowed, cfg.IsSignupAllowed(tt.email))
		})
	}
}
