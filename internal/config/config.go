// Package config handles application configuration loading from a YAML file
// with environment variable overrides.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "complaintdesk/internal/utils"

	"gopkg.in/yaml.v3"
)

// AuthConfig represents authentication-related configuration
type AuthConfig struct {
	SignupsDisabled bool     `json:"signups_disabled" yaml:"signups_disabled"`
	AllowedDomains  []string `json:"allowed_domains,omitempty" yaml:"allowed_domains,omitempty"`
	AllowedEmails   []string `json:"allowed_emails,omitempty" yaml:"allowed_emails,omitempty"`
}

// SystemConfig represents system-wide configuration
type SystemConfig struct {
	Auth AuthConfig `json:"auth" yaml:"auth"`
	// SeedDemoData enables the demo fixture seeding routine (adm seed-demo).
	// Never consulted by the authentication path.
	SeedDemoData bool `json:"seed_demo_data" yaml:"seed_demo_data"`
}

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Email Configuration
	Email EmailConfig `json:"email" yaml:"email"`

	// Privacy Configuration (anonymous complaint identity protection)
	Privacy PrivacyConfig `json:"privacy" yaml:"privacy"`

	// Attachment storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	System *SystemConfig `json:"system,omitempty" yaml:"system,omitempty"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port          string   `json:"port" yaml:"port"`
	AdminUsername string   `json:"admin_username" yaml:"admin_username"`
	AdminPassword string   `json:"admin_password" yaml:"admin_password"`
	SessionSecret string   `json:"session_secret" yaml:"session_secret"`
	Debug         bool     `json:"debug" yaml:"debug"`
	LogLevel      string   `json:"log_level" yaml:"log_level"`
	AppBaseURL    string   `json:"app_base_url" yaml:"app_base_url"`
	CORSOrigins   []string `json:"cors_origins" yaml:"cors_origins"`
	// Department is the prefix used in generated complaint and employee IDs.
	Department string `json:"department" yaml:"department"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "http://localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "complaint-desk"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`   // Default: true
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`   // Default: true
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`   // Default: true
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"`     // Default: 1.0 (100%)
	UseAutoSDK     bool              `json:"use_auto_sdk" yaml:"use_auto_sdk"`       // Use the zero-code Auto SDK tracer provider
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`       // Maximum number of open connections to the database
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`       // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"` // Maximum amount of time a connection may be reused
}

// EmailConfig represents email/SMTP configuration
type EmailConfig struct {
	SMTP    SMTPConfig `json:"smtp" yaml:"smtp"`
	Enabled bool       `json:"enabled" yaml:"enabled"`
}

// SMTPConfig represents SMTP server configuration
type SMTPConfig struct {
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	FromAddress string `json:"from_address" yaml:"from_address"`
	FromName    string `json:"from_name" yaml:"from_name"`
}

// PrivacyConfig represents identity protection configuration.
// EncryptionKey is the process-wide secret the identity service derives its
// AES key from; it must be set in any deployment that accepts anonymous
// complaints.
type PrivacyConfig struct {
	EncryptionKey string `json:"encryption_key" yaml:"encryption_key"`
}

// StorageConfig represents attachment storage configuration
type StorageConfig struct {
	AttachmentsDir string `json:"attachments_dir" yaml:"attachments_dir"`
	BaseURL        string `json:"base_url" yaml:"base_url"`
	MaxUploadBytes int64  `json:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// IsEmailAllowed checks whether an email address is whitelisted for signup
func (c *Config) IsEmailAllowed(email string) bool {
	if c.System == nil {
		return true
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	for _, allowed := range c.System.Auth.AllowedEmails {
		if strings.ToLower(allowed) == normalized {
			return true
		}
	}
	return false
}

// IsDomainAllowed checks whether an email domain is whitelisted for signup
func (c *Config) IsDomainAllowed(domain string) bool {
	if c.System == nil {
		return true
	}
	normalized := strings.ToLower(strings.TrimSpace(domain))
	for _, allowed := range c.System.Auth.AllowedDomains {
		if strings.ToLower(allowed) == normalized {
			return true
		}
	}
	return false
}

// IsSignupAllowed reports whether the given email may register. An empty
// whitelist means signups are open to everyone (unless disabled outright).
func (c *Config) IsSignupAllowed(email string) bool {
	if c.System == nil {
		return true
	}
	if c.System.Auth.SignupsDisabled {
		return false
	}
	if len(c.System.Auth.AllowedEmails) == 0 && len(c.System.Auth.AllowedDomains) == 0 {
		return true
	}

	normalized := strings.ToLower(strings.TrimSpace(email))
	if c.IsEmailAllowed(normalized) {
		return true
	}

	parts := strings.Split(normalized, "@")
	if len(parts) != 2 {
		return false
	}
	return c.IsDomainAllowed(parts[1])
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	config.applyDefaults()
	config.overrideFromEnv()

	return config, nil
}

// applyDefaults fills fields that must never be empty
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.Department == "" {
		c.Server.Department = DefaultDepartment
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = DatabaseConnMaxLifetime
	}
	if c.OpenTelemetry.ServiceName == "" {
		c.OpenTelemetry.ServiceName = DefaultServiceName
	}
	if c.OpenTelemetry.SamplingRate == 0 {
		c.OpenTelemetry.SamplingRate = 1.0
	}
	if c.Storage.AttachmentsDir == "" {
		c.Storage.AttachmentsDir = DefaultAttachmentsDir
	}
	if c.Storage.MaxUploadBytes == 0 {
		c.Storage.MaxUploadBytes = DefaultMaxUploadBytes
	}
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnv(c)
}

// overrideStructFromEnv recursively overrides struct fields with environment variables
func overrideStructFromEnv(v interface{}) {
	overrideStructFromEnvWithPrefix(v, "")
}

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		// Skip unexported fields
		if !field.CanSet() {
			continue
		}

		// Get the yaml tag for the field
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		yamlTag = strings.Split(yamlTag, ",")[0]

		// Convert yaml tag to environment variable name
		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if uintVal, err := strconv.ParseUint(envVal, 10, 64); err == nil {
					field.SetUint(uintVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				// Handle string slices (like CORS_ORIGINS)
				if field.Type().Elem().Kind() == reflect.String {
					slice := strings.Split(envVal, ",")
					field.Set(reflect.ValueOf(slice))
				}
			}
		case reflect.Struct:
			// Recursively process nested structs with the field name as prefix
			if field.CanAddr() {
				fieldPrefix := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
				if prefix != "" {
					fieldPrefix = prefix + "_" + fieldPrefix
				}
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), fieldPrefix)
			}
		case reflect.Ptr:
			// Handle pointer to struct
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				fieldPrefix := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
				if prefix != "" {
					fieldPrefix = prefix + "_" + fieldPrefix
				}
				overrideStructFromEnvWithPrefix(field.Interface(), fieldPrefix)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file with potential local overrides
func loadConfigWithOverrides() (result0 *Config, err error) {
	// Try to load from environment variable first
	if envPath := os.Getenv("COMPLAINTDESK_CONFIG_FILE"); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	// If no environment variable is set, try default config.yaml
	config, err := loadConfigFromFile("config.yaml")
	if err != nil {
		if os.IsNotExist(err) {
			// No file at all is fine; env vars may carry everything
			return &Config{}, nil
		}
		return nil, err
	}
	return config, nil
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
