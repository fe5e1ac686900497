package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout    = 60 * time.Second
	ServerShutdownTimeout = 30 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute

	// Session timeouts
	SessionMaxAge = 7 * 24 * time.Hour // 7 days
)

// Server defaults
const (
	DefaultServerPort  = "8080"
	DefaultServiceName = "complaint-desk"
	DefaultDepartment  = "ECE"
)

// Database defaults
const (
	DefaultMaxOpenConns = 25
	DefaultMaxIdleConns = 5
)

// Storage defaults
const (
	DefaultAttachmentsDir = "attachments"
	DefaultMaxUploadBytes = 10 << 20 // 10 MiB per attachment
)

// Session configuration constants
const (
	// Session settings
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	// Session name
	SessionName = "complaintdesk-session"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:; media-src 'self' blob: data:;"
)

// Complaint lifecycle defaults
const (
	// DefaultPriority is assigned when a complaint omits an explicit priority
	DefaultPriority = "Medium"

	// AnonymousDisplayName is shown in place of the author for anonymous complaints
	AnonymousDisplayName = "Anonymous Student"
)
