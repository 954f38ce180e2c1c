// Package constants provides shared constants used across the codebase.
package constants

// File upload constants
const (
	// MaxUploadSize is the maximum file upload size in bytes (50MB)
	MaxUploadSize = 50 << 20
)

// Server constants
const (
	// DefaultWebPort is the default HTTP port for the serve command
	DefaultWebPort = 8080

	// DefaultWebHost is the default bind address for the serve command
	DefaultWebHost = "0.0.0.0"
)
