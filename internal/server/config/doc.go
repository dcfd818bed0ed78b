// Package config provides the geminid server configuration.
//
// This package defines the configuration structure and validation:
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Startup validation (addresses, roots, limits)
//   - sanitize.go: Copy safe for printing
//
// Configuration is loaded via internal/infra/confloader and supports
// multiple sources: files, environment variables, and flags.
package config
