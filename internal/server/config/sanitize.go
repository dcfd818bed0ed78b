package config

import (
	"maps"
	"strings"
)

// Sanitize returns a copy of the config that is safe to print.
//
// Only the location of the private key is masked; nothing else in the
// configuration is secret.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Content.MIMETypes = maps.Clone(cfg.Content.MIMETypes)

	if sanitized.TLS.KeyFile != "" {
		sanitized.TLS.KeyFile = maskSecret(sanitized.TLS.KeyFile)
	}

	return &sanitized
}

// maskSecret masks a value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
