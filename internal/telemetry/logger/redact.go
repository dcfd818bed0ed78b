package logger

import (
	"log/slog"
	"strings"
)

// Keys whose values never reach the logs. Gemini input (the query) may be
// the answer to a sensitive prompt, so it is treated like a credential.
var sensitiveKeyPatterns = []string{
	"input",
	"query",
	"password",
	"secret",
	"token",
	"private_key",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive replaces non-empty string values of sensitive keys.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		if a.Value.String() != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// RedactQuery strips the query from a raw request target so it can be
// logged. "/search?secret" becomes "/search?***REDACTED***".
func RedactQuery(target string) string {
	i := strings.IndexByte(target, '?')
	if i < 0 || i == len(target)-1 {
		return target
	}
	return target[:i+1] + redactedValue
}
