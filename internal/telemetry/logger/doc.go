// Package logger provides structured logging for geminid.
//
// It configures log/slog handlers and keeps the pieces the rest of the
// server relies on:
//
//   - logger.go: handler construction and runtime level changes
//   - context.go: request-scoped loggers and request IDs
//   - redact.go: masking of client input and credentials
//
// Components take a *slog.Logger; nothing in the server writes to the
// process-wide default directly.
package logger
