// Package httpserver serves the operational HTTP endpoint of geminid.
//
// It exposes GET /metrics (Prometheus exposition) and GET /healthz behind a
// small middleware chain (Recover, RequestID, Audit). Gemini traffic never
// goes through this package.
package httpserver
