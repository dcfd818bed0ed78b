package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Metrics serves GET /metrics. Nil leaves the route unregistered.
	Metrics http.Handler

	// Ready reports whether the Gemini listener is accepting. Nil means
	// always ready.
	Ready func() error

	// Version is echoed by /healthz.
	Version string

	// Logger for request logging.
	Logger *slog.Logger

	// EnableAudit enables audit logging for all requests.
	EnableAudit bool
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Order: Recover -> RequestID -> Audit -> Handler
	middlewares := []Middleware{Recover(logger), RequestID()}
	if cfg.EnableAudit {
		middlewares = append(middlewares, Audit(logger))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", Chain(healthHandler(cfg), middlewares...))
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics, middlewares...))
	}
	return mux
}

func healthHandler(cfg *RouterConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		}
		if cfg.Version != "" {
			body["version"] = cfg.Version
		}

		status := http.StatusOK
		if cfg.Ready != nil {
			if err := cfg.Ready(); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "unavailable"
				body["error"] = err.Error()
			}
		}
		writeJSON(w, status, body)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
