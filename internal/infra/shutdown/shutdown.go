package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Hook releases one resource. It should return once ctx is done.
type Hook func(context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

// Handler handles graceful shutdown.
type Handler struct {
	timeout time.Duration
	signals []os.Signal
	logger  *slog.Logger

	mu      sync.Mutex
	hooks   []namedHook
	trigger chan struct{}
	once    sync.Once
	done    chan struct{}
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used while shutting down.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithSignals replaces the signals that start a shutdown.
func WithSignals(sigs ...os.Signal) Option {
	return func(h *Handler) {
		h.signals = sigs
	}
}

// NewHandler creates a new shutdown handler.
func NewHandler(timeout time.Duration, opts ...Option) *Handler {
	h := &Handler{
		timeout: timeout,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		logger:  slog.Default(),
		hooks:   make([]namedHook, 0),
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnShutdown registers a shutdown hook.
// Hooks are called in reverse order of registration.
func (h *Handler) OnShutdown(name string, hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, namedHook{name: name, fn: hook})
}

// Trigger starts the shutdown without a signal. Safe to call repeatedly.
func (h *Handler) Trigger() {
	h.once.Do(func() { close(h.trigger) })
}

// Wait blocks until a signal arrives, Trigger is called or ctx ends, then
// runs the hooks. It returns every hook error joined.
func (h *Handler) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, h.signals...)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		h.logger.Info("shutdown signal received", "signal", sig.String())
	case <-h.trigger:
		h.logger.Info("shutdown requested")
	case <-ctx.Done():
		h.logger.Info("shutdown on context end", "reason", context.Cause(ctx))
	}

	return h.run()
}

func (h *Handler) run() error {
	defer close(h.done)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := make([]namedHook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		start := time.Now()
		if err := hooks[i].fn(ctx); err != nil {
			h.logger.Error("shutdown hook failed", "hook", hooks[i].name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", hooks[i].name, err))
			continue
		}
		h.logger.Debug("shutdown hook done", "hook", hooks[i].name, "duration", time.Since(start))
	}

	return errors.Join(errs...)
}

// Done returns a channel that closes when shutdown is complete.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
