package geminiserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"

	"github.com/yndnr/geminid/internal/core/domain"
	"github.com/yndnr/geminid/internal/core/mimetype"
	"github.com/yndnr/geminid/internal/telemetry/accesslog"
	"github.com/yndnr/geminid/pkg/geminiuri"
)

var (
	// ErrServerClosed is returned by Serve after Shutdown.
	ErrServerClosed = errors.New("geminiserver: server closed")

	// ErrNoTLSConfig is returned by ListenAndServe without a TLS config.
	ErrNoTLSConfig = errors.New("geminiserver: TLS config is required")
)

// Config holds the Gemini server configuration.
type Config struct {
	// Addr is the listen address (default ":1965").
	Addr string
	// TLSConfig is applied to accepted connections. ListenAndServe requires it;
	// Serve accepts a nil config for listeners that are already TLS.
	TLSConfig *tls.Config
	// MaxRequestLine caps the request line in bytes, terminator excluded.
	MaxRequestLine int
	// MaxConnections bounds concurrent connections. 0 means unlimited.
	MaxConnections int
	// AcceptRate limits accepted connections per second. 0 disables it.
	AcceptRate float64
	// AcceptBurst is the limiter bucket size.
	AcceptBurst int
	// ReadTimeout covers the TLS handshake and the request line. 0 disables it.
	ReadTimeout time.Duration
	// WriteTimeout covers writing the response. 0 disables it.
	WriteTimeout time.Duration
	// RejectProxy answers 53 to requests for schemes other than gemini.
	RejectProxy bool
	// Defaults are the server-level MIME, charset and language.
	Defaults domain.Defaults
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:           ":1965",
		MaxRequestLine: geminiuri.DefaultMaxLength,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		RejectProxy:    true,
	}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStatic sets the static file fallback.
func WithStatic(r *StaticResolver) Option {
	return func(s *Server) {
		if r != nil {
			s.static = r
		}
	}
}

// WithTemplates sets the templates available to Context.Render.
func WithTemplates(t *Templates) Option {
	return func(s *Server) {
		s.templates = t
	}
}

// WithMIMETable sets the extension table used by Context.Render.
func WithMIMETable(t *mimetype.Table) Option {
	return func(s *Server) {
		if t != nil {
			s.types = t
		}
	}
}

// WithAccessLog sets the per-connection access logger.
func WithAccessLog(l *accesslog.Logger) Option {
	return func(s *Server) {
		s.access = l
	}
}

// WithObserver sets the connection/request observer, typically metrics.
func WithObserver(o Observer) Option {
	return func(s *Server) {
		if o != nil {
			s.observer = o
		}
	}
}

// Server accepts Gemini connections and runs the request pipeline on each.
type Server struct {
	cfg       *Config
	router    *Router
	static    *StaticResolver
	templates *Templates
	types     *mimetype.Table
	logger    *slog.Logger
	access    *accesslog.Logger
	observer  Observer
	limiter   *rate.Limiter

	mu      sync.Mutex
	ln      net.Listener
	running atomic.Bool
	closed  atomic.Bool
	wg      sync.WaitGroup
}

// New creates a server dispatching to router. A nil config uses
// DefaultConfig and a nil router serves static files only.
func New(cfg *Config, router *Router, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	cfg = &c
	if cfg.MaxRequestLine <= 0 {
		cfg.MaxRequestLine = geminiuri.DefaultMaxLength
	}
	if router == nil {
		router = NewRouter()
	}

	s := &Server{
		cfg:      cfg,
		router:   router,
		static:   &StaticResolver{},
		types:    mimetype.New(nil),
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.AcceptRate > 0 {
		burst := cfg.AcceptBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), burst)
	}

	return s
}

// Router returns the server's route table.
func (s *Server) Router() *Router {
	return s.router
}

// Addr returns the listener address once serving, else nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serving reports whether the accept loop is running.
func (s *Server) Serving() bool {
	return s.running.Load()
}

// ListenAndServe listens on cfg.Addr and serves until ctx ends or Shutdown
// is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.cfg.TLSConfig == nil {
		return ErrNoTLSConfig
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("geminiserver: listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln. It seals the router, blocks until the
// listener is closed, and returns nil after Shutdown or ctx cancellation.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.router.seal()

	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	if s.cfg.TLSConfig != nil {
		ln = tls.NewListener(ln, s.cfg.TLSConfig)
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	s.running.Store(true)
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		s.running.Store(false)
		ln.Close()
	})
	defer stop()

	s.logger.Info("gemini server listening",
		"address", ln.Addr().String(),
		"routes", s.router.Len(),
		"static_root", s.static.Root(),
		"max_connections", s.cfg.MaxConnections,
	)

	return s.acceptLoop(ctx, ln)
}

// Shutdown stops accepting and waits for in-flight connections until ctx
// ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var firstErr error
	s.mu.Lock()
	s.closed.Store(true)
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			firstErr = err
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	var delay time.Duration
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if isTemporary(err) {
				if delay == 0 {
					delay = 5 * time.Millisecond
				} else {
					delay *= 2
				}
				if delay > time.Second {
					delay = time.Second
				}
				s.logger.Warn("accept error, retrying", "error", err, "delay", delay)
				time.Sleep(delay)
				continue
			}
			return fmt.Errorf("geminiserver: accept: %w", err)
		}
		delay = 0

		// wg.Add must not race the Wait in Shutdown.
		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			c.Close()
			return nil
		}
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, c)
		}()
	}
}

func isTemporary(err error) bool {
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}
