package command

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/geminid/internal/core/domain"
	"github.com/yndnr/geminid/internal/core/mimetype"
	"github.com/yndnr/geminid/internal/infra/buildinfo"
	"github.com/yndnr/geminid/internal/infra/confloader"
	"github.com/yndnr/geminid/internal/infra/shutdown"
	"github.com/yndnr/geminid/internal/infra/tlsroots"
	"github.com/yndnr/geminid/internal/server/config"
	"github.com/yndnr/geminid/internal/server/geminiserver"
	"github.com/yndnr/geminid/internal/server/httpserver"
	"github.com/yndnr/geminid/internal/telemetry/accesslog"
	"github.com/yndnr/geminid/internal/telemetry/logger"
	"github.com/yndnr/geminid/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

// ServeCommand returns the serve command.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the Gemini server (default)",
		Flags:  append(globalFlags(), serveFlags()...),
		Action: runServe,
	}
}

// serveFlags returns the flags that override configuration keys.
func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "addr", Usage: "Listen address (server.addr)"},
		&cli.StringFlag{Name: "cert", Usage: "Certificate PEM file (tls.cert_file)"},
		&cli.StringFlag{Name: "key", Usage: "Private key PEM file (tls.key_file)"},
		&cli.StringFlag{Name: "chain", Usage: "Intermediate certificates PEM file (tls.chain_file)"},
		&cli.StringFlag{Name: "public", Usage: "Static content root (content.static_root)"},
		&cli.StringFlag{Name: "templates", Usage: "Template root (content.template_root)"},
		&cli.StringFlag{Name: "charset", Usage: "Default charset for success responses (content.charset)"},
		&cli.StringFlag{Name: "lang", Usage: "Default language for text/gemini (content.lang)"},
		&cli.StringSliceFlag{Name: "mime", Usage: "Extension mapping EXT=TYPE, repeatable (content.mime_types)"},
		&cli.IntFlag{Name: "max-connections", Usage: "Concurrent connection limit, 0 is unlimited (server.max_connections)"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (log.level)"},
	}
}

// flagKeys maps plain flags onto configuration keys.
var flagKeys = map[string]string{
	"addr":            "server.addr",
	"cert":            "tls.cert_file",
	"key":             "tls.key_file",
	"chain":           "tls.chain_file",
	"public":          "content.static_root",
	"templates":       "content.template_root",
	"charset":         "content.charset",
	"lang":            "content.lang",
	"max-connections": "server.max_connections",
	"log-level":       "log.level",
}

// flagOverrides collects the flags set on the command line as loader
// overrides. Unset flags never shadow file or env values. Flags given after
// a subcommand win over the same flags given before it.
func flagOverrides(c *cli.Context) (map[string]any, error) {
	overrides := make(map[string]any)
	lineage := c.Lineage()
	for i := len(lineage) - 1; i >= 0; i-- {
		if err := collectOverrides(lineage[i], overrides); err != nil {
			return nil, err
		}
	}
	return overrides, nil
}

func collectOverrides(c *cli.Context, overrides map[string]any) error {
	for name, key := range flagKeys {
		if !c.IsSet(name) {
			continue
		}
		if name == "max-connections" {
			overrides[key] = c.Int(name)
			continue
		}
		overrides[key] = c.String(name)
	}

	if !c.IsSet("mime") {
		return nil
	}
	types, _ := overrides["content.mime_types"].(map[string]any)
	if types == nil {
		types = make(map[string]any)
	}
	for _, pair := range c.StringSlice("mime") {
		ext, mime, ok := strings.Cut(pair, "=")
		ext, mime = strings.TrimSpace(ext), strings.TrimSpace(mime)
		if !ok || ext == "" || mime == "" {
			return fmt.Errorf("invalid --mime %q: want EXT=TYPE", pair)
		}
		types[strings.TrimPrefix(ext, ".")] = mime
	}
	overrides["content.mime_types"] = types
	return nil
}

// configPath returns --config from the innermost command that sets it.
func configPath(c *cli.Context) string {
	for _, cc := range c.Lineage() {
		if path := cc.String("config"); path != "" {
			return path
		}
	}
	return ""
}

// loadConfig loads defaults, file, environment and flags, then verifies.
func loadConfig(c *cli.Context) (*config.ServerConfig, *confloader.Loader, error) {
	overrides, err := flagOverrides(c)
	if err != nil {
		return nil, nil, err
	}

	opts := []confloader.Option{
		confloader.WithEnvSections("access_log"),
		confloader.WithOverrides(overrides),
	}
	if path := configPath(c); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	loader := confloader.NewLoader(opts...)

	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, loader, nil
}

func runServe(c *cli.Context) error {
	cfg, loader, err := loadConfig(c)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cfg, os.Stderr)
	if err != nil {
		return err
	}
	rt.loader = loader

	return rt.run(c.Context)
}

// runtime holds every component of a running server.
type runtime struct {
	cfg    *config.ServerConfig
	log    *slog.Logger
	loader *confloader.Loader

	access  *accesslog.Logger
	metrics *metric.Registry
	certs   *tlsroots.Watcher
	gemini  *geminiserver.Server
	http    *httpserver.Server
}

// newRuntime builds the server from a verified configuration. Nothing
// listens until run.
func newRuntime(cfg *config.ServerConfig, logOutput io.Writer) (*runtime, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: logOutput,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	rt := &runtime{cfg: cfg, log: log}

	tlsConfig, err := rt.initTLS()
	if err != nil {
		return nil, err
	}

	types := mimetype.New(cfg.Content.MIMETypes)
	static, err := geminiserver.NewStaticResolver(cfg.Content.StaticRoot, types)
	if err != nil {
		return nil, fmt.Errorf("init static content: %w", err)
	}
	templates, err := geminiserver.LoadTemplates(cfg.Content.TemplateRoot, nil)
	if err != nil {
		return nil, fmt.Errorf("init templates: %w", err)
	}

	rt.access = accesslog.New(accesslog.Config{
		Enabled:    cfg.AccessLog.Enabled,
		Output:     cfg.AccessLog.Output,
		MaxSizeMB:  cfg.AccessLog.MaxSizeMB,
		MaxBackups: cfg.AccessLog.MaxBackups,
		MaxAgeDays: cfg.AccessLog.MaxAgeDays,
		Compress:   cfg.AccessLog.Compress,
	})

	router := geminiserver.NewRouter()
	if err := registerRoutes(router); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	opts := []geminiserver.Option{
		geminiserver.WithLogger(log),
		geminiserver.WithStatic(static),
		geminiserver.WithTemplates(templates),
		geminiserver.WithMIMETable(types),
		geminiserver.WithAccessLog(rt.access),
	}
	if cfg.Metrics.Enabled {
		rt.metrics = metric.NewRegistry()
		rt.metrics.SetConnectionLimit(cfg.Server.MaxConnections)
		opts = append(opts, geminiserver.WithObserver(rt.metrics))
	}

	rt.gemini = geminiserver.New(geminiConfig(cfg, tlsConfig), router, opts...)

	if cfg.Metrics.Enabled {
		rt.http = httpserver.New(cfg.Metrics.Addr, httpserver.NewRouter(&httpserver.RouterConfig{
			Metrics:     rt.metrics.Handler(),
			Ready:       rt.ready,
			Version:     buildinfo.Version,
			Logger:      log,
			EnableAudit: true,
		}))
	}

	return rt, nil
}

// initTLS loads the key pair, optionally behind a reloading watcher, and
// the client CA pool.
func (rt *runtime) initTLS() (*tls.Config, error) {
	tc := rt.cfg.TLS
	kp := tlsroots.KeyPair{CertFile: tc.CertFile, KeyFile: tc.KeyFile, ChainFile: tc.ChainFile}

	var getCert tlsroots.CertificateFunc
	if tc.Reload {
		w, err := tlsroots.NewWatcher(kp, tlsroots.WithLogger(rt.log))
		if err != nil {
			return nil, fmt.Errorf("init certificates: %w", err)
		}
		rt.certs = w
		getCert = w.GetCertificate
	} else {
		cert, err := tlsroots.LoadKeyPair(kp)
		if err != nil {
			return nil, fmt.Errorf("init certificates: %w", err)
		}
		getCert = tlsroots.StaticCertificate(cert)
	}

	var clientCAs *tlsroots.Pool
	if tc.ClientCAFile != "" {
		pool, err := tlsroots.LoadPool(tc.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("init client CAs: %w", err)
		}
		clientCAs = pool
	}

	return tlsroots.ServerConfig(getCert, clientCAs), nil
}

func geminiConfig(cfg *config.ServerConfig, tlsConfig *tls.Config) *geminiserver.Config {
	return &geminiserver.Config{
		Addr:           cfg.Server.Addr,
		TLSConfig:      tlsConfig,
		MaxRequestLine: cfg.Server.MaxRequestLine,
		MaxConnections: cfg.Server.MaxConnections,
		AcceptRate:     cfg.Server.AcceptRate,
		AcceptBurst:    cfg.Server.AcceptBurst,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RejectProxy:    cfg.Server.RejectProxy,
		Defaults: domain.Defaults{
			MIME:    cfg.Content.DefaultMIME,
			Charset: cfg.Content.Charset,
			Lang:    cfg.Content.Lang,
		},
	}
}

// ready backs /healthz.
func (rt *runtime) ready() error {
	if !rt.gemini.Serving() {
		return errors.New("gemini listener is not accepting")
	}
	return nil
}

// run starts every listener and blocks until a signal, a fatal listener
// error or the end of ctx, then shuts down in reverse start order.
func (rt *runtime) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := rt.log
	sh := shutdown.NewHandler(shutdownTimeout, shutdown.WithLogger(log))

	sh.OnShutdown("access log", func(context.Context) error {
		return rt.access.Close()
	})

	if rt.loader != nil && rt.loader.FilePath() != "" {
		if err := rt.watchConfig(sh); err != nil {
			log.Warn("config watcher disabled", "error", err)
		}
	}

	if rt.certs != nil {
		rt.certs.StartAsync()
		sh.OnShutdown("certificates", func(context.Context) error {
			rt.certs.Stop()
			return nil
		})
	}

	serveErr := make(chan error, 2)

	if rt.http != nil {
		go func() {
			log.Info("metrics server listening", "address", rt.http.Addr())
			if err := rt.http.ListenAndServe(); err != nil {
				log.Error("metrics server error", "error", err)
				serveErr <- fmt.Errorf("metrics server: %w", err)
				sh.Trigger()
			}
		}()
		sh.OnShutdown("metrics server", rt.http.Shutdown)
	}

	go func() {
		if err := rt.gemini.ListenAndServe(ctx); err != nil && !errors.Is(err, geminiserver.ErrServerClosed) {
			log.Error("gemini server error", "error", err)
			serveErr <- err
		}
		sh.Trigger()
	}()
	sh.OnShutdown("gemini server", rt.gemini.Shutdown)

	log.Info("geminid started", "version", buildinfo.Version, "commit", buildinfo.Commit)

	err := sh.Wait(ctx)

	select {
	case serr := <-serveErr:
		err = errors.Join(serr, err)
	default:
	}
	if err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("geminid stopped")
	return nil
}

// watchConfig re-applies log.level whenever the config file changes.
// Every other key needs a restart.
func (rt *runtime) watchConfig(sh *shutdown.Handler) error {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(rt.log))
	if err != nil {
		return err
	}
	if err := w.Watch(rt.loader.FilePath()); err != nil {
		_ = w.Stop()
		return err
	}

	w.OnChange(func(path string) {
		next := config.Default()
		if err := rt.loader.Reload(next); err != nil {
			rt.log.Warn("config reload failed", "path", path, "error", err)
			return
		}
		if err := logger.SetLevel(next.Log.Level); err != nil {
			rt.log.Warn("config reload: invalid log level", "level", next.Log.Level, "error", err)
			return
		}
		rt.log.Info("log level applied", "level", next.Log.Level)
	})
	w.StartAsync()

	sh.OnShutdown("config watcher", func(context.Context) error {
		return w.Stop()
	})
	return nil
}
