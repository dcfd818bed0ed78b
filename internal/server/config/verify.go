package config

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/yndnr/geminid/internal/telemetry/logger"
)

// Verify validates the configuration. Every error is a configuration fault
// that must stop the server before it listens.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyTLS(&cfg.TLS); err != nil {
		return err
	}
	if err := verifyContent(&cfg.Content); err != nil {
		return err
	}
	if err := verifyLog(&cfg.Log); err != nil {
		return err
	}
	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Addr); err != nil {
			return fmt.Errorf("metrics.addr %q: %w", cfg.Metrics.Addr, err)
		}
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("server.addr %q: %w", cfg.Addr, err)
	}
	if cfg.MaxRequestLine <= 0 {
		return errors.New("server.max_request_line must be positive")
	}
	if cfg.MaxConnections < 0 {
		return errors.New("server.max_connections must not be negative")
	}
	if cfg.AcceptRate < 0 {
		return errors.New("server.accept_rate must not be negative")
	}
	if cfg.AcceptRate > 0 && cfg.AcceptBurst < 1 {
		return errors.New("server.accept_burst must be at least 1 when accept_rate is set")
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}
	return nil
}

func verifyTLS(cfg *TLSSection) error {
	if cfg.CertFile == "" {
		return errors.New("tls.cert_file is required")
	}
	if cfg.KeyFile == "" {
		return errors.New("tls.key_file is required")
	}
	return nil
}

func verifyContent(cfg *ContentSection) error {
	if err := verifyDir("content.static_root", cfg.StaticRoot); err != nil {
		return err
	}
	return verifyDir("content.template_root", cfg.TemplateRoot)
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("log.format %q: must be json or text", cfg.Format)
	}
}

func verifyDir(key, path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s %q is not a directory", key, path)
	}
	return nil
}
