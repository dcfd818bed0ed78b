// Package accesslog writes one structured record per Gemini connection.
//
// Records go to stdout, stderr, or a file rotated by lumberjack. Write
// errors are dropped so logging can never fail the request it describes.
package accesslog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds access log configuration.
type Config struct {
	// Enabled turns access logging on.
	Enabled bool
	// Output is "stdout", "stderr", or a file path.
	Output string
	// MaxSizeMB is the size at which a log file is rotated.
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept.
	MaxBackups int
	// MaxAgeDays is the age after which rotated files are removed.
	MaxAgeDays int
	// Compress gzips rotated files.
	Compress bool
}

// Record describes one served connection.
type Record struct {
	RequestID  string
	RemoteAddr string
	Time       time.Time
	// Path is the request path, or "-" when the line could not be parsed.
	Path     string
	Status   int
	Bytes    int
	Duration time.Duration
}

// Logger writes access records.
type Logger struct {
	handler slog.Handler
	closer  io.Closer
}

// New creates an access logger. A disabled config yields a logger that
// discards records.
func New(cfg Config) *Logger {
	if !cfg.Enabled {
		return &Logger{handler: slog.DiscardHandler}
	}

	var w io.Writer
	var closer io.Closer
	switch cfg.Output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		lj := &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		w, closer = lj, lj
	}

	l := NewWriter(w)
	l.closer = closer
	return l
}

// NewWriter creates an access logger writing JSON lines to w.
func NewWriter(w io.Writer) *Logger {
	return &Logger{handler: slog.NewJSONHandler(w, nil)}
}

// Log writes one record.
func (l *Logger) Log(r Record) {
	if l == nil {
		return
	}
	// The slog record time is the connection start, not the write time.
	rec := slog.NewRecord(r.Time, slog.LevelInfo, "access", 0)
	rec.AddAttrs(
		slog.String("request_id", r.RequestID),
		slog.String("remote", r.RemoteAddr),
		slog.String("path", r.Path),
		slog.Int("status", r.Status),
		slog.Int("bytes", r.Bytes),
		slog.Float64("duration_ms", float64(r.Duration.Microseconds())/1000),
	)
	_ = l.handler.Handle(context.Background(), rec)
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
