package tlsroots

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher serves the current key pair and reloads it when any of its files
// change. A failed reload keeps the previous certificate.
type Watcher struct {
	files   KeyPair
	cert    *tls.Certificate
	mu      sync.RWMutex
	done    chan struct{}
	stopped sync.Once
	logger  *slog.Logger

	// Debounce settings to avoid multiple reloads
	debounce   time.Duration
	settle     time.Duration
	lastReload time.Time
	reloadMu   sync.Mutex
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDebounce sets the debounce duration.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher loads the key pair and returns a watcher serving it.
func NewWatcher(files KeyPair, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		files:    files,
		done:     make(chan struct{}),
		logger:   slog.Default(),
		debounce: 500 * time.Millisecond,
		settle:   100 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(w)
	}

	if err := w.reload(); err != nil {
		return nil, fmt.Errorf("tlsroots: initial load: %w", err)
	}

	return w, nil
}

// Start watches the directories holding the key pair files.
// This function blocks until Stop() is called.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	defer watcher.Close()

	// Directories rather than files so editor-style renames are seen.
	watched := make(map[string]bool)
	names := make(map[string]bool)
	for _, f := range []string{w.files.CertFile, w.files.KeyFile, w.files.ChainFile} {
		if f == "" {
			continue
		}
		names[filepath.Base(f)] = true
		dir := filepath.Dir(f)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("tlsroots: watch dir %s: %w", dir, err)
		}
		watched[dir] = true
	}

	w.logger.Info("certificate watcher started",
		"cert_file", w.files.CertFile,
		"key_file", w.files.KeyFile,
		"chain_file", w.files.ChainFile,
	)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !names[filepath.Base(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			w.logger.Debug("certificate file changed",
				"file", event.Name,
				"op", event.Op.String(),
			)

			if err := w.debouncedReload(); err != nil {
				w.logger.Error("certificate reload failed",
					"error", err,
					"cert_file", w.files.CertFile,
				)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("certificate watcher error", "error", err)

		case <-w.done:
			return nil
		}
	}
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync() {
	go func() {
		if err := w.Start(); err != nil {
			w.logger.Error("certificate watcher stopped with error", "error", err)
		}
	}()
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopped.Do(func() { close(w.done) })
}

// GetCertificate returns the current certificate.
// This implements tls.Config.GetCertificate.
func (w *Watcher) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cert, nil
}

// Reload forces a reload, bypassing the debounce.
func (w *Watcher) Reload() error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()
	w.lastReload = time.Now()
	return w.reload()
}

func (w *Watcher) debouncedReload() error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	now := time.Now()
	if now.Sub(w.lastReload) < w.debounce {
		return nil
	}
	w.lastReload = now

	// Let the writer finish before reading.
	time.Sleep(w.settle)

	if err := w.reload(); err != nil {
		// Cert and key are often replaced one after the other; the next
		// event must get a chance to load the matching pair.
		w.lastReload = time.Time{}
		return err
	}
	return nil
}

func (w *Watcher) reload() error {
	cert, err := LoadKeyPair(w.files)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.cert = cert
	w.mu.Unlock()

	w.logger.Info("certificate loaded",
		"cert_file", w.files.CertFile,
		"subject", cert.Leaf.Subject.String(),
		"not_after", cert.Leaf.NotAfter,
	)

	return nil
}
