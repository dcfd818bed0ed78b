package confloader

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "GEMINID_"

// Loader loads configuration from multiple sources.
type Loader struct {
	mu        sync.Mutex
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	sections  []string
	overrides map[string]any
	loaded    bool
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithEnvSections declares section names that contain underscores, such as
// "access_log", so GEMINID_ACCESS_LOG_OUTPUT maps to access_log.output.
func WithEnvSections(sections ...string) Option {
	return func(l *Loader) {
		l.sections = append(l.sections, sections...)
	}
}

// WithOverrides sets flat "section.key" values applied after every other
// source. Used for command-line flags.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		l.overrides = values
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	// Longest first so "access_log" wins over a hypothetical "access".
	sort.Slice(l.sections, func(i, j int) bool {
		return len(l.sections[i]) > len(l.sections[j])
	})

	return l
}

// Load loads configuration from all sources and unmarshals into target.
// Fields of target that no source sets keep their current value, so target
// should be pre-filled with defaults.
//
// Loading order (later sources override earlier):
//  1. Configuration file (YAML)
//  2. Environment variables
//  3. Overrides (flags)
func (l *Loader) Load(target any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.loadSources(); err != nil {
		return err
	}

	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	l.loaded = true
	return nil
}

// Reload discards everything loaded so far and loads all sources again.
func (l *Loader) Reload(target any) error {
	l.mu.Lock()
	l.k = koanf.New(".")
	l.loaded = false
	l.mu.Unlock()

	return l.Load(target)
}

func (l *Loader) loadSources() error {
	if l.filePath != "" {
		if err := l.LoadFile(l.filePath); err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
	}

	if err := l.LoadEnv(); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	if len(l.overrides) > 0 {
		if err := l.LoadMap(l.overrides); err != nil {
			return fmt.Errorf("load overrides: %w", err)
		}
	}
	return nil
}

// LoadFile loads configuration from a YAML file.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}

	provider := file.Provider(path)
	if err := l.k.Load(provider, yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}

	return nil
}

// LoadEnv loads configuration from environment variables.
// Environment variables use the format GEMINID_SECTION_KEY; only the first
// underscore after the section separates it from the key.
// Example: GEMINID_SERVER_MAX_REQUEST_LINE=2048 -> server.max_request_line
func (l *Loader) LoadEnv() error {
	provider := env.Provider(l.envPrefix, ".", l.envKey)
	if err := l.k.Load(provider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	return nil
}

func (l *Loader) envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
	for _, section := range l.sections {
		if rest, ok := strings.CutPrefix(s, section+"_"); ok {
			return section + "." + rest
		}
	}
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + key
}

// LoadMap loads flat "section.key" values (useful for flags or testing).
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// Unmarshal unmarshals the loaded configuration into the target struct.
// Uses koanf tags for struct field mapping.
func (l *Loader) Unmarshal(target any) error {
	return l.k.Unmarshal("", target)
}

// FilePath returns the configured file path, or "".
func (l *Loader) FilePath() string {
	return l.filePath
}

// Get returns a value from the configuration by key.
func (l *Loader) Get(key string) any {
	return l.k.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// GetInt returns an int value from the configuration.
func (l *Loader) GetInt(key string) int {
	return l.k.Int(key)
}

// GetBool returns a bool value from the configuration.
func (l *Loader) GetBool(key string) bool {
	return l.k.Bool(key)
}

// IsLoaded returns true if configuration has been loaded.
func (l *Loader) IsLoaded() bool {
	return l.loaded
}

// Keys returns all configuration keys.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}
