package config

import "time"

// ServerConfig is the root configuration for geminid.
type ServerConfig struct {
	Server    ServerSection    `koanf:"server"`
	TLS       TLSSection       `koanf:"tls"`
	Content   ContentSection   `koanf:"content"`
	Log       LogSection       `koanf:"log"`
	AccessLog AccessLogSection `koanf:"access_log"`
	Metrics   MetricsSection   `koanf:"metrics"`
}

// ServerSection configures the Gemini listener.
type ServerSection struct {
	Addr string `koanf:"addr"`

	// MaxRequestLine is the request line limit in bytes, CRLF excluded.
	MaxRequestLine int `koanf:"max_request_line"`

	// MaxConnections bounds concurrent connections. 0 means unlimited.
	MaxConnections int `koanf:"max_connections"`

	// AcceptRate limits new connections per second. 0 disables it.
	AcceptRate  float64 `koanf:"accept_rate"`
	AcceptBurst int     `koanf:"accept_burst"`

	// ReadTimeout covers the handshake and the request line; 0 disables it.
	ReadTimeout time.Duration `koanf:"read_timeout"`
	// WriteTimeout covers the response; 0 disables it.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// RejectProxy answers 53 to requests naming a scheme other than gemini.
	RejectProxy bool `koanf:"reject_proxy"`
}

// TLSSection configures the server certificate and client certificates.
type TLSSection struct {
	CertFile  string `koanf:"cert_file"`
	KeyFile   string `koanf:"key_file"`
	ChainFile string `koanf:"chain_file"`

	// ClientCAFile enables verification of client certificates that are
	// presented. Without it client certificates are accepted unverified.
	ClientCAFile string `koanf:"client_ca_file"`

	// Reload watches the key pair files and swaps the certificate on change.
	Reload bool `koanf:"reload"`
}

// ContentSection configures what is served.
type ContentSection struct {
	StaticRoot   string `koanf:"static_root"`
	TemplateRoot string `koanf:"template_root"`

	DefaultMIME string `koanf:"default_mime"`
	Charset     string `koanf:"charset"`
	Lang        string `koanf:"lang"`

	// MIMETypes adds or overrides extension mappings, e.g. {"gmi": "text/gemini"}.
	MIMETypes map[string]string `koanf:"mime_types"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// AccessLogSection configures the per-connection access log.
type AccessLogSection struct {
	Enabled    bool   `koanf:"enabled"`
	Output     string `koanf:"output"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}
