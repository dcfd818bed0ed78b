package config

import "time"

// Default configuration values.
const (
	DefaultAddr           = ":1965"
	DefaultMaxRequestLine = 1024
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultAccessLogOutput     = "stdout"
	DefaultAccessLogMaxSizeMB  = 100
	DefaultAccessLogMaxBackups = 10
	DefaultAccessLogMaxAgeDays = 30

	DefaultMetricsAddr = "127.0.0.1:9465"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Addr:           DefaultAddr,
			MaxRequestLine: DefaultMaxRequestLine,
			ReadTimeout:    DefaultReadTimeout,
			WriteTimeout:   DefaultWriteTimeout,
			RejectProxy:    true,
		},
		TLS: TLSSection{
			Reload: true,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		AccessLog: AccessLogSection{
			Enabled:    true,
			Output:     DefaultAccessLogOutput,
			MaxSizeMB:  DefaultAccessLogMaxSizeMB,
			MaxBackups: DefaultAccessLogMaxBackups,
			MaxAgeDays: DefaultAccessLogMaxAgeDays,
			Compress:   true,
		},
		Metrics: MetricsSection{
			Enabled: false,
			Addr:    DefaultMetricsAddr,
		},
	}
}
