package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geminid"

// Registry holds all application metrics. It satisfies the server's
// observer interface and is safe for concurrent use.
type Registry struct {
	reg *prometheus.Registry

	ConnectionsActive   prometheus.Gauge
	ConnectionsAccepted prometheus.Counter
	ConnectionsLimit    prometheus.Gauge
	HandshakeFailures   prometheus.Counter

	RequestsTotal   *prometheus.CounterVec
	ResponseBytes   prometheus.Counter
	RequestDuration *prometheus.HistogramVec
	HandlerFailures prometheus.Counter
}

// NewRegistry creates a registry with the geminid instruments plus the Go
// runtime, process and build-info collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Connections currently being served.",
		}),
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Connections accepted by the listener.",
		}),
		ConnectionsLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_limit",
			Help:      "Configured concurrent connection limit (0 = unlimited).",
		}),
		HandshakeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tls_handshake_failures_total",
			Help:      "TLS handshakes that failed before a request was read.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Responses written, by status code.",
		}, []string{"status"}),
		ResponseBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_body_bytes_total",
			Help:      "Response body bytes written.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from accept to close, by status class.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"class"}),
		HandlerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_failures_total",
			Help:      "Handlers that returned an error or panicked.",
		}),
	}

	r.reg.MustRegister(
		r.ConnectionsActive,
		r.ConnectionsAccepted,
		r.ConnectionsLimit,
		r.HandshakeFailures,
		r.RequestsTotal,
		r.ResponseBytes,
		r.RequestDuration,
		r.HandlerFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		NewBuildCollector(),
	)
	return r
}

// ConnectionOpened records an accepted connection.
func (r *Registry) ConnectionOpened() {
	r.ConnectionsAccepted.Inc()
	r.ConnectionsActive.Inc()
}

// ConnectionClosed records a finished connection.
func (r *Registry) ConnectionClosed() {
	r.ConnectionsActive.Dec()
}

// HandshakeFailed records a failed TLS handshake.
func (r *Registry) HandshakeFailed() {
	r.HandshakeFailures.Inc()
}

// HandlerFailed records a handler error or panic.
func (r *Registry) HandlerFailed() {
	r.HandlerFailures.Inc()
}

// RequestServed records one written response.
func (r *Registry) RequestServed(status, bodyBytes int, d time.Duration) {
	r.RequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	r.ResponseBytes.Add(float64(bodyBytes))
	r.RequestDuration.WithLabelValues(classLabel(status)).Observe(d.Seconds())
}

// SetConnectionLimit publishes the configured connection limit.
func (r *Registry) SetConnectionLimit(n int) {
	r.ConnectionsLimit.Set(float64(n))
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func classLabel(status int) string {
	if status < 10 || status > 69 {
		return "unknown"
	}
	return strconv.Itoa(status/10) + "x"
}
