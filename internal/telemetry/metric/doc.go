// Package metric provides Prometheus metrics for geminid.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: the Registry and the connection/request instruments
//   - collector.go: a constant build-info collector
//
// Metrics include connections accepted and in flight, TLS handshake
// failures, requests by status, response body bytes, request latency by
// status class, and handler failures. They are exposed at /metrics by the
// optional HTTP endpoint.
package metric
