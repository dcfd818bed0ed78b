// Package main provides the entry point for geminid.
//
// geminid serves Gemini capsules over TLS: dynamic routes, a sandboxed
// static tree and text templates, with optional Prometheus metrics.
//
// Usage:
//
//	geminid [flags]
//	geminid serve --config /etc/geminid/config.yaml
//	geminid config check --config /etc/geminid/config.yaml
package main
