// Package buildinfo provides build information for geminid.
//
// Version, Commit and BuildTime are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/geminid/internal/infra/buildinfo.Version=1.0.0"
//
// The Go version is read from the runtime.
package buildinfo
