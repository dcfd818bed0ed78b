// Package tlsroots provides TLS material for the Gemini listener.
//
//   - keypair.go: server certificate + key + optional chain loading
//   - roots.go: client CA pool for optional client-certificate verification
//   - config.go: the server tls.Config
//   - watcher.go: certificate hot-reload via fsnotify
//
// Loading failures are configuration faults: the server refuses to start.
package tlsroots
