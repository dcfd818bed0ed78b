// Package domain defines the Gemini protocol model shared by the server.
//
// The package has no I/O dependencies beyond io.Writer:
//
//   - Status: two-digit response codes and their classes
//   - Response: status + meta + optional body, with wire serialization
//   - Defaults: server-level MIME/charset/lang resolved at serialization time
//   - ProtocolError: per-request failures mapped onto response statuses
package domain
