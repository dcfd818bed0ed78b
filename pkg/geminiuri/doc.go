// Package geminiuri parses Gemini request lines.
//
// A request line is a single absolute URL terminated by CRLF:
//
//	gemini://example.org/path?query\r\n
//
// The scheme and authority are optional from the client's side; a request
// without a scheme is treated as gemini. Parsing has no side effects and
// never touches the network or the filesystem.
//
// Rejections:
//
//   - longer than the configured limit (ErrTooLong, checked before parsing)
//   - empty, not UTF-8, or containing control characters
//   - carrying userinfo, opaque, or a relative path
package geminiuri
