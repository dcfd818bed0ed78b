// Package mimetype provides the immutable extension to MIME type table used
// by static file serving.
//
// A Table is built once at configuration time from a built-in set plus
// operator overrides and is only read afterwards, so it is safe for
// concurrent use without locking.
package mimetype

import (
	"path"
	"strings"
)

// Fallback is returned for names without a known extension.
const Fallback = "application/octet-stream"

var builtin = map[string]string{
	".gmi":    "text/gemini",
	".gemini": "text/gemini",
	".txt":    "text/plain",
	".md":     "text/markdown",
	".html":   "text/html",
	".htm":    "text/html",
	".css":    "text/css",
	".csv":    "text/csv",
	".xml":    "text/xml",
	".js":     "text/javascript",
	".json":   "application/json",
	".atom":   "application/atom+xml",
	".rss":    "application/rss+xml",
	".pdf":    "application/pdf",
	".zip":    "application/zip",
	".gz":     "application/gzip",
	".tar":    "application/x-tar",
	".png":    "image/png",
	".jpg":    "image/jpeg",
	".jpeg":   "image/jpeg",
	".gif":    "image/gif",
	".webp":   "image/webp",
	".svg":    "image/svg+xml",
	".ico":    "image/vnd.microsoft.icon",
	".mp3":    "audio/mpeg",
	".ogg":    "audio/ogg",
	".flac":   "audio/flac",
	".wav":    "audio/wav",
	".mp4":    "video/mp4",
	".webm":   "video/webm",
}

// Table maps lowercased file extensions (with the leading dot) to MIME types.
type Table struct {
	types map[string]string
}

// New builds a table from the built-in set, then applies overrides. Override
// keys may be given with or without the leading dot; blank entries are skipped.
func New(overrides map[string]string) *Table {
	types := make(map[string]string, len(builtin)+len(overrides))
	for ext, typ := range builtin {
		types[ext] = typ
	}
	for ext, typ := range overrides {
		ext = normalizeExt(ext)
		typ = strings.TrimSpace(typ)
		if ext == "" || typ == "" {
			continue
		}
		types[ext] = typ
	}
	return &Table{types: types}
}

// Lookup returns the MIME type for a file name or path, or Fallback.
func (t *Table) Lookup(name string) string {
	if typ, ok := t.ByExtension(path.Ext(name)); ok {
		return typ
	}
	return Fallback
}

// ByExtension returns the MIME type registered for ext.
func (t *Table) ByExtension(ext string) (string, bool) {
	if t == nil {
		return "", false
	}
	typ, ok := t.types[normalizeExt(ext)]
	return typ, ok
}

// Len returns the number of registered extensions.
func (t *Table) Len() int {
	return len(t.types)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
