package geminiuri

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultScheme is assumed when the request omits one.
	DefaultScheme = "gemini"

	// DefaultPort is the registered Gemini port.
	DefaultPort = "1965"

	// DefaultMaxLength is the request-line limit in bytes, excluding CRLF.
	DefaultMaxLength = 1024
)

var (
	// ErrInvalid is returned for request lines that are not a usable URI.
	ErrInvalid = errors.New("geminiuri: invalid URI")

	// ErrTooLong is returned when the line exceeds the length limit.
	ErrTooLong = errors.New("geminiuri: URI too long")
)

// URI is a parsed request. It is never mutated after Parse returns.
type URI struct {
	Scheme   string
	Host     string
	Port     string
	Path     string
	RawQuery string

	rawPath string
}

// Parse parses a request line. A single trailing CRLF (or bare LF) is
// stripped first; maxLen <= 0 disables the length check.
func Parse(line string, maxLen int) (*URI, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	if maxLen > 0 && len(line) > maxLen {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrTooLong, len(line), maxLen)
	}
	if line == "" {
		return nil, fmt.Errorf("%w: empty request", ErrInvalid)
	}
	if !utf8.ValidString(line) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrInvalid)
	}
	if i := strings.IndexFunc(line, isControl); i >= 0 {
		return nil, fmt.Errorf("%w: control character at offset %d", ErrInvalid, i)
	}

	u, err := url.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%w: userinfo not allowed", ErrInvalid)
	}
	if u.Opaque != "" {
		return nil, fmt.Errorf("%w: opaque URI", ErrInvalid)
	}
	if u.Host == "" && u.Path != "" && !strings.HasPrefix(u.Path, "/") {
		return nil, fmt.Errorf("%w: relative path %q", ErrInvalid, u.Path)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = DefaultScheme
	}

	path, rawPath := u.Path, u.RawPath
	if path == "" {
		path, rawPath = "/", ""
	}

	return &URI{
		Scheme:   scheme,
		Host:     strings.ToLower(u.Hostname()),
		Port:     u.Port(),
		Path:     path,
		RawQuery: u.RawQuery,
		rawPath:  rawPath,
	}, nil
}

// Input returns the percent-decoded query, which carries the answer to a
// 1x input prompt. A query that fails to decode is returned verbatim.
func (u *URI) Input() string {
	if u.RawQuery == "" {
		return ""
	}
	s, err := url.QueryUnescape(u.RawQuery)
	if err != nil {
		return u.RawQuery
	}
	return s
}

// HasInput reports whether the request carried a query.
func (u *URI) HasInput() bool {
	return u.RawQuery != ""
}

// EscapedPath returns the path in its escaped form.
func (u *URI) EscapedPath() string {
	return u.url().EscapedPath()
}

// String reassembles the URI.
func (u *URI) String() string {
	return u.url().String()
}

func (u *URI) url() *url.URL {
	host := u.Host
	switch {
	case u.Port != "":
		host = net.JoinHostPort(u.Host, u.Port)
	case strings.Contains(u.Host, ":"):
		host = "[" + u.Host + "]"
	}
	return &url.URL{
		Scheme:   u.Scheme,
		Host:     host,
		Path:     u.Path,
		RawPath:  u.rawPath,
		RawQuery: u.RawQuery,
	}
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
