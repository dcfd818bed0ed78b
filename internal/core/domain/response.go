package domain

import (
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// NativeMIME is Gemini's own text type, the only one that carries a lang
	// parameter.
	NativeMIME = "text/gemini"

	// MaxMetaLength is the largest meta (in bytes) put on the wire.
	MaxMetaLength = 1024

	// Terminator ends the request line and the response header.
	Terminator = "\r\n"
)

// Defaults are server-level presentation hints. A per-response value always
// wins over the matching default.
type Defaults struct {
	MIME    string
	Charset string
	Lang    string
}

// Response is a Gemini response under construction or ready to serialize.
//
// For success statuses the meta is the MIME type: MIME wins over Meta, then
// Defaults.MIME, then NativeMIME. For all other statuses Meta is sent as is,
// or the status default when empty. Body is only ever written for 2x codes.
type Response struct {
	Status  Status
	Meta    string
	Body    []byte
	MIME    string
	Charset string
	Lang    string
}

// Respond is the primitive every constructor is built on.
func Respond(status Status, meta string, body []byte) *Response {
	return &Response{Status: status, Meta: meta, Body: body}
}

func respondDefault(status Status, meta string) *Response {
	if meta == "" {
		meta = status.DefaultMeta()
	}
	return Respond(status, meta, nil)
}

// Input asks the client for a line of input, sent back as the query.
func Input(prompt string) *Response { return respondDefault(StatusInput, prompt) }

// SensitiveInput is Input for values the client should not echo.
func SensitiveInput(prompt string) *Response {
	return respondDefault(StatusSensitiveInput, prompt)
}

// Success returns a 20 response. An empty mime resolves through Defaults.
func Success(body []byte, mime string) *Response {
	r := Respond(StatusSuccess, "", body)
	r.MIME = mime
	return r
}

// Redirect returns a temporary redirect to target.
func Redirect(target string) *Response { return Respond(StatusRedirectTemporary, target, nil) }

// RedirectPermanent returns a permanent redirect to target.
func RedirectPermanent(target string) *Response {
	return Respond(StatusRedirectPermanent, target, nil)
}

// TemporaryFailure returns a 40 response.
func TemporaryFailure(meta string) *Response { return respondDefault(StatusTemporaryFailure, meta) }

// ServerUnavailable returns a 41 response.
func ServerUnavailable(meta string) *Response {
	return respondDefault(StatusServerUnavailable, meta)
}

// CGIError returns a 42 response.
func CGIError(meta string) *Response { return respondDefault(StatusCGIError, meta) }

// ProxyError returns a 43 response.
func ProxyError(meta string) *Response { return respondDefault(StatusProxyError, meta) }

// SlowDown returns a 44 response telling the client how many seconds to wait.
func SlowDown(seconds int) *Response {
	if seconds <= 0 {
		return respondDefault(StatusSlowDown, "")
	}
	return Respond(StatusSlowDown, strconv.Itoa(seconds), nil)
}

// PermanentFailure returns a 50 response.
func PermanentFailure(meta string) *Response { return respondDefault(StatusPermanentFailure, meta) }

// NotFound returns a 51 response.
func NotFound(meta string) *Response { return respondDefault(StatusNotFound, meta) }

// Gone returns a 52 response.
func Gone(meta string) *Response { return respondDefault(StatusGone, meta) }

// ProxyRequestRefused returns a 53 response.
func ProxyRequestRefused(meta string) *Response {
	return respondDefault(StatusProxyRequestRefused, meta)
}

// BadRequest returns a 59 response.
func BadRequest(meta string) *Response { return respondDefault(StatusBadRequest, meta) }

// ClientCertificateRequired returns a 60 response.
func ClientCertificateRequired(meta string) *Response {
	return respondDefault(StatusClientCertificateRequired, meta)
}

// CertificateNotAuthorized returns a 61 response.
func CertificateNotAuthorized(meta string) *Response {
	return respondDefault(StatusCertificateNotAuthorized, meta)
}

// CertificateNotValid returns a 62 response.
func CertificateNotValid(meta string) *Response {
	return respondDefault(StatusCertificateNotValid, meta)
}

// ResolvedMeta returns the meta as it will appear on the wire, before
// line sanitizing.
func (r *Response) ResolvedMeta(d Defaults) string {
	if !r.Status.IsSuccess() {
		if r.Meta == "" {
			return r.Status.DefaultMeta()
		}
		return r.Meta
	}

	mime := firstNonEmpty(r.MIME, r.Meta, d.MIME, NativeMIME)
	if charset := firstNonEmpty(r.Charset, d.Charset); charset != "" && !hasParam(mime, "charset") {
		mime += "; charset=" + charset
	}
	if lang := firstNonEmpty(r.Lang, d.Lang); lang != "" && BaseType(mime) == NativeMIME && !hasParam(mime, "lang") {
		mime += "; lang=" + lang
	}
	return mime
}

// Header returns the full "<code> <meta>\r\n" line.
func (r *Response) Header(d Defaults) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(r.Status)))
	b.WriteByte(' ')
	b.WriteString(sanitizeMeta(r.ResolvedMeta(d)))
	b.WriteString(Terminator)
	return b.String()
}

// WriteTo serializes the response and returns the number of body bytes
// written. The body is dropped for every non-success status.
func (r *Response) WriteTo(w io.Writer, d Defaults) (int, error) {
	if _, err := io.WriteString(w, r.Header(d)); err != nil {
		return 0, err
	}
	if !r.Status.IsSuccess() || len(r.Body) == 0 {
		return 0, nil
	}
	return w.Write(r.Body)
}

// BaseType returns the lowercased type/subtype without parameters.
func BaseType(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

func hasParam(mime, name string) bool {
	parts := strings.Split(mime, ";")
	for _, p := range parts[1:] {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(p)), name+"=") {
			return true
		}
	}
	return false
}

// sanitizeMeta keeps the meta on one line and under MaxMetaLength bytes.
func sanitizeMeta(meta string) string {
	meta = strings.NewReplacer("\r", " ", "\n", " ").Replace(meta)
	if len(meta) <= MaxMetaLength {
		return meta
	}
	cut := MaxMetaLength
	for cut > 0 && !utf8.RuneStart(meta[cut]) {
		cut--
	}
	return meta[:cut]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
