package geminiserver

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"log/slog"
	"net"

	"github.com/yndnr/geminid/internal/core/domain"
	"github.com/yndnr/geminid/internal/core/mimetype"
	"github.com/yndnr/geminid/internal/telemetry/logger"
	"github.com/yndnr/geminid/pkg/geminiuri"
)

// Context is the per-request state handed to a Handler. It is not safe for
// use after the handler returns.
//
// The response starts as "40 Temporary failure" so a handler that never
// responds still produces a well-formed answer.
type Context struct {
	ctx       context.Context
	uri       *geminiuri.URI
	params    Params
	remote    net.Addr
	peerCerts []*x509.Certificate
	templates *Templates
	mimeHint  func(name string) string

	response *domain.Response
	mime     string
	charset  string
	lang     string
}

func newContext(ctx context.Context, ex *exchange, params Params, srv *Server) *Context {
	return &Context{
		ctx:       ctx,
		uri:       ex.uri,
		params:    params,
		remote:    ex.remote,
		peerCerts: ex.peerCerts,
		templates: srv.templates,
		mimeHint:  srv.types.Lookup,
		response:  domain.TemporaryFailure(""),
	}
}

// Context returns the request context. It carries the request id and logger.
func (c *Context) Context() context.Context { return c.ctx }

// Logger returns the request-scoped logger.
func (c *Context) Logger() *slog.Logger { return logger.L(c.ctx) }

// URI returns the parsed request URI.
func (c *Context) URI() *geminiuri.URI { return c.uri }

// Path returns the request path.
func (c *Context) Path() string { return c.uri.Path }

// Params returns all captured route parameters.
func (c *Context) Params() Params { return c.params }

// Param returns a captured route parameter, or "".
func (c *Context) Param(name string) string { return c.params.Get(name) }

// Input returns the decoded query, i.e. the user's answer to a 1x prompt.
func (c *Context) Input() string { return c.uri.Input() }

// HasInput reports whether the request carried a query.
func (c *Context) HasInput() bool { return c.uri.HasInput() }

// RemoteAddr returns the client address.
func (c *Context) RemoteAddr() net.Addr { return c.remote }

// ClientCertificate returns the client's leaf certificate, or nil.
func (c *Context) ClientCertificate() *x509.Certificate {
	if len(c.peerCerts) == 0 {
		return nil
	}
	return c.peerCerts[0]
}

// ClientFingerprint returns the hex SHA-256 of the client certificate, or "".
func (c *Context) ClientFingerprint() string {
	cert := c.ClientCertificate()
	if cert == nil {
		return ""
	}
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

// SetMIME sets the MIME type used by success responses.
func (c *Context) SetMIME(mime string) { c.mime = mime }

// SetCharset overrides the server default charset for this response.
func (c *Context) SetCharset(charset string) { c.charset = charset }

// SetLang overrides the server default language for this response.
func (c *Context) SetLang(lang string) { c.lang = lang }

// Response returns the response as it stands, with presentation hints applied.
func (c *Context) Response() *domain.Response {
	r := *c.response
	// An explicit meta on a success response already names the type.
	if r.MIME == "" && r.Meta == "" {
		r.MIME = c.mime
	}
	if r.Charset == "" {
		r.Charset = c.charset
	}
	if r.Lang == "" {
		r.Lang = c.lang
	}
	return &r
}

// Respond replaces the response. The response primitives below all go
// through it; they return nil so handlers can end with "return c.Success(...)".
func (c *Context) Respond(r *domain.Response) error {
	if r == nil {
		r = domain.TemporaryFailure("")
	}
	c.response = r
	return nil
}

// Status responds with an arbitrary status, meta and body.
func (c *Context) Status(status domain.Status, meta string, body []byte) error {
	return c.Respond(domain.Respond(status, meta, body))
}

// RequestInput answers 10 with prompt.
func (c *Context) RequestInput(prompt string) error { return c.Respond(domain.Input(prompt)) }

// RequestSensitiveInput answers 11 with prompt.
func (c *Context) RequestSensitiveInput(prompt string) error {
	return c.Respond(domain.SensitiveInput(prompt))
}

// Success answers 20 with body, using the MIME set by SetMIME or the server
// default.
func (c *Context) Success(body []byte) error { return c.Respond(domain.Success(body, "")) }

// Gemtext answers 20 with a text/gemini body.
func (c *Context) Gemtext(text string) error {
	return c.Respond(domain.Success([]byte(text), domain.NativeMIME))
}

// Text answers 20 with a text/plain body.
func (c *Context) Text(text string) error {
	return c.Respond(domain.Success([]byte(text), "text/plain"))
}

// Redirect answers 30.
func (c *Context) Redirect(target string) error { return c.Respond(domain.Redirect(target)) }

// RedirectPermanent answers 31.
func (c *Context) RedirectPermanent(target string) error {
	return c.Respond(domain.RedirectPermanent(target))
}

// TemporaryFailure answers 40.
func (c *Context) TemporaryFailure(meta string) error {
	return c.Respond(domain.TemporaryFailure(meta))
}

// ServerUnavailable answers 41.
func (c *Context) ServerUnavailable(meta string) error {
	return c.Respond(domain.ServerUnavailable(meta))
}

// CGIError answers 42.
func (c *Context) CGIError(meta string) error { return c.Respond(domain.CGIError(meta)) }

// ProxyError answers 43.
func (c *Context) ProxyError(meta string) error { return c.Respond(domain.ProxyError(meta)) }

// SlowDown answers 44.
func (c *Context) SlowDown(seconds int) error { return c.Respond(domain.SlowDown(seconds)) }

// PermanentFailure answers 50.
func (c *Context) PermanentFailure(meta string) error {
	return c.Respond(domain.PermanentFailure(meta))
}

// NotFound answers 51.
func (c *Context) NotFound(meta string) error { return c.Respond(domain.NotFound(meta)) }

// Gone answers 52.
func (c *Context) Gone(meta string) error { return c.Respond(domain.Gone(meta)) }

// ProxyRequestRefused answers 53.
func (c *Context) ProxyRequestRefused(meta string) error {
	return c.Respond(domain.ProxyRequestRefused(meta))
}

// BadRequest answers 59.
func (c *Context) BadRequest(meta string) error { return c.Respond(domain.BadRequest(meta)) }

// ClientCertificateRequired answers 60.
func (c *Context) ClientCertificateRequired(meta string) error {
	return c.Respond(domain.ClientCertificateRequired(meta))
}

// CertificateNotAuthorized answers 61.
func (c *Context) CertificateNotAuthorized(meta string) error {
	return c.Respond(domain.CertificateNotAuthorized(meta))
}

// CertificateNotValid answers 62.
func (c *Context) CertificateNotValid(meta string) error {
	return c.Respond(domain.CertificateNotValid(meta))
}

// Render executes a template and answers 20 with the result. The MIME type
// comes from SetMIME, else from the template name's extension, else
// text/gemini. Rendering errors are returned so the pipeline answers 40.
func (c *Context) Render(name string, data any) error {
	body, err := c.templates.Render(name, data)
	if err != nil {
		return err
	}

	mime := c.mime
	if mime == "" && c.mimeHint != nil {
		if hint := c.mimeHint(name); hint != mimetype.Fallback {
			mime = hint
		}
	}
	if mime == "" {
		mime = domain.NativeMIME
	}
	return c.Respond(domain.Success(body, mime))
}
