package geminiserver

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/geminid/internal/core/domain"
	"github.com/yndnr/geminid/internal/telemetry/accesslog"
	"github.com/yndnr/geminid/internal/telemetry/logger"
	"github.com/yndnr/geminid/pkg/geminiuri"
)

// Observer is notified of connection and request lifecycle events. It must
// be safe for concurrent use.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	HandshakeFailed()
	HandlerFailed()
	RequestServed(status, bodyBytes int, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened()                      {}
func (nopObserver) ConnectionClosed()                      {}
func (nopObserver) HandshakeFailed()                       {}
func (nopObserver) HandlerFailed()                         {}
func (nopObserver) RequestServed(int, int, time.Duration) {}

// exchange is the state carried through one connection's pipeline.
type exchange struct {
	id        string
	start     time.Time
	remote    net.Addr
	peerCerts []*x509.Certificate
	uri       *geminiuri.URI
	response  *domain.Response
	bodyBytes int
}

func (ex *exchange) path() string {
	if ex.uri == nil {
		return "-"
	}
	return ex.uri.Path
}

func (ex *exchange) status() int {
	if ex.response == nil {
		return 0
	}
	return int(ex.response.Status)
}

func newRequestID(t time.Time) string {
	id, err := ulid.New(ulid.Timestamp(t), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "unknown"
	}
	return id.String()
}

// serveConn runs the whole pipeline for one connection and closes it.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	ex := &exchange{start: time.Now(), remote: conn.RemoteAddr()}
	ex.id = newRequestID(ex.start)

	ctx = logger.WithRequestID(logger.WithLogger(ctx, s.logger), ex.id)
	log := logger.L(ctx)

	s.observer.ConnectionOpened()
	defer s.observer.ConnectionClosed()

	// Closed: every connection gets exactly one record, written after the
	// socket is closed. Status 0 means nothing was sent.
	defer s.logAccess(ex)
	defer conn.Close()

	if s.cfg.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(ex.start.Add(s.cfg.ReadTimeout)); err != nil {
			log.Debug("set read deadline failed", "remote", ex.remote.String(), "error", err)
		}
	}

	// AwaitingLine: the handshake shares the read deadline.
	if tc, ok := conn.(*tls.Conn); ok {
		if err := tc.HandshakeContext(ctx); err != nil {
			log.Debug("tls handshake failed", "remote", ex.remote.String(), "error", err)
			s.observer.HandshakeFailed()
			return
		}
		ex.peerCerts = tc.ConnectionState().PeerCertificates
	}

	ex.response = s.handle(ctx, conn, ex)
	if ex.response == nil {
		return
	}

	// Responding
	if s.cfg.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			return
		}
	}
	bw := bufio.NewWriter(conn)
	n, err := ex.response.WriteTo(bw, s.cfg.Defaults)
	if err == nil {
		err = bw.Flush()
	}
	ex.bodyBytes = n
	if err != nil {
		log.Debug("response write failed", "remote", ex.remote.String(), "error", err)
	}
	s.observer.RequestServed(ex.status(), ex.bodyBytes, time.Since(ex.start))
}

// handle reads, parses and dispatches the request. A nil response means the
// connection closes without an answer.
func (s *Server) handle(ctx context.Context, conn net.Conn, ex *exchange) *domain.Response {
	log := logger.L(ctx)

	// AwaitingLine -> Parsing
	line, err := readRequestLine(conn, s.cfg.MaxRequestLine)
	if err != nil {
		var pe *domain.ProtocolError
		if errors.As(err, &pe) {
			log.Debug("rejected request line", "remote", ex.remote.String(), "error", err)
			return pe.Response()
		}
		if !errors.Is(err, io.EOF) {
			log.Debug("request read failed", "remote", ex.remote.String(), "error", err)
		}
		return nil
	}

	// Parsing -> Routing
	uri, err := geminiuri.Parse(line, s.cfg.MaxRequestLine)
	if err != nil {
		log.Debug("invalid request URI", "remote", ex.remote.String(), "error", err)
		if errors.Is(err, geminiuri.ErrTooLong) {
			return domain.ErrURITooLong.Response()
		}
		return domain.ErrInvalidURI.Response()
	}
	ex.uri = uri

	if s.cfg.RejectProxy && uri.Scheme != geminiuri.DefaultScheme {
		return domain.ErrProxyRefused.Response()
	}

	// Routing -> Handling
	if h, params, ok := s.router.Match(uri.Path); ok {
		return s.runHandler(ctx, newContext(ctx, ex, params, s), h)
	}

	// Routing -> Responding
	resp, err := s.static.Resolve(uri.Path)
	if err != nil {
		if errors.Is(err, domain.ErrTemporary) {
			log.Error("static file read failed", "path", uri.Path, "error", err)
		}
		return domain.ResponseForError(err)
	}
	return resp
}

// runHandler is the failure boundary around application code.
func (s *Server) runHandler(ctx context.Context, c *Context, h Handler) (resp *domain.Response) {
	log := logger.L(ctx)

	defer func() {
		if r := recover(); r != nil {
			s.observer.HandlerFailed()
			log.Error("handler panic recovered",
				"path", c.Path(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			resp = domain.ErrTemporary.Response()
		}
	}()

	if err := h.ServeGemini(c); err != nil {
		s.observer.HandlerFailed()
		log.Error("handler failed", "path", c.Path(), "error", err)
		return domain.ErrTemporary.Response()
	}
	return c.Response()
}

func (s *Server) logAccess(ex *exchange) {
	s.access.Log(accesslog.Record{
		RequestID:  ex.id,
		RemoteAddr: ex.remote.String(),
		Time:       ex.start,
		Path:       ex.path(),
		Status:     ex.status(),
		Bytes:      ex.bodyBytes,
		Duration:   time.Since(ex.start),
	})
}

// readRequestLine reads one line terminated by CRLF (a bare LF is tolerated)
// and returns it without the terminator. At most maxLen content bytes are
// accepted; the reader never consumes more than maxLen+3 bytes.
func readRequestLine(r io.Reader, maxLen int) (string, error) {
	if maxLen <= 0 {
		return "", fmt.Errorf("geminiserver: invalid max request line %d", maxLen)
	}

	limit := maxLen + len(domain.Terminator) + 1
	br := bufio.NewReaderSize(io.LimitReader(r, int64(limit)), limit)

	line, err := br.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if line == "" {
				return "", io.EOF
			}
			if len(line) > maxLen {
				return "", domain.ErrURITooLong
			}
			return "", domain.ErrInvalidURI.WithCause(io.ErrUnexpectedEOF)
		}
		return "", err
	}

	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if len(line) > maxLen {
		return "", domain.ErrURITooLong
	}
	return line, nil
}
