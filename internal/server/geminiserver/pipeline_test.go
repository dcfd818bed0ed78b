package geminiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/geminid/internal/core/domain"
	"github.com/yndnr/geminid/internal/telemetry/accesslog"
	"github.com/yndnr/geminid/internal/telemetry/logger"
)

// countingObserver records lifecycle events.
type countingObserver struct {
	opened, closed, handshakes, failures, served atomic.Int64
	lastStatus                                   atomic.Int64
}

func (o *countingObserver) ConnectionOpened() { o.opened.Add(1) }
func (o *countingObserver) ConnectionClosed() { o.closed.Add(1) }
func (o *countingObserver) HandshakeFailed()  { o.handshakes.Add(1) }
func (o *countingObserver) HandlerFailed()    { o.failures.Add(1) }
func (o *countingObserver) RequestServed(status, _ int, _ time.Duration) {
	o.served.Add(1)
	o.lastStatus.Store(int64(status))
}

// syncBuffer is a bytes.Buffer safe for the access logger and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestServer(cfg *Config, router *Router, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	opts = append([]Option{WithLogger(logger.Discard())}, opts...)
	return New(cfg, router, opts...)
}

// roundTrip runs the pipeline over an in-memory connection and returns
// everything the server wrote before closing.
func roundTrip(t *testing.T, s *Server, request string) string {
	t.Helper()

	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.serveConn(context.Background(), server)
	}()

	_ = client.SetDeadline(time.Now().Add(5 * time.Second))
	go func() {
		// The server may stop reading early; the rest of the write fails.
		_, _ = io.WriteString(client, request)
	}()

	got, err := io.ReadAll(client)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	client.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("serveConn did not return")
	}
	return string(got)
}

func TestPipeline_RouteParam(t *testing.T) {
	r := NewRouter()
	r.HandleFunc("/hi/:name", func(c *Context) error {
		return c.Gemtext("Hello " + c.Param("name") + "\n")
	})
	s := newTestServer(nil, r)

	got := roundTrip(t, s, "gemini://localhost/hi/Barry\r\n")
	if want := "20 text/gemini\r\nHello Barry\n"; got != want {
		t.Errorf("response = %q, want %q", got, want)
	}
}

func TestPipeline_FirstRegisteredRouteWins(t *testing.T) {
	r := NewRouter()
	r.HandleFunc("/hi/:name", func(c *Context) error { return c.Text("first") })
	r.HandleFunc("/hi/Barry", func(c *Context) error { return c.Text("second") })
	s := newTestServer(nil, r)

	got := roundTrip(t, s, "gemini://localhost/hi/Barry\r\n")
	if !strings.HasSuffix(got, "\r\nfirst") {
		t.Errorf("response = %q, want the first route", got)
	}
}

func TestPipeline_URITooLong(t *testing.T) {
	var calls atomic.Int64
	r := NewRouter()
	r.HandleFunc("/*", func(c *Context) error {
		calls.Add(1)
		return c.Text("routed")
	})

	cfg := DefaultConfig()
	cfg.MaxRequestLine = 64
	s := newTestServer(cfg, r)

	base := "gemini://localhost/"
	tests := []struct {
		name    string
		request string
		want    string
	}{
		{"at limit", base + strings.Repeat("a", 64-len(base)) + "\r\n", "20 text/plain\r\nrouted"},
		{"one over", base + strings.Repeat("a", 65-len(base)) + "\r\n", "59 URI too long\r\n"},
		{"far over", base + strings.Repeat("a", 10000) + "\r\n", "59 URI too long\r\n"},
		{"far over without terminator", base + strings.Repeat("a", 10000), "59 URI too long\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := calls.Load()
			got := roundTrip(t, s, tt.request)
			if got != tt.want {
				t.Errorf("response = %q, want %q", got, tt.want)
			}
			if tt.want == "59 URI too long\r\n" && calls.Load() != before {
				t.Error("over-long request must never reach routing")
			}
		})
	}
}

func TestPipeline_BodyOnlyForSuccess(t *testing.T) {
	for code := 10; code <= 69; code++ {
		status := domain.Status(code)
		if !status.Valid() {
			continue
		}
		t.Run(status.String(), func(t *testing.T) {
			r := NewRouter()
			r.HandleFunc("/", func(c *Context) error {
				return c.Status(status, "meta", []byte("BODY"))
			})
			got := roundTrip(t, newTestServer(nil, r), "gemini://localhost/\r\n")

			header, body, _ := strings.Cut(got, "\r\n")
			if !strings.HasPrefix(header, status.String()[:2]+" ") {
				t.Errorf("header = %q", header)
			}
			if status.IsSuccess() {
				if body != "BODY" {
					t.Errorf("success body = %q, want BODY", body)
				}
			} else if body != "" {
				t.Errorf("status %d leaked body %q", code, body)
			}
		})
	}
}

func TestPipeline_HandlerFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler HandlerFunc
	}{
		{"panic", func(c *Context) error {
			_ = c.Text("partial")
			panic("boom")
		}},
		{"panic with error", func(c *Context) error { panic(errors.New("boom")) }},
		{"returned error", func(c *Context) error {
			_ = c.Text("partial")
			return errors.New("database unavailable")
		}},
		{"never responds", func(c *Context) error { return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &countingObserver{}
			r := NewRouter()
			r.Handle("/fail", tt.handler)
			s := newTestServer(nil, r, WithObserver(obs))

			got := roundTrip(t, s, "gemini://localhost/fail\r\n")
			if got != "40 Temporary failure\r\n" {
				t.Errorf("response = %q, want exactly one temporary failure", got)
			}
			if obs.served.Load() != 1 || obs.closed.Load() != 1 {
				t.Errorf("served = %d closed = %d, want 1 and 1", obs.served.Load(), obs.closed.Load())
			}
			wantFailures := int64(1)
			if tt.name == "never responds" {
				wantFailures = 0
			}
			if obs.failures.Load() != wantFailures {
				t.Errorf("handler failures = %d, want %d", obs.failures.Load(), wantFailures)
			}
		})
	}
}

func TestPipeline_PanicIsLogged(t *testing.T) {
	var logs syncBuffer
	log, err := logger.New(logger.Config{Level: "debug", Format: "json", Output: &logs})
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}

	r := NewRouter()
	r.HandleFunc("/boom", func(c *Context) error { panic("kaboom") })
	s := New(DefaultConfig(), r, WithLogger(log))

	if got := roundTrip(t, s, "gemini://localhost/boom\r\n"); got != "40 Temporary failure\r\n" {
		t.Fatalf("response = %q", got)
	}
	out := logs.String()
	for _, want := range []string{"handler panic recovered", "kaboom", `"stack"`, `"request_id"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestPipeline_NotFound(t *testing.T) {
	s := newTestServer(nil, nil)

	got := roundTrip(t, s, "gemini://host/unknown\r\n")
	if got != "51 Not found\r\n" {
		t.Errorf("response = %q, want %q", got, "51 Not found\r\n")
	}
}

func TestPipeline_StaticFallback(t *testing.T) {
	root, _ := newSandbox(t)
	static, err := NewStaticResolver(root, nil)
	if err != nil {
		t.Fatalf("NewStaticResolver() error = %v", err)
	}

	r := NewRouter()
	r.HandleFunc("/index.gmi", func(c *Context) error { return c.Gemtext("dynamic") })
	s := newTestServer(nil, r, WithStatic(static))

	tests := []struct {
		request string
		want    string
	}{
		{"gemini://localhost/index.gmi\r\n", "20 text/gemini\r\ndynamic"},
		{"gemini://localhost/notes/todo.txt\r\n", "20 text/plain\r\nbuy milk"},
		{"gemini://localhost/../secret.txt\r\n", "51 Not found\r\n"},
		{"gemini://localhost/%2e%2e/secret.txt\r\n", "51 Not found\r\n"},
		{"gemini://localhost/notes/%2e%2e%2f%2e%2e%2fsecret.txt\r\n", "51 Not found\r\n"},
		{"gemini://localhost/notes\r\n", "51 Not found\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.request, func(t *testing.T) {
			if got := roundTrip(t, s, tt.request); got != tt.want {
				t.Errorf("response = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPipeline_Defaults(t *testing.T) {
	r := NewRouter()
	r.HandleFunc("/gmi", func(c *Context) error { return c.Success([]byte("x")) })
	r.HandleFunc("/plain", func(c *Context) error { return c.Text("x") })
	r.HandleFunc("/override", func(c *Context) error {
		c.SetLang("fr")
		c.SetCharset("iso-8859-1")
		return c.Gemtext("x")
	})

	cfg := DefaultConfig()
	cfg.Defaults = domain.Defaults{Charset: "utf-8", Lang: "en"}
	s := newTestServer(cfg, r)

	tests := []struct {
		path   string
		header string
	}{
		{"/gmi", "20 text/gemini; charset=utf-8; lang=en"},
		{"/plain", "20 text/plain; charset=utf-8"},
		{"/override", "20 text/gemini; charset=iso-8859-1; lang=fr"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := roundTrip(t, s, "gemini://localhost"+tt.path+"\r\n")
			if want := tt.header + "\r\nx"; got != want {
				t.Errorf("response = %q, want %q", got, want)
			}
		})
	}
}

func TestPipeline_BadRequests(t *testing.T) {
	s := newTestServer(nil, nil)

	tests := []struct {
		name    string
		request string
		want    string
	}{
		{"empty line", "\r\n", "59 Bad request\r\n"},
		{"control character", "gemini://localhost/\x01\r\n", "59 Bad request\r\n"},
		{"invalid utf-8", "gemini://localhost/\xff\r\n", "59 Bad request\r\n"},
		{"userinfo", "gemini://user@localhost/\r\n", "59 Bad request\r\n"},
		{"relative path", "hello\r\n", "59 Bad request\r\n"},
		{"foreign scheme", "https://example.com/\r\n", "53 Proxy request refused\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := roundTrip(t, s, tt.request); got != tt.want {
				t.Errorf("response = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPipeline_ProxyAllowed(t *testing.T) {
	r := NewRouter()
	r.HandleFunc("/", func(c *Context) error { return c.Text(c.URI().Scheme) })
	cfg := DefaultConfig()
	cfg.RejectProxy = false
	s := newTestServer(cfg, r)

	if got := roundTrip(t, s, "https://example.com/\r\n"); got != "20 text/plain\r\nhttps" {
		t.Errorf("response = %q", got)
	}
}

func TestPipeline_BareLFAndMissingScheme(t *testing.T) {
	r := NewRouter()
	r.HandleFunc("/q", func(c *Context) error { return c.Text(c.URI().Scheme + " " + c.Input()) })
	s := newTestServer(nil, r)

	if got := roundTrip(t, s, "//localhost/q?hello%20world\n"); got != "20 text/plain\r\ngemini hello world" {
		t.Errorf("response = %q", got)
	}
}

func TestPipeline_AccessLog(t *testing.T) {
	var buf syncBuffer
	r := NewRouter()
	r.HandleFunc("/hi/:name", func(c *Context) error { return c.Gemtext("Hello") })
	s := newTestServer(nil, r, WithAccessLog(accesslog.NewWriter(&buf)))

	roundTrip(t, s, "gemini://localhost/hi/Barry?secret\r\n")
	roundTrip(t, s, "\x01\r\n")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d access records, want 2: %q", len(lines), buf.String())
	}

	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if first["path"] != "/hi/Barry" || first["status"] != float64(20) || first["bytes"] != float64(5) {
		t.Errorf("first record = %v", first)
	}
	if id, _ := first["request_id"].(string); len(id) != 26 {
		t.Errorf("request_id = %q, want a ULID", id)
	}
	if strings.Contains(lines[0], "secret") {
		t.Error("access log must not record the query")
	}
	if second["path"] != "-" || second["status"] != float64(59) {
		t.Errorf("second record = %v", second)
	}
}

func TestPipeline_Observer(t *testing.T) {
	obs := &countingObserver{}
	s := newTestServer(nil, nil, WithObserver(obs))

	roundTrip(t, s, "gemini://localhost/missing\r\n")

	if obs.opened.Load() != 1 || obs.closed.Load() != 1 {
		t.Errorf("opened = %d closed = %d", obs.opened.Load(), obs.closed.Load())
	}
	if obs.served.Load() != 1 || obs.lastStatus.Load() != 51 {
		t.Errorf("served = %d last status = %d", obs.served.Load(), obs.lastStatus.Load())
	}
}

func TestPipeline_EOFBeforeRequest(t *testing.T) {
	obs := &countingObserver{}
	var buf syncBuffer
	s := newTestServer(nil, nil, WithObserver(obs), WithAccessLog(accesslog.NewWriter(&buf)))

	client, server := net.Pipe()
	client.Close()
	s.serveConn(context.Background(), server)

	if obs.served.Load() != 0 {
		t.Errorf("served = %d, want 0", obs.served.Load())
	}
	if obs.closed.Load() != 1 {
		t.Errorf("closed = %d, want 1", obs.closed.Load())
	}
	if !strings.Contains(buf.String(), `"status":0`) {
		t.Errorf("access record = %q, want status 0", buf.String())
	}
}

func TestReadRequestLine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxLen  int
		want    string
		wantErr error
	}{
		{"crlf", "gemini://a/\r\nrest", 64, "gemini://a/", nil},
		{"bare lf", "gemini://a/\n", 64, "gemini://a/", nil},
		{"exactly max", "abcd\r\n", 4, "abcd", nil},
		{"over max", "abcde\r\n", 4, "", domain.ErrURITooLong},
		{"over max no terminator", "abcdefghij", 4, "", domain.ErrURITooLong},
		{"empty stream", "", 4, "", io.EOF},
		{"partial line", "abc", 4, "", domain.ErrInvalidURI},
		{"lone cr at eof", "abc\r", 4, "", domain.ErrInvalidURI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readRequestLine(strings.NewReader(tt.input), tt.maxLen)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("readRequestLine() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("readRequestLine() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("readRequestLine() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := readRequestLine(strings.NewReader("x\r\n"), 0); err == nil {
		t.Error("readRequestLine() should reject a non-positive limit")
	}
}
