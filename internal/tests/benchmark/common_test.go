package benchmark

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/yndnr/geminid/internal/infra/tlsroots"
	"github.com/yndnr/geminid/internal/server/geminiserver"
	"github.com/yndnr/geminid/internal/telemetry/logger"
	"github.com/yndnr/geminid/internal/tests/testcert"
)

// RouteCounts defines the route table sizes for benchmarking.
var RouteCounts = []int{10, 100, 1000}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithRouteCounts runs a benchmark function with various route counts.
func runWithRouteCounts(b *testing.B, benchFn func(b *testing.B, count int)) {
	for _, count := range RouteCounts {
		b.Run(fmt.Sprintf("routes_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}

// buildRouter registers count parameterised routes plus /hi/:name last.
func buildRouter(b *testing.B, count int) *geminiserver.Router {
	b.Helper()
	r := geminiserver.NewRouter()
	ok := func(c *geminiserver.Context) error { return c.Gemtext("ok") }
	for i := 0; i < count-1; i++ {
		if err := r.HandleFunc(fmt.Sprintf("/section-%d/:id", i), ok); err != nil {
			b.Fatalf("HandleFunc: %v", err)
		}
	}
	if err := r.HandleFunc("/hi/:name", func(c *geminiserver.Context) error {
		return c.Gemtext("Hello " + c.Param("name"))
	}); err != nil {
		b.Fatalf("HandleFunc: %v", err)
	}
	return r
}

// startServer serves r over TLS on loopback and returns the address.
func startServer(b *testing.B, r *geminiserver.Router, opts ...geminiserver.Option) string {
	b.Helper()

	cert := testcert.Certificate(b, "localhost")
	cfg := geminiserver.DefaultConfig()
	cfg.TLSConfig = tlsroots.ServerConfig(tlsroots.StaticCertificate(&cert), nil)

	opts = append([]geminiserver.Option{geminiserver.WithLogger(logger.Discard())}, opts...)
	srv := geminiserver.New(cfg, r, opts...)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		b.Fatalf("listen: %v", err)
	}
	go srv.Serve(context.Background(), ln)

	b.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return ln.Addr().String()
}

// request performs one Gemini round trip and returns the bytes read.
func request(addr, line string) (int, error) {
	conn, err := tls.Dial("tcp", addr, &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if _, err := io.WriteString(conn, line); err != nil {
		return 0, err
	}
	n, err := io.Copy(io.Discard, conn)
	return int(n), err
}
