package command

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yndnr/geminid/internal/tests/testcert"
)

// writeConfig writes a minimal valid config file and returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()

	dir := t.TempDir()
	files := testcert.Write(t, dir)
	body := "server:\n  addr: \"127.0.0.1:1965\"\n" +
		"tls:\n  cert_file: " + files.CertFile + "\n  key_file: " + files.KeyFile + "\n" +
		extra

	path := filepath.Join(dir, "geminid.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	app := App()
	app.Writer = &buf
	app.ErrWriter = &buf
	err := app.Run(append([]string{"geminid"}, args...))
	return buf.String(), err
}

func TestConfigCommand(t *testing.T) {
	cmd := ConfigCommand()
	if cmd.Name != "config" {
		t.Errorf("Name = %q", cmd.Name)
	}

	names := make(map[string]bool)
	for _, sub := range cmd.Subcommands {
		names[sub.Name] = true
	}
	for _, name := range []string{"check", "defaults"} {
		if !names[name] {
			t.Errorf("missing subcommand: %s", name)
		}
	}
}

func TestConfigCheck_Table(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")

	out, err := runApp(t, "config", "check", "-c", path)
	if err != nil {
		t.Fatalf("config check error = %v", err)
	}

	if !strings.Contains(out, "configuration OK: "+path) {
		t.Errorf("missing status line:\n%s", out)
	}
	if !strings.Contains(out, "log.level") || !strings.Contains(out, "debug") {
		t.Errorf("missing log.level row:\n%s", out)
	}
	if strings.Contains(out, filepath.Join(filepath.Dir(path), "server.key")) {
		t.Errorf("key path printed unmasked:\n%s", out)
	}
}

func TestConfigCheck_JSONWithFlagOverride(t *testing.T) {
	path := writeConfig(t, "")

	out, err := runApp(t, "-c", path, "config", "check", "-o", "json", "--addr", "127.0.0.1:1970")
	if err != nil {
		t.Fatalf("config check error = %v", err)
	}

	var got map[string]map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got["server"]["addr"] != "127.0.0.1:1970" {
		t.Errorf("server.addr = %v, want flag value", got["server"]["addr"])
	}
	if got["server"]["read_timeout"] != "30s" {
		t.Errorf("server.read_timeout = %v", got["server"]["read_timeout"])
	}
}

func TestConfigCheck_EnvOverride(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("GEMINID_ACCESS_LOG_OUTPUT", "stderr")

	out, err := runApp(t, "config", "check", "-c", path, "-o", "json")
	if err != nil {
		t.Fatalf("config check error = %v", err)
	}

	var got map[string]map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got["access_log"]["output"] != "stderr" {
		t.Errorf("access_log.output = %v, want stderr", got["access_log"]["output"])
	}
}

func TestConfigCheck_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing certificate", []string{"config", "check"}},
		{"unknown output", []string{"config", "check", "-o", "xml"}},
		{"bad log level", []string{"config", "check", "--cert", "c.pem", "--key", "k.pem", "--log-level", "loud"}},
		{"missing static root", []string{"config", "check", "--cert", "c.pem", "--key", "k.pem", "--public", "/does/not/exist"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runApp(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	out, err := runApp(t, "config", "defaults", "-o", "yaml")
	if err != nil {
		t.Fatalf("config defaults error = %v", err)
	}
	for _, want := range []string{"server:", "max_request_line: 1024", "access_log:", "reject_proxy: true"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}
