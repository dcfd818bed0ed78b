package tlsroots

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yndnr/geminid/internal/tests/testcert"
)

func TestAddCertPEM(t *testing.T) {
	pool := NewEmptyPool()
	certPEM, _ := testcert.New(t, "ca.local")

	if err := pool.AddCertPEM(certPEM); err != nil {
		t.Fatalf("AddCertPEM() error = %v", err)
	}
	if pool.Len() != 1 {
		t.Errorf("Len() = %d, want 1", pool.Len())
	}
}

func TestAddCertPEM_MultipleCerts(t *testing.T) {
	pool := NewEmptyPool()
	cert1, _ := testcert.New(t, "a.local")
	cert2, _ := testcert.New(t, "b.local")

	if err := pool.AddCertPEM(append(cert1, cert2...)); err != nil {
		t.Fatalf("AddCertPEM() error = %v", err)
	}
	if pool.Len() != 2 {
		t.Errorf("Len() = %d, want 2", pool.Len())
	}
}

func TestAddCertPEM_NoCerts(t *testing.T) {
	_, keyPEM := testcert.New(t, "a.local")

	err := NewEmptyPool().AddCertPEM(keyPEM)
	if !errors.Is(err, ErrNoCertsFound) {
		t.Errorf("AddCertPEM() error = %v, want ErrNoCertsFound", err)
	}
}

func TestAddCertPEM_InvalidCert(t *testing.T) {
	bad := []byte("-----BEGIN CERTIFICATE-----\naW52YWxpZA==\n-----END CERTIFICATE-----\n")
	if err := NewEmptyPool().AddCertPEM(bad); err == nil {
		t.Error("AddCertPEM() should fail on an unparsable certificate")
	}
}

func TestLoadPool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ca.pem")
	certPEM, _ := testcert.New(t, "ca.local")
	if err := os.WriteFile(path, certPEM, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	pool, err := LoadPool(path)
	if err != nil {
		t.Fatalf("LoadPool() error = %v", err)
	}
	if pool.Pool() == nil || pool.Len() != 1 {
		t.Errorf("LoadPool() returned %d certs", pool.Len())
	}

	if _, err := LoadPool(filepath.Join(dir, "missing.pem")); err == nil {
		t.Error("LoadPool() should fail for a missing file")
	}
}
