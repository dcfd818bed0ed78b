package tlsroots

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrNoCertsFound is returned when no certificates are found in a PEM file.
	ErrNoCertsFound = errors.New("tlsroots: no certificates found in PEM file")
)

// Pool holds the CAs trusted to issue client certificates.
type Pool struct {
	certPool *x509.CertPool
	count    int
}

// NewEmptyPool creates a new empty certificate pool without system roots.
func NewEmptyPool() *Pool {
	return &Pool{certPool: x509.NewCertPool()}
}

// LoadPool creates a pool from a PEM file.
func LoadPool(path string) (*Pool, error) {
	p := NewEmptyPool()
	if err := p.AddCertFile(path); err != nil {
		return nil, err
	}
	return p, nil
}

// AddCertFile adds certificates from a PEM file.
// Multiple certificates in the same file are supported.
func (p *Pool) AddCertFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tlsroots: read cert file %s: %w", path, err)
	}
	return p.AddCertPEM(data)
}

// AddCertPEM adds certificates from PEM-encoded data.
func (p *Pool) AddCertPEM(pemData []byte) error {
	ders, err := decodeCertificates(pemData)
	if err != nil {
		return err
	}
	for _, der := range ders {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return fmt.Errorf("tlsroots: parse certificate: %w", err)
		}
		p.certPool.AddCert(cert)
		p.count++
	}
	return nil
}

// Pool returns the underlying x509.CertPool.
func (p *Pool) Pool() *x509.CertPool {
	return p.certPool
}

// Len returns the number of certificates added.
func (p *Pool) Len() int {
	return p.count
}

// decodeCertificates returns the DER bytes of every CERTIFICATE block.
// Other block types are skipped.
func decodeCertificates(pemData []byte) ([][]byte, error) {
	var ders [][]byte
	for len(pemData) > 0 {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		ders = append(ders, block.Bytes)
	}
	if len(ders) == 0 {
		return nil, ErrNoCertsFound
	}
	return ders, nil
}
