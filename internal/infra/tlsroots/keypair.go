package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// ErrKeyPairRequired is returned when the certificate or key path is empty.
var ErrKeyPairRequired = errors.New("tlsroots: certificate and key files are required")

// KeyPair names the files that make up the server identity.
type KeyPair struct {
	CertFile string
	KeyFile  string
	// ChainFile optionally holds intermediates appended after the leaf.
	ChainFile string
}

// LoadKeyPair loads the certificate, key and optional chain.
func LoadKeyPair(kp KeyPair) (*tls.Certificate, error) {
	if kp.CertFile == "" || kp.KeyFile == "" {
		return nil, ErrKeyPairRequired
	}

	cert, err := tls.LoadX509KeyPair(kp.CertFile, kp.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("tlsroots: load key pair: %w", err)
	}

	if kp.ChainFile != "" {
		data, err := os.ReadFile(kp.ChainFile)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: read chain file %s: %w", kp.ChainFile, err)
		}
		ders, err := decodeCertificates(data)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: chain file %s: %w", kp.ChainFile, err)
		}
		cert.Certificate = append(cert.Certificate, ders...)
	}

	if cert.Leaf == nil {
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("tlsroots: parse leaf: %w", err)
		}
		cert.Leaf = leaf
	}

	return &cert, nil
}
