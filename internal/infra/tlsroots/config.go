package tlsroots

import "crypto/tls"

// CertificateFunc matches tls.Config.GetCertificate.
type CertificateFunc func(*tls.ClientHelloInfo) (*tls.Certificate, error)

// ServerConfig builds the listener TLS config. Client certificates are
// always requested because Gemini uses them for identity; they are only
// verified when clientCAs is non-nil.
func ServerConfig(getCert CertificateFunc, clientCAs *Pool) *tls.Config {
	cfg := &tls.Config{
		GetCertificate: getCert,
		MinVersion:     tls.VersionTLS12,
		ClientAuth:     tls.RequestClientCert,
	}
	if clientCAs != nil {
		cfg.ClientCAs = clientCAs.Pool()
		cfg.ClientAuth = tls.VerifyClientCertIfGiven
	}
	return cfg
}

// StaticCertificate returns a CertificateFunc that always serves cert.
func StaticCertificate(cert *tls.Certificate) CertificateFunc {
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		return cert, nil
	}
}
