package httpserver

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// TLSConfig holds TLS configuration for the relay's listener.
type TLSConfig struct {
	// CertFile is the path to the server certificate file (PEM format)
	CertFile string

	// KeyFile is the path to the server private key file (PEM format)
	KeyFile string

	// CAFile is the path to the CA certificate for client verification (optional)
	CAFile string

	// ClientAuth specifies the server's policy for TLS client authentication.
	// See ParseClientAuth for the configuration names.
	ClientAuth tls.ClientAuthType

	// MinVersion specifies the minimum TLS version to accept
	// Default: TLS 1.2
	MinVersion uint16
}

// ParseClientAuth maps a configuration value to a tls.ClientAuthType.
// Accepted values are "none", "request", "require-any", "verify-if-given"
// and "require-and-verify"; the empty string means "none".
func ParseClientAuth(mode string) (tls.ClientAuthType, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "none":
		return tls.NoClientCert, nil
	case "request":
		return tls.RequestClientCert, nil
	case "require-any":
		return tls.RequireAnyClientCert, nil
	case "verify-if-given":
		return tls.VerifyClientCertIfGiven, nil
	case "require-and-verify", "mtls":
		return tls.RequireAndVerifyClientCert, nil
	default:
		return tls.NoClientCert, fmt.Errorf("httpserver: unknown client auth mode %q", mode)
	}
}

// NewTLSConfig creates a *tls.Config from TLS configuration.
//
// Example usage:
//
//	tlsCfg, err := httpserver.NewTLSConfig(&httpserver.TLSConfig{
//	    CertFile:   "/path/to/server.crt",
//	    KeyFile:    "/path/to/server.key",
//	    CAFile:     "/path/to/ca.crt",
//	    ClientAuth: tls.RequireAndVerifyClientCert,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	server := &http.Server{Addr: ":8443", Handler: handler, TLSConfig: tlsCfg}
//	server.ListenAndServeTLS("", "")
func NewTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, errors.New("httpserver: TLS config is nil")
	}
	if cfg.CertFile == "" {
		return nil, errors.New("httpserver: server certificate file is required")
	}
	if cfg.KeyFile == "" {
		return nil, errors.New("httpserver: server key file is required")
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ClientAuth: cfg.ClientAuth,
	}
	if cfg.MinVersion > 0 {
		tlsConfig.MinVersion = cfg.MinVersion
	}

	cert, err := loadCertificate(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("httpserver: load server certificate: %w", err)
	}
	tlsConfig.Certificates = []tls.Certificate{cert}

	if cfg.CAFile != "" {
		caCertPool, err := loadCACertificate(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("httpserver: load CA certificate: %w", err)
		}
		tlsConfig.ClientCAs = caCertPool
	} else if cfg.ClientAuth == tls.RequireAndVerifyClientCert || cfg.ClientAuth == tls.VerifyClientCertIfGiven {
		return nil, errors.New("httpserver: client certificate verification requires a CA file")
	}

	return tlsConfig, nil
}

// ConfigureServer sets server.TLSConfig from cfg.
func ConfigureServer(server *http.Server, cfg *TLSConfig) error {
	if server == nil {
		return errors.New("httpserver: server is nil")
	}

	tlsConfig, err := NewTLSConfig(cfg)
	if err != nil {
		return err
	}

	server.TLSConfig = tlsConfig
	return nil
}

func loadCertificate(certFile, keyFile string) (tls.Certificate, error) {
	certPEM, err := readTLSFile(certFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read certificate file: %w", err)
	}

	keyPEM, err := readTLSFile(keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read key file: %w", err)
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parse certificate: %w", err)
	}

	return cert, nil
}

func loadCACertificate(caFile string) (*x509.CertPool, error) {
	caCert, err := readTLSFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA certificate")
	}

	return caCertPool, nil
}

// readTLSFile resolves path and reads it through os.OpenInRoot so the read
// cannot escape the file's directory via symlinks.
func readTLSFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("httpserver: empty TLS file path")
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("httpserver: resolve TLS path %q: %w", path, err)
	}

	f, err := os.OpenInRoot(filepath.Dir(absPath), filepath.Base(absPath))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
