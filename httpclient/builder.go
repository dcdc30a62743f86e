package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/AmmannChristian/go-authrelay/oauth2client"
)

// DefaultTimeout bounds every downstream request unless overridden.
const DefaultTimeout = 30 * time.Second

// Builder provides a fluent interface for constructing the HTTP clients used
// for downstream calls, with optional bearer injection and TLS/mTLS support.
type Builder struct {
	// Bearer configuration
	tokenSource oauth2client.TokenSource

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsSkipVerify bool

	// HTTP client configuration
	timeout         time.Duration
	baseTransport   http.RoundTripper
	followRedirects bool
}

// NewBuilder creates a new HTTP client builder.
func NewBuilder() *Builder {
	return &Builder{
		timeout:         DefaultTimeout,
		followRedirects: true,
	}
}

// WithTokenSource makes every request carry a bearer token from source.
//
// Leave it unset when the token is chosen per call, as OutboundInvoker does.
func (b *Builder) WithTokenSource(source oauth2client.TokenSource) *Builder {
	b.tokenSource = source
	return b
}

// WithAuthorizedClient authenticates every request with the client-credentials
// token the manager holds for registrationID.
func (b *Builder) WithAuthorizedClient(manager *oauth2client.AuthorizedClientManager, registrationID string) *Builder {
	b.tokenSource = manager.TokenSource(registrationID)
	return b
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
func (b *Builder) WithTLS(caFile, certFile, keyFile string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	return b
}

// WithInsecureSkipVerify disables TLS certificate verification (NOT RECOMMENDED for production).
func (b *Builder) WithInsecureSkipVerify() *Builder {
	b.tlsSkipVerify = true
	return b
}

// WithTimeout sets the request timeout for the HTTP client.
// Default is DefaultTimeout if not specified.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithBaseTransport sets a custom base transport.
func (b *Builder) WithBaseTransport(transport http.RoundTripper) *Builder {
	b.baseTransport = transport
	return b
}

// WithoutRedirects disables automatic redirect following.
func (b *Builder) WithoutRedirects() *Builder {
	b.followRedirects = false
	return b
}

// Build constructs the HTTP client with the configured options.
func (b *Builder) Build() (*http.Client, error) {
	transport, err := b.buildTransport()
	if err != nil {
		return nil, err
	}

	if b.tokenSource != nil {
		transport = NewBearerTransport(b.tokenSource, transport)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   b.timeout,
	}

	if !b.followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client, nil
}

func (b *Builder) buildTransport() (http.RoundTripper, error) {
	if b.baseTransport != nil {
		return b.baseTransport, nil
	}

	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		// A replaced default transport (e.g. a test stub) is used as is
		return http.DefaultTransport, nil
	}

	transport := base.Clone()
	if b.tlsEnabled || b.tlsSkipVerify {
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("httpclient: TLS config failed: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
	} else {
		// Secure defaults even when TLS is not explicitly configured
		transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return transport, nil
}

// buildTLSConfig constructs the TLS configuration for the HTTP client.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: b.tlsSkipVerify, // #nosec G402
	}

	if b.tlsCAFile != "" {
		caCert, err := os.ReadFile(b.tlsCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}

		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = certPool
	}

	if b.tlsCertFile != "" && b.tlsKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(b.tlsCertFile, b.tlsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	} else if b.tlsCertFile != "" || b.tlsKeyFile != "" {
		return nil, errors.New("both TLS cert and key files must be provided for mTLS")
	}

	return tlsConfig, nil
}
