package grpcclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AmmannChristian/go-authrelay/oauth2client"
)

// Builder provides a fluent interface for constructing gRPC client connections
// whose RPCs carry bearer tokens from an oauth2client.TokenSource.
type Builder struct {
	address     string
	tokenSource oauth2client.TokenSource

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsServerName string
	plaintext     bool

	// Additional dial options
	dialOpts []grpc.DialOption
}

// NewBuilder creates a new gRPC client builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithAddress sets the server address (e.g., "server.example.com:9090").
func (b *Builder) WithAddress(address string) *Builder {
	b.address = address
	return b
}

// WithTokenSource makes every RPC carry a bearer token from source.
// A propagation.TokenPropagator forwards the inbound caller's token.
func (b *Builder) WithTokenSource(source oauth2client.TokenSource) *Builder {
	b.tokenSource = source
	return b
}

// WithAuthorizedClient authenticates every RPC with the client-credentials
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
//   - serverName: Expected server name for TLS verification (optional, overrides SNI)
func (b *Builder) WithTLS(caFile, certFile, keyFile, serverName string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	b.tlsServerName = serverName
	return b
}

// WithInsecure dials without TLS. Tokens are still attached, so use it only
// for local development and in-cluster sidecars.
func (b *Builder) WithInsecure() *Builder {
	b.plaintext = true
	return b
}

// WithDialOptions adds custom gRPC dial options.
// These options are applied after the token and TLS options.
func (b *Builder) WithDialOptions(opts ...grpc.DialOption) *Builder {
	b.dialOpts = append(b.dialOpts, opts...)
	return b
}

// Build constructs the gRPC client connection with the configured options.
// The connection is created lazily; no RPC is made before the first call.
func (b *Builder) Build(_ context.Context) (*grpc.ClientConn, error) {
	if b.address == "" {
		return nil, errors.New("grpcclient: server address is required")
	}
	if b.plaintext && b.tlsEnabled {
		return nil, errors.New("grpcclient: WithInsecure and WithTLS are mutually exclusive")
	}

	var opts []grpc.DialOption

	if b.tokenSource != nil {
		opts = append(opts,
			grpc.WithUnaryInterceptor(UnaryClientInterceptor(b.tokenSource)),
			grpc.WithStreamInterceptor(StreamClientInterceptor(b.tokenSource)),
		)
	}

	switch {
	case b.plaintext:
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	case b.tlsEnabled:
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("grpcclient: TLS config failed: %w", err)
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	default:
		// TLS with system roots unless plaintext is requested explicitly
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})))
	}

	opts = append(opts, b.dialOpts...)

	conn, err := grpc.NewClient(b.address, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: dial failed: %w", err)
	}

	return conn, nil
}

// buildTLSConfig constructs the TLS configuration for the gRPC connection.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
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

	if b.tlsServerName != "" {
		tlsConfig.ServerName = b.tlsServerName
	}

	return tlsConfig, nil
}
