package grpcclient

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	"github.com/AmmannChristian/go-authrelay/oauth2client"
)

// Credentials implements credentials.PerRPCCredentials with tokens from a TokenSource.
//
// Use it with grpc.WithPerRPCCredentials for a whole connection, or with the
// grpc.PerRPCCredentials call option to pick the token source per call.
type Credentials struct {
	Source oauth2client.TokenSource

	// AllowInsecure permits sending tokens over plaintext connections.
	AllowInsecure bool
}

var _ credentials.PerRPCCredentials = (*Credentials)(nil)

// NewCredentials returns per-RPC credentials that require transport security.
func NewCredentials(source oauth2client.TokenSource) *Credentials {
	return &Credentials{Source: source}
}

// GetRequestMetadata returns the "authorization" metadata for one RPC.
func (c *Credentials) GetRequestMetadata(ctx context.Context, _ ...string) (map[string]string, error) {
	header, err := authorization(ctx, c.Source)
	if err != nil {
		return nil, err
	}
	return map[string]string{"authorization": header}, nil
}

// RequireTransportSecurity reports whether the credentials need TLS.
func (c *Credentials) RequireTransportSecurity() bool {
	return !c.AllowInsecure
}

// UnaryClientInterceptor returns a gRPC unary client interceptor that adds
// "authorization: Bearer <token>" from source to the outgoing metadata.
//
// If the token cannot be obtained the RPC is aborted with the source's error
// wrapped, so errors.Is still matches the oauth2client and propagation sentinels.
func UnaryClientInterceptor(source oauth2client.TokenSource) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		header, err := authorization(ctx, source)
		if err != nil {
			return err
		}
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", header)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that adds
// "authorization: Bearer <token>" from source when the stream is created.
func StreamClientInterceptor(source oauth2client.TokenSource) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		header, err := authorization(ctx, source)
		if err != nil {
			return nil, err
		}
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", header)
		return streamer(ctx, desc, cc, method, opts...)
	}
}

func authorization(ctx context.Context, source oauth2client.TokenSource) (string, error) {
	if source == nil {
		return "", errors.New("grpcclient: token source is nil")
	}
	token, err := source.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("grpcclient: failed to get token: %w", err)
	}
	if token.Value == "" {
		return "", errors.New("grpcclient: empty bearer token")
	}
	return token.AuthorizationHeader(), nil
}
