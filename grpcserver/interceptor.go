package grpcserver

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/AmmannChristian/go-authrelay/authz"
	"github.com/AmmannChristian/go-authrelay/internal/validator"
	"github.com/AmmannChristian/go-authrelay/propagation"
)

// TokenValidator validates inbound bearer tokens. The validators built by
// httpserver.ValidatorBuilder implement it.
type TokenValidator = validator.TokenValidator

// Logger is an interface for optional logging in the interceptors.
type Logger = validator.Logger

var (
	errMissingMetadata = errors.New("grpcserver: missing metadata")
	errMissingToken    = errors.New("grpcserver: missing bearer token")
)

// InterceptorConfig holds configuration for authentication interceptors.
type InterceptorConfig struct {
	validator     TokenValidator
	exemptMethods map[string]bool
	logger        Logger // optional logger
	policy        *authz.Evaluator
}

// InterceptorOption is a functional option for configuring interceptors.
type InterceptorOption func(*InterceptorConfig)

// WithExemptMethods specifies gRPC methods that don't require authentication.
// Method names use the "/package.Service/Method" form.
//
// Example:
//
//	WithExemptMethods("/grpc.health.v1.Health/Check")
func WithExemptMethods(methods ...string) InterceptorOption {
	return func(c *InterceptorConfig) {
		for _, method := range methods {
			c.exemptMethods[method] = true
		}
	}
}

// WithInterceptorLogger sets a logger for the interceptors.
func WithInterceptorLogger(logger Logger) InterceptorOption {
	return func(c *InterceptorConfig) {
		c.logger = logger
	}
}

// WithAuthorizationPolicy requires the authenticated principal to satisfy policy.
// Violations are answered with codes.PermissionDenied.
func WithAuthorizationPolicy(policy authz.Policy) InterceptorOption {
	return func(c *InterceptorConfig) {
		c.policy = authz.NewEvaluator(policy)
	}
}

func newConfig(v TokenValidator, opts []InterceptorOption) *InterceptorConfig {
	config := &InterceptorConfig{
		validator:     v,
		exemptMethods: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

// UnaryServerInterceptor authenticates unary calls and stores the caller as a
// propagation.InboundPrincipal in the handler context, so handlers can relay
// the caller's token downstream.
//
// Usage:
//
//	server := grpc.NewServer(
//	    grpc.UnaryInterceptor(grpcserver.UnaryServerInterceptor(validator)),
//	)
func UnaryServerInterceptor(v TokenValidator, opts ...InterceptorOption) grpc.UnaryServerInterceptor {
	config := newConfig(v, opts)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if config.exemptMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		principal, err := config.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(propagation.WithPrincipal(ctx, principal), req)
	}
}

// StreamServerInterceptor is the streaming counterpart of UnaryServerInterceptor.
func StreamServerInterceptor(v TokenValidator, opts ...InterceptorOption) grpc.StreamServerInterceptor {
	config := newConfig(v, opts)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if config.exemptMethods[info.FullMethod] {
			return handler(srv, ss)
		}

		principal, err := config.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{
			ServerStream: ss,
			ctx:          propagation.WithPrincipal(ss.Context(), principal),
		})
	}
}

// authenticate returns a status error with codes.Unauthenticated or
// codes.PermissionDenied on failure.
func (c *InterceptorConfig) authenticate(ctx context.Context, method string) (*propagation.InboundPrincipal, error) {
	token, err := bearerToken(ctx)
	if err != nil {
		c.logf("grpcserver: authentication failed for %s: %v", method, err)
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	claims, err := c.validator.ValidateToken(ctx, token)
	if err != nil {
		c.logf("grpcserver: authentication failed for %s: %v", method, err)
		return nil, status.Error(codes.Unauthenticated, "grpcserver: invalid token")
	}

	principal := &propagation.InboundPrincipal{
		Subject:  claims.Subject,
		RawToken: token,
		Scopes:   append([]string(nil), claims.Scopes...),
		Claims:   claims.Raw,
	}

	if c.policy != nil {
		if err := c.policy.Authorize(principal); err != nil {
			c.logf("grpcserver: authorization failed for %s (subject: %s): %v", method, principal.Subject, err)
			return nil, status.Error(codes.PermissionDenied, err.Error())
		}
	}

	c.logf("grpcserver: authenticated %s (subject: %s)", method, principal.Subject)
	return principal, nil
}

func (c *InterceptorConfig) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

func bearerToken(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errMissingMetadata
	}

	values := md.Get("authorization")
	if len(values) == 0 {
		return "", errMissingToken
	}

	scheme, token, found := strings.Cut(values[0], " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("grpcserver: invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}

// wrappedServerStream overrides the stream context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
