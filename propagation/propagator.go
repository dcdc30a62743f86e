package propagation

import (
	"context"
	"log"

	"github.com/AmmannChristian/go-authrelay/oauth2client"
)

// Logger is an interface for optional logging in TokenPropagator.
type Logger interface {
	Printf(format string, args ...any)
}

// TokenPropagator reuses the inbound bearer token for outbound calls.
//
// The inbound token has already been validated by the time it reaches the
// propagator. It is returned verbatim: no validation, no re-signing and no
// expiry check.
type TokenPropagator struct {
	logger Logger // optional logger
}

// Option is a functional option for configuring TokenPropagator.
type Option func(*TokenPropagator)

// WithLogger sets a logger for propagation failures.
func WithLogger(logger Logger) Option {
	return func(p *TokenPropagator) {
		p.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
func WithLoggingEnabled() Option {
	return func(p *TokenPropagator) {
		p.logger = log.Default()
	}
}

// NewTokenPropagator creates a TokenPropagator.
func NewTokenPropagator(opts ...Option) *TokenPropagator {
	p := &TokenPropagator{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ExtractBearer returns the principal's raw token unchanged.
//
// A nil principal, or one without a raw token, yields a *PropagationError of
// kind NoPrincipal. There is never a fallback token.
func (p *TokenPropagator) ExtractBearer(principal *InboundPrincipal) (oauth2client.Token, error) {
	if principal == nil || principal.RawToken == "" {
		if p.logger != nil {
			p.logger.Printf("propagation: no inbound principal on a propagating call path")
		}
		return oauth2client.Token{}, &PropagationError{Kind: NoPrincipal}
	}

	return oauth2client.Token{
		Value: principal.RawToken,
		Type:  oauth2client.TokenTypeBearer,
	}, nil
}

// FromContext extracts the bearer of the principal carried by ctx.
func (p *TokenPropagator) FromContext(ctx context.Context) (oauth2client.Token, error) {
	principal, _ := PrincipalFromContext(ctx)
	return p.ExtractBearer(principal)
}

// Token implements oauth2client.TokenSource.
func (p *TokenPropagator) Token(ctx context.Context) (oauth2client.Token, error) {
	return p.FromContext(ctx)
}
