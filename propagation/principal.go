package propagation

import "context"

// InboundPrincipal is the validated identity of an incoming request.
//
// It is produced by the inbound authentication layer after signature, issuer,
// audience and expiry checks, and lives only as long as the request context.
type InboundPrincipal struct {
	Subject  string
	RawToken string
	Scopes   []string
	Claims   map[string]any
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const principalKey contextKey = "propagation.inbound_principal"

// WithPrincipal returns a new context carrying principal.
//
// Example:
//
//	ctx = propagation.WithPrincipal(ctx, &propagation.InboundPrincipal{Subject: "alice", RawToken: raw})
func WithPrincipal(ctx context.Context, principal *InboundPrincipal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
// It returns nil and false when the request is anonymous.
func PrincipalFromContext(ctx context.Context) (*InboundPrincipal, bool) {
	if ctx == nil {
		return nil, false
	}
	principal, ok := ctx.Value(principalKey).(*InboundPrincipal)
	return principal, ok && principal != nil
}
