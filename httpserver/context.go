package httpserver

import (
	"context"

	"github.com/AmmannChristian/go-authrelay/propagation"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const tokenClaimsKey contextKey = "httpserver.token_claims"

// WithTokenClaims returns a new context with the provided TokenClaims.
func WithTokenClaims(ctx context.Context, claims *TokenClaims) context.Context {
	return context.WithValue(ctx, tokenClaimsKey, claims)
}

// TokenClaimsFromContext extracts TokenClaims from the context.
// Returns the claims and true if found, or nil and false if not present.
func TokenClaimsFromContext(ctx context.Context) (*TokenClaims, bool) {
	claims, ok := ctx.Value(tokenClaimsKey).(*TokenClaims)
	return claims, ok
}

// PrincipalFromClaims builds the inbound principal for a validated token.
// The raw token is kept verbatim so it can be propagated downstream.
func PrincipalFromClaims(rawToken string, claims *TokenClaims) *propagation.InboundPrincipal {
	principal := &propagation.InboundPrincipal{RawToken: rawToken}
	if claims != nil {
		principal.Subject = claims.Subject
		principal.Scopes = append([]string(nil), claims.Scopes...)
		principal.Claims = claims.Raw
	}
	return principal
}
