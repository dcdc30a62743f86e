package httpserver

import "github.com/AmmannChristian/go-authrelay/internal/validator"

// TokenValidator validates inbound bearer tokens.
// This is an alias for the shared validator.TokenValidator interface.
type TokenValidator = validator.TokenValidator

// TokenClaims represents the claims extracted from a validated token.
// This is an alias for the shared validator.TokenClaims type.
type TokenClaims = validator.TokenClaims

// JWTTokenValidator validates JWT tokens against JWKS from an OAuth2/OIDC provider.
type JWTTokenValidator = validator.JWTTokenValidator

// OpaqueTokenValidator validates opaque tokens via OAuth2 token introspection.
type OpaqueTokenValidator = validator.OpaqueTokenValidator

// Logger is an interface for optional logging in the validators and middleware.
type Logger = validator.Logger
