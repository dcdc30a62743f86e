package httpserver

import (
	"net/http"
	"time"

	"github.com/AmmannChristian/go-authrelay/internal/validator"
)

// NewJWTTokenValidator creates a JWT validator whose messages are prefixed with "httpserver".
// A cacheTTL of 0 refreshes the JWKS hourly.
func NewJWTTokenValidator(jwksURL, issuer, audience string, httpClient *http.Client, cacheTTL time.Duration, logger Logger) (*JWTTokenValidator, error) {
	return validator.NewJWTTokenValidator(jwksURL, issuer, audience, httpClient, cacheTTL, logger, "httpserver")
}

// NewOpaqueTokenValidator creates an RFC 7662 introspection validator that
// authenticates with clientID and clientSecret.
func NewOpaqueTokenValidator(introspectionURL, issuer, audience, clientID, clientSecret string, httpClient *http.Client, logger Logger) (*OpaqueTokenValidator, error) {
	return validator.NewOpaqueTokenValidator(introspectionURL, issuer, audience, clientID, clientSecret, httpClient, logger)
}
