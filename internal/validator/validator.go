// Package validator holds the inbound token validators shared by the HTTP
// middleware and the resource server.
package validator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator validates an inbound bearer token.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
}

// TokenClaims represents the claims extracted from a validated token.
type TokenClaims struct {
	Subject  string         // Subject (sub) - user or client identifier
	Issuer   string         // Issuer (iss) - token issuer
	Audience []string       // Audience (aud) - intended recipients
	Expiry   time.Time      // Expiry time (exp)
	IssuedAt time.Time      // Issued at (iat)
	Scopes   []string       // Scopes - extracted from "scope" or "scp" claim
	Email    string         // Email - optional user email
	Raw      map[string]any // All claims as received
}

// Logger is an interface for optional logging in the validators.
type Logger interface {
	Printf(format string, args ...any)
}

var validMethods = []string{
	jwt.SigningMethodRS256.Name,
	jwt.SigningMethodRS384.Name,
	jwt.SigningMethodRS512.Name,
	jwt.SigningMethodES256.Name,
	jwt.SigningMethodES384.Name,
	jwt.SigningMethodES512.Name,
}

// JWTTokenValidator validates JWT tokens against JWKS from an OAuth2/OIDC provider.
// It caches public keys and refreshes them in the background.
type JWTTokenValidator struct {
	jwks     *keyfunc.JWKS
	issuer   string
	audience string
	logger   Logger // optional logger
	prefix   string // prefix for log and error messages
}

// NewJWTTokenValidator creates a new JWT token validator.
//
// Parameters:
//   - jwksURL: URL to the JWKS endpoint
//   - issuer: Expected token issuer (iss claim)
//   - audience: Expected token audience (aud claim)
//   - httpClient: HTTP client for fetching JWKS (optional, uses http.DefaultClient if nil)
//   - cacheTTL: Duration to cache JWKS before refreshing (0 uses default of 1 hour)
//   - logger: Optional logger for debugging (can be nil)
//   - prefix: Package name used in log and error messages
func NewJWTTokenValidator(jwksURL, issuer, audience string, httpClient *http.Client, cacheTTL time.Duration, logger Logger, prefix string) (*JWTTokenValidator, error) {
	if prefix == "" {
		prefix = "validator"
	}
	if jwksURL == "" {
		return nil, fmt.Errorf("%s: JWKS URL is required", prefix)
	}
	if issuer == "" {
		return nil, fmt.Errorf("%s: issuer is required", prefix)
	}
	if audience == "" {
		return nil, fmt.Errorf("%s: audience is required", prefix)
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cacheTTL == 0 {
		cacheTTL = time.Hour
	}

	options := keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			if logger != nil {
				logger.Printf("%s: JWKS refresh error: %v", prefix, err)
			}
		},
		RefreshInterval:   cacheTTL,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		Client:            httpClient,
	}

	jwks, err := keyfunc.Get(jwksURL, options)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to initialize JWKS: %w", prefix, err)
	}

	return &JWTTokenValidator{
		jwks:     jwks,
		issuer:   issuer,
		audience: audience,
		logger:   logger,
		prefix:   prefix,
	}, nil
}

// ValidateToken verifies the signature, expiry, issuer and audience of a JWT
// and extracts its claims. Tokens without sub, exp or iat are rejected.
func (v *JWTTokenValidator) ValidateToken(ctx context.Context, tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, v.jwks.Keyfunc, jwt.WithValidMethods(validMethods))
	if err != nil {
		return nil, fmt.Errorf("%s: token validation failed: %w", v.prefix, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%s: token is invalid", v.prefix)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%s: failed to extract token claims", v.prefix)
	}

	iss, err := claims.GetIssuer()
	if err != nil || iss != v.issuer {
		return nil, fmt.Errorf("%s: invalid issuer: expected %s, got %s", v.prefix, v.issuer, iss)
	}

	aud, err := claims.GetAudience()
	if err != nil {
		return nil, fmt.Errorf("%s: invalid audience claim: %w", v.prefix, err)
	}
	if !contains(aud, v.audience) {
		return nil, fmt.Errorf("%s: invalid audience: expected %s in %v", v.prefix, v.audience, aud)
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("%s: invalid subject claim: %w", v.prefix, err)
	}
	if sub == "" {
		return nil, fmt.Errorf("%s: invalid subject claim: empty", v.prefix)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%s: invalid expiry claim: %w", v.prefix, err)
	}
	if exp == nil {
		return nil, fmt.Errorf("%s: invalid expiry claim: missing", v.prefix)
	}

	iat, err := claims.GetIssuedAt()
	if err != nil {
		return nil, fmt.Errorf("%s: invalid issued at claim: %w", v.prefix, err)
	}
	if iat == nil {
		return nil, fmt.Errorf("%s: invalid issued at claim: missing", v.prefix)
	}

	scopes := ExtractScopes(claims)
	email, _ := claims["email"].(string)

	if v.logger != nil {
		v.logger.Printf("%s: validated token for subject %s with scopes %v", v.prefix, sub, scopes)
	}

	return &TokenClaims{
		Subject:  sub,
		Issuer:   iss,
		Audience: aud,
		Expiry:   exp.Time,
		IssuedAt: iat.Time,
		Scopes:   scopes,
		Email:    email,
		Raw:      map[string]any(claims),
	}, nil
}

// Close stops the background JWKS refresh.
func (v *JWTTokenValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// ExtractScopes reads scopes from the "scope" or "scp" claim, accepting both a
// space-separated string and an array.
func ExtractScopes(claims jwt.MapClaims) []string {
	for _, key := range []string{"scope", "scp"} {
		switch value := claims[key].(type) {
		case string:
			return strings.Fields(value)
		case []any:
			scopes := make([]string, 0, len(value))
			for _, s := range value {
				if str, ok := s.(string); ok {
					scopes = append(scopes, str)
				}
			}
			return scopes
		}
	}
	return []string{}
}

func contains(slice []string, value string) bool {
	for _, item := range slice {
		if item == value {
			return true
		}
	}
	return false
}
