package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AmmannChristian/go-authrelay/registration"
)

// ValidatorBuilder provides a fluent interface for constructing the inbound
// TokenValidator from an issuer's configuration.
type ValidatorBuilder struct {
	issuerURL  string
	audience   string
	jwksURL    string
	cacheTTL   time.Duration
	httpClient *http.Client
	logger     Logger
	endpoints  *registration.ProviderEndpoints

	// RFC 7662 introspection, used instead of JWT validation when credentials are set
	introspectionURL string
	clientID         string
	clientSecret     string
}

// NewValidatorBuilder creates a new validator builder with required parameters.
//
// Endpoints not set explicitly are resolved through the issuer's OIDC
// discovery document when Build runs. The default HTTP client uses TLS 1.2+
// with a 10 second timeout; JWKS keys are cached for 1 hour.
func NewValidatorBuilder(issuerURL, audience string) *ValidatorBuilder {
	return &ValidatorBuilder{
		issuerURL: issuerURL,
		audience:  audience,
		cacheTTL:  time.Hour,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
	}
}

// WithJWKSURL sets the JWKS endpoint and skips discovery for it.
//
// Example:
//
//	builder.WithJWKSURL("https://auth.example.com/realms/demo/protocol/openid-connect/certs")
func (b *ValidatorBuilder) WithJWKSURL(url string) *ValidatorBuilder {
	b.jwksURL = url
	return b
}

// WithEndpoints supplies endpoints that were already discovered.
func (b *ValidatorBuilder) WithEndpoints(endpoints *registration.ProviderEndpoints) *ValidatorBuilder {
	b.endpoints = endpoints
	return b
}

// WithIntrospection validates opaque tokens through RFC 7662 introspection,
// authenticating with clientID and clientSecret. An empty url is discovered.
func (b *ValidatorBuilder) WithIntrospection(url, clientID, clientSecret string) *ValidatorBuilder {
	b.introspectionURL = url
	b.clientID = clientID
	b.clientSecret = clientSecret
	return b
}

// WithCacheTTL sets the duration for caching JWKS keys before automatic refresh.
func (b *ValidatorBuilder) WithCacheTTL(ttl time.Duration) *ValidatorBuilder {
	b.cacheTTL = ttl
	return b
}

// WithHTTPClient sets the HTTP client for discovery, JWKS and introspection requests.
func (b *ValidatorBuilder) WithHTTPClient(client *http.Client) *ValidatorBuilder {
	b.httpClient = client
	return b
}

// WithLogger sets a logger for validation and JWKS refresh events.
func (b *ValidatorBuilder) WithLogger(logger Logger) *ValidatorBuilder {
	b.logger = logger
	return b
}

// Build constructs the TokenValidator, running discovery first if an endpoint
// it needs was not configured.
func (b *ValidatorBuilder) Build(ctx context.Context) (TokenValidator, error) {
	if b.issuerURL == "" {
		return nil, errors.New("httpserver: issuer URL is required")
	}
	if b.audience == "" {
		return nil, errors.New("httpserver: audience is required")
	}

	if b.clientID != "" {
		introspectionURL := b.introspectionURL
		if introspectionURL == "" {
			endpoints, err := b.discover(ctx)
			if err != nil {
				return nil, err
			}
			if endpoints.IntrospectionURL == "" {
				return nil, fmt.Errorf("httpserver: issuer %s does not advertise an introspection endpoint", b.issuerURL)
			}
			introspectionURL = endpoints.IntrospectionURL
		}

		v, err := NewOpaqueTokenValidator(introspectionURL, b.issuerURL, b.audience, b.clientID, b.clientSecret, b.httpClient, b.logger)
		if err != nil {
			return nil, fmt.Errorf("httpserver: failed to build validator: %w", err)
		}
		return v, nil
	}

	jwksURL := b.jwksURL
	if jwksURL == "" {
		endpoints, err := b.discover(ctx)
		if err != nil {
			return nil, err
		}
		jwksURL = endpoints.JWKSURL
		if b.logger != nil {
			b.logger.Printf("httpserver: using discovered JWKS URL: %s", jwksURL)
		}
	}

	v, err := NewJWTTokenValidator(jwksURL, b.issuerURL, b.audience, b.httpClient, b.cacheTTL, b.logger)
	if err != nil {
		return nil, fmt.Errorf("httpserver: failed to build validator: %w", err)
	}
	return v, nil
}

func (b *ValidatorBuilder) discover(ctx context.Context) (*registration.ProviderEndpoints, error) {
	if b.endpoints != nil {
		return b.endpoints, nil
	}
	endpoints, err := registration.Discover(ctx, b.issuerURL, b.httpClient)
	if err != nil {
		return nil, fmt.Errorf("httpserver: %w", err)
	}
	b.endpoints = endpoints
	return endpoints, nil
}
