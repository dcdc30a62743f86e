package registration

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// ProviderEndpoints are the identity provider endpoints resolved through OIDC discovery.
type ProviderEndpoints struct {
	Issuer           string
	TokenURL         string
	JWKSURL          string
	IntrospectionURL string
	EndSessionURL    string
}

type discoveryClaims struct {
	JWKSURI               string `json:"jwks_uri"`
	IntrospectionEndpoint string `json:"introspection_endpoint"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`
}

// Discover fetches {issuerURL}/.well-known/openid-configuration and returns the
// endpoints the relay consumes. The issuer in the document must match issuerURL.
func Discover(ctx context.Context, issuerURL string, httpClient *http.Client) (*ProviderEndpoints, error) {
	if issuerURL == "" {
		return nil, errors.New("registration: issuer URL is required for discovery")
	}
	if httpClient != nil {
		ctx = oidc.ClientContext(ctx, httpClient)
	}

	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("registration: discovery failed for %s: %w", issuerURL, err)
	}

	var claims discoveryClaims
	if err := provider.Claims(&claims); err != nil {
		return nil, fmt.Errorf("registration: failed to decode discovery document: %w", err)
	}

	endpoint := provider.Endpoint()
	if endpoint.TokenURL == "" {
		return nil, fmt.Errorf("registration: issuer %s does not advertise a token endpoint", issuerURL)
	}

	return &ProviderEndpoints{
		Issuer:           issuerURL,
		TokenURL:         endpoint.TokenURL,
		JWKSURL:          claims.JWKSURI,
		IntrospectionURL: claims.IntrospectionEndpoint,
		EndSessionURL:    claims.EndSessionEndpoint,
	}, nil
}

// Resolve returns reg with its token URL filled in from the issuer's discovery
// document when only IssuerURL is set. Registrations with an explicit token URL
// are returned unchanged without any network call.
func Resolve(ctx context.Context, reg ClientRegistration, httpClient *http.Client) (ClientRegistration, error) {
	if reg.TokenURL != "" {
		return reg, nil
	}
	if reg.IssuerURL == "" {
		return reg, fmt.Errorf("registration %q: either token URL or issuer URL is required", reg.ID)
	}

	endpoints, err := Discover(ctx, reg.IssuerURL, httpClient)
	if err != nil {
		return reg, fmt.Errorf("registration %q: %w", reg.ID, err)
	}
	reg.TokenURL = endpoints.TokenURL
	return reg, nil
}
