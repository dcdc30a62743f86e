package httpclient

import (
	"fmt"
	"net/http"

	"github.com/AmmannChristian/go-authrelay/oauth2client"
)

// BearerTransport is an http.RoundTripper that adds a bearer token from a
// TokenSource to every outgoing request.
type BearerTransport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Source provides the token for each request.
	Source oauth2client.TokenSource
}

// RoundTrip implements http.RoundTripper. The token lookup honors the request
// context's cancellation and deadline.
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Source == nil {
		return nil, fmt.Errorf("httpclient: token source is nil")
	}

	token, err := t.Source.Token(req.Context())
	if err != nil {
		return nil, fmt.Errorf("httpclient: failed to get token: %w", err)
	}

	// Clone the request to avoid modifying the original
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", token.AuthorizationHeader())

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	return base.RoundTrip(reqClone)
}

// NewBearerTransport creates a BearerTransport.
// The base transport defaults to http.DefaultTransport if not specified.
func NewBearerTransport(source oauth2client.TokenSource, base http.RoundTripper) *BearerTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &BearerTransport{
		Base:   base,
		Source: source,
	}
}
