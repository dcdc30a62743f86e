package oauth2client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/AmmannChristian/go-authrelay/registration"
)

const (
	// DefaultClockSkew is subtracted from every token lifetime so the cache
	// treats a token as expired slightly before the provider would reject it.
	DefaultClockSkew = 30 * time.Second

	// defaultLifetime applies when the provider omits expires_in.
	defaultLifetime = time.Second
)

// GrantExecutor performs a single OAuth2 grant for a registration.
// Implementations are stateless and safe for concurrent use.
type GrantExecutor interface {
	Acquire(ctx context.Context, reg registration.ClientRegistration) (Token, error)
}

// ClientCredentialsExecutor performs the client-credentials grant against a
// registration's token endpoint. It never retries.
type ClientCredentialsExecutor struct {
	httpClient *http.Client
	clock      Clock
	clockSkew  time.Duration
	logger     Logger
}

// ExecutorOption configures a ClientCredentialsExecutor.
type ExecutorOption func(*ClientCredentialsExecutor)

// WithHTTPClient sets the client used to reach the token endpoint.
// Its Transport, Timeout, CheckRedirect and Jar are honored; defaults to
// http.DefaultTransport without timeout.
func WithHTTPClient(client *http.Client) ExecutorOption {
	return func(e *ClientCredentialsExecutor) {
		e.httpClient = client
	}
}

// WithClockSkew overrides DefaultClockSkew. Negative values are treated as zero.
func WithClockSkew(skew time.Duration) ExecutorOption {
	return func(e *ClientCredentialsExecutor) {
		if skew < 0 {
			skew = 0
		}
		e.clockSkew = skew
	}
}

// WithExecutorClock sets the clock used to stamp issue times.
func WithExecutorClock(clock Clock) ExecutorOption {
	return func(e *ClientCredentialsExecutor) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithExecutorLogger sets a logger for grant events.
func WithExecutorLogger(logger Logger) ExecutorOption {
	return func(e *ClientCredentialsExecutor) {
		e.logger = logger
	}
}

// NewClientCredentialsExecutor creates a client-credentials GrantExecutor.
func NewClientCredentialsExecutor(opts ...ExecutorOption) *ClientCredentialsExecutor {
	e := &ClientCredentialsExecutor{
		clock:     SystemClock(),
		clockSkew: DefaultClockSkew,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Acquire requests a new token for reg.
//
// Errors are *GrantError values: GrantUnauthorized for 4xx responses,
// GrantUnavailable for transport failures and 5xx responses, and
// GrantMalformedResponse when the body cannot be read as a token.
func (e *ClientCredentialsExecutor) Acquire(ctx context.Context, reg registration.ClientRegistration) (Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if reg.GrantType != "" && reg.GrantType != registration.GrantTypeClientCredentials {
		return Token{}, fmt.Errorf("oauth2client: registration %q uses unsupported grant type %q", reg.ID, reg.GrantType)
	}

	config := &clientcredentials.Config{
		ClientID:     reg.ClientID,
		ClientSecret: reg.ClientSecret,
		TokenURL:     reg.TokenURL,
		Scopes:       reg.Scopes,
		AuthStyle:    authStyle(reg.AuthMethod),
	}

	tracker := &transportTracker{base: e.baseTransport()}
	client := &http.Client{}
	if e.httpClient != nil {
		*client = *e.httpClient
	}
	client.Transport = tracker
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)

	issuedAt := e.clock.Now()
	tok, err := config.Token(ctx)
	if err != nil {
		return Token{}, classifyGrantError(reg.ID, err, tracker.failure())
	}

	token := Token{
		Value:  tok.AccessToken,
		Type:   tok.Type(),
		Expiry: issuedAt.Add(e.usableLifetime(lifetimeOf(tok))),
	}

	if e.logger != nil {
		e.logger.Printf("oauth2client: acquired token for %s (expires: %s)", reg.ID, token.Expiry.Format(time.RFC3339))
	}

	return token, nil
}

func (e *ClientCredentialsExecutor) baseTransport() http.RoundTripper {
	if e.httpClient != nil && e.httpClient.Transport != nil {
		return e.httpClient.Transport
	}
	return http.DefaultTransport
}

// usableLifetime subtracts the clock skew, capped at half the lifetime so a
// short-lived token is never considered expired at issue time.
func (e *ClientCredentialsExecutor) usableLifetime(lifetime time.Duration) time.Duration {
	skew := e.clockSkew
	if half := lifetime / 2; skew > half {
		skew = half
	}
	return lifetime - skew
}

func authStyle(method registration.AuthMethod) oauth2.AuthStyle {
	if method == registration.AuthMethodClientSecretPost {
		return oauth2.AuthStyleInParams
	}
	return oauth2.AuthStyleInHeader
}

// lifetimeOf reads expires_in from the token response.
func lifetimeOf(tok *oauth2.Token) time.Duration {
	if tok.ExpiresIn > 0 {
		return time.Duration(tok.ExpiresIn) * time.Second
	}
	switch raw := tok.Extra("expires_in").(type) {
	case float64:
		if raw > 0 {
			return time.Duration(raw) * time.Second
		}
	case string:
		if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultLifetime
}

func classifyGrantError(registrationID string, err error, transportErr error) *GrantError {
	grantErr := &GrantError{RegistrationID: registrationID, Err: err}

	var retrieveErr *oauth2.RetrieveError
	switch {
	case errors.As(err, &retrieveErr) && retrieveErr.Response != nil:
		grantErr.StatusCode = retrieveErr.Response.StatusCode
		if grantErr.StatusCode >= 400 && grantErr.StatusCode < 500 {
			grantErr.Kind = GrantUnauthorized
		} else {
			grantErr.Kind = GrantUnavailable
		}
	case transportErr != nil:
		grantErr.Kind = GrantUnavailable
		grantErr.Err = transportErr
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		grantErr.Kind = GrantUnavailable
	default:
		grantErr.Kind = GrantMalformedResponse
	}

	return grantErr
}

// transportTracker remembers transport-level failures. x/oauth2 flattens them
// into plain strings, so this is the only reliable way to tell a network
// failure from a body that could not be parsed.
type transportTracker struct {
	base http.RoundTripper

	mu  sync.Mutex
	err error
}

func (t *transportTracker) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
	}
	return resp, err
}

func (t *transportTracker) failure() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
