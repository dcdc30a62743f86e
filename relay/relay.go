package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/AmmannChristian/go-authrelay/httpclient"
	"github.com/AmmannChristian/go-authrelay/oauth2client"
)

// Strategy selects the token source of an outbound call.
type Strategy int

const (
	// StrategyPropagation forwards the inbound caller's token.
	StrategyPropagation Strategy = iota + 1
	// StrategyClientCredentials uses the relay's own service token.
	StrategyClientCredentials
)

func (s Strategy) String() string {
	switch s {
	case StrategyPropagation:
		return "propagation"
	case StrategyClientCredentials:
		return "client_credentials"
	default:
		return "unknown"
	}
}

// Logger is an interface for optional logging of relay failures and retries.
type Logger interface {
	Printf(format string, args ...any)
}

// Propagator reads the inbound caller's token from a request context.
// *propagation.TokenPropagator implements it.
type Propagator interface {
	FromContext(ctx context.Context) (oauth2client.Token, error)
}

// Authorizer returns service tokens per registration.
// *oauth2client.AuthorizedClientManager implements it.
type Authorizer interface {
	Authorize(ctx context.Context, registrationID string) (oauth2client.Token, error)
}

// Invoker performs one authenticated downstream call.
// *httpclient.OutboundInvoker implements it.
type Invoker interface {
	Do(ctx context.Context, targetURL string, token oauth2client.Token) (*httpclient.Response, error)
}

// Config wires the collaborators of a Relay.
type Config struct {
	// BaseURL of the downstream resource server, e.g. "http://resource:8082".
	BaseURL string

	// RegistrationID names the client registration used by StrategyClientCredentials.
	RegistrationID string

	Propagator Propagator
	Manager    Authorizer
	Invoker    Invoker
}

// Relay calls the downstream service with exactly one token source per call.
type Relay struct {
	baseURL        string
	registrationID string
	propagator     Propagator
	manager        Authorizer
	invoker        Invoker
	logger         Logger

	maxTries        uint
	initialInterval time.Duration
	maxInterval     time.Duration
}

// Option is a functional option for configuring a Relay.
type Option func(*Relay)

// WithLogger sets a custom logger. If not set, no logging will occur.
func WithLogger(logger Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
func WithLoggingEnabled() Option {
	return func(r *Relay) {
		r.logger = log.Default()
	}
}

// WithRetry retries failed fetches up to maxTries attempts in total with
// exponential backoff starting at initialInterval. Only unavailable token
// endpoints and unreachable downstreams are retried.
func WithRetry(maxTries uint, initialInterval time.Duration) Option {
	return func(r *Relay) {
		r.maxTries = maxTries
		if initialInterval > 0 {
			r.initialInterval = initialInterval
		}
	}
}

// New creates a Relay from cfg.
func New(cfg Config, opts ...Option) (*Relay, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("relay: base URL is required")
	}
	if cfg.Invoker == nil {
		return nil, errors.New("relay: invoker is required")
	}
	if cfg.Propagator == nil && cfg.Manager == nil {
		return nil, errors.New("relay: at least one token source is required")
	}
	if cfg.Manager != nil && cfg.RegistrationID == "" {
		return nil, errors.New("relay: registration id is required with a client manager")
	}

	r := &Relay{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		registrationID:  cfg.RegistrationID,
		propagator:      cfg.Propagator,
		manager:         cfg.Manager,
		invoker:         cfg.Invoker,
		maxTries:        1,
		initialInterval: 200 * time.Millisecond,
		maxInterval:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.maxTries == 0 {
		r.maxTries = 1
	}
	return r, nil
}

// Fetch calls path on the downstream service and returns the response body.
//
// StrategyPropagation authenticates with the inbound principal stored in ctx;
// StrategyClientCredentials with the service token of the configured
// registration. A failing source is never replaced by the other one.
func (r *Relay) Fetch(ctx context.Context, strategy Strategy, path string) ([]byte, error) {
	resp, err := r.FetchResponse(ctx, strategy, path)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// FetchResponse is Fetch, but keeps the downstream status and headers.
func (r *Relay) FetchResponse(ctx context.Context, strategy Strategy, path string) (*httpclient.Response, error) {
	target := r.baseURL + "/" + strings.TrimLeft(path, "/")

	if r.maxTries <= 1 {
		return r.fetchOnce(ctx, strategy, target)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = r.initialInterval
	expBackoff.MaxInterval = r.maxInterval
	expBackoff.Reset()

	attempt := 0
	operation := func() (*httpclient.Response, error) {
		attempt++
		resp, err := r.fetchOnce(ctx, strategy, target)
		if err != nil && !Retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(r.maxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if r.logger != nil {
				r.logger.Printf("relay: attempt %d/%d for %s failed, retrying in %v: %v", attempt, r.maxTries, target, wait, err)
			}
		}),
	)
}

func (r *Relay) fetchOnce(ctx context.Context, strategy Strategy, target string) (*httpclient.Response, error) {
	token, err := r.token(ctx, strategy)
	if err != nil {
		return nil, err
	}
	return r.invoker.Do(ctx, target, token)
}

func (r *Relay) token(ctx context.Context, strategy Strategy) (oauth2client.Token, error) {
	switch strategy {
	case StrategyPropagation:
		if r.propagator == nil {
			return oauth2client.Token{}, errors.New("relay: propagation is not configured")
		}
		return r.propagator.FromContext(ctx)
	case StrategyClientCredentials:
		if r.manager == nil {
			return oauth2client.Token{}, errors.New("relay: client credentials are not configured")
		}
		return r.manager.Authorize(ctx, r.registrationID)
	default:
		return oauth2client.Token{}, fmt.Errorf("relay: unknown strategy %d", strategy)
	}
}

// Retryable reports whether repeating a failed fetch can change the outcome.
func Retryable(err error) bool {
	return errors.Is(err, oauth2client.ErrGrantUnavailable) || errors.Is(err, httpclient.ErrUnreachable)
}
