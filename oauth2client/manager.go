package oauth2client

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AmmannChristian/go-authrelay/registration"
)

// Logger is an interface for optional logging in the manager and executor.
// Implementations can log token refresh events if desired.
type Logger interface {
	Printf(format string, args ...any)
}

// Recorder observes cache lookups and grants, typically to export metrics.
type Recorder interface {
	CacheLookup(registrationID string, hit bool)
	GrantCompleted(registrationID string, err error)
}

// RegistrationLookup resolves registration ids. *registration.Registry implements it.
type RegistrationLookup interface {
	Lookup(id string) (registration.ClientRegistration, bool)
}

// AuthorizedClientManager returns valid tokens per client registration,
// serving cached tokens while they are valid and running a grant otherwise.
//
// Concurrent refreshes of the same registration may each run a grant; the last
// one to finish wins the cache entry. WithSingleFlight collapses them into one.
type AuthorizedClientManager struct {
	registrations RegistrationLookup
	executor      GrantExecutor
	cache         *TokenCache
	clock         Clock
	logger        Logger   // optional logger
	recorder      Recorder // optional recorder
	flight        *singleflight.Group
}

// Option is a functional option for configuring AuthorizedClientManager.
type Option func(*AuthorizedClientManager)

// WithLogger sets a custom logger for token refresh events.
// If not set, no logging will occur.
func WithLogger(logger Logger) Option {
	return func(m *AuthorizedClientManager) {
		m.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
func WithLoggingEnabled() Option {
	return func(m *AuthorizedClientManager) {
		m.logger = log.Default()
	}
}

// WithClock sets the clock used for expiry checks.
func WithClock(clock Clock) Option {
	return func(m *AuthorizedClientManager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithRecorder sets a recorder for cache and grant events.
func WithRecorder(recorder Recorder) Option {
	return func(m *AuthorizedClientManager) {
		m.recorder = recorder
	}
}

// WithSingleFlight makes concurrent refreshes of the same registration share one grant.
func WithSingleFlight() Option {
	return func(m *AuthorizedClientManager) {
		m.flight = &singleflight.Group{}
	}
}

// NewAuthorizedClientManager wires a manager from its collaborators.
// A nil cache is replaced by an empty one.
func NewAuthorizedClientManager(registrations RegistrationLookup, executor GrantExecutor, cache *TokenCache, opts ...Option) *AuthorizedClientManager {
	if cache == nil {
		cache = NewTokenCache()
	}

	m := &AuthorizedClientManager{
		registrations: registrations,
		executor:      executor,
		cache:         cache,
		clock:         SystemClock(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Authorize returns a valid token for registrationID.
//
// A cached token that is still valid is returned without a network call.
// Otherwise a grant runs and its token replaces the cache entry. Grant failures
// are returned as *AuthorizationError; a stale token is never served instead.
//
// The grant is detached from ctx cancellation: if ctx ends first Authorize
// returns ctx.Err(), and the grant still completes and populates the cache.
func (m *AuthorizedClientManager) Authorize(ctx context.Context, registrationID string) (Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	reg, ok := m.registrations.Lookup(registrationID)
	if !ok {
		return Token{}, &AuthorizationError{RegistrationID: registrationID, Reason: registration.ErrUnknownRegistration}
	}

	// Fast path: serve the cached token while it is valid
	if client, ok := m.cache.Get(registrationID); ok && client.Token.Valid(m.clock.Now()) {
		m.recordLookup(registrationID, true)
		return client.Token, nil
	}
	m.recordLookup(registrationID, false)

	token, err := m.refresh(ctx, reg)
	if err != nil {
		return Token{}, &AuthorizationError{RegistrationID: registrationID, Reason: err}
	}

	if !token.Valid(m.clock.Now()) {
		return Token{}, &AuthorizationError{RegistrationID: registrationID, Reason: ErrTokenExpired}
	}

	return token, nil
}

// Cached returns the current cache entry for registrationID without refreshing it.
func (m *AuthorizedClientManager) Cached(registrationID string) (AuthorizedClient, bool) {
	return m.cache.Get(registrationID)
}

// Close evicts every cached token. Tokens are never persisted.
func (m *AuthorizedClientManager) Close() {
	m.cache.Clear()
}

type grantResult struct {
	token Token
	err   error
}

// refresh runs a grant in its own goroutine so that an abandoned caller does
// not abort it.
func (m *AuthorizedClientManager) refresh(ctx context.Context, reg registration.ClientRegistration) (Token, error) {
	grantCtx := context.WithoutCancel(ctx)

	if m.flight != nil {
		ch := m.flight.DoChan(reg.ID, func() (any, error) {
			return m.grant(grantCtx, reg)
		})
		select {
		case res := <-ch:
			if res.Err != nil {
				return Token{}, res.Err
			}
			return res.Val.(Token), nil
		case <-ctx.Done():
			return Token{}, ctx.Err()
		}
	}

	ch := make(chan grantResult, 1)
	go func() {
		token, err := m.grant(grantCtx, reg)
		ch <- grantResult{token: token, err: err}
	}()

	select {
	case res := <-ch:
		return res.token, res.err
	case <-ctx.Done():
		return Token{}, ctx.Err()
	}
}

func (m *AuthorizedClientManager) grant(ctx context.Context, reg registration.ClientRegistration) (Token, error) {
	issuedAt := m.clock.Now()
	token, err := m.executor.Acquire(ctx, reg)
	if m.recorder != nil {
		m.recorder.GrantCompleted(reg.ID, err)
	}
	if err != nil {
		if m.logger != nil {
			m.logger.Printf("oauth2client: grant for %s failed: %v", reg.ID, err)
		}
		return Token{}, err
	}

	m.cache.Put(reg.ID, AuthorizedClient{
		RegistrationID: reg.ID,
		Token:          token,
		IssuedAt:       issuedAt,
	})

	// Log only if logger is configured
	if m.logger != nil {
		m.logger.Printf("oauth2client: obtained new access token for %s (expires: %s)", reg.ID, token.Expiry.Format(time.RFC3339))
	}

	return token, nil
}

func (m *AuthorizedClientManager) recordLookup(registrationID string, hit bool) {
	if m.recorder != nil {
		m.recorder.CacheLookup(registrationID, hit)
	}
}
