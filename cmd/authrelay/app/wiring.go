package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"github.com/AmmannChristian/go-authrelay/authz"
	"github.com/AmmannChristian/go-authrelay/httpclient"
	"github.com/AmmannChristian/go-authrelay/httpserver"
	"github.com/AmmannChristian/go-authrelay/internal/config"
	"github.com/AmmannChristian/go-authrelay/internal/metrics"
	"github.com/AmmannChristian/go-authrelay/oauth2client"
	"github.com/AmmannChristian/go-authrelay/propagation"
	"github.com/AmmannChristian/go-authrelay/registration"
	"github.com/AmmannChristian/go-authrelay/relay"
	"github.com/AmmannChristian/go-authrelay/session"
)

// components is the construction graph of the relay, built once at startup.
// Optional parts are nil when their configuration section is empty.
type components struct {
	cfg       *config.Config
	logger    *slog.Logger
	libLogger *log.Logger
	recorder  *metrics.Recorder

	registry *registration.Registry
	manager  *oauth2client.AuthorizedClientManager

	relay     *relay.Relay
	validator httpserver.TokenValidator
	policy    authz.Policy
	sessions  *session.Handlers
}

// buildComponents wires every collaborator explicitly. Registrations that only
// name an issuer are resolved through discovery before the registry is built.
func buildComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*components, error) {
	c := &components{
		cfg:       cfg,
		logger:    logger,
		libLogger: libraryLogger(logger),
		recorder:  metrics.NewRecorder(),
		policy: authz.Policy{
			RequiredScopes: cfg.Inbound.RequiredScopes,
			RequiredRoles:  cfg.Inbound.RequiredRoles,
		},
	}

	idpClient, err := httpclient.NewBuilder().WithTimeout(cfg.Grant.Timeout).WithoutRedirects().Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build identity provider client: %w", err)
	}

	if err := c.buildTokenCore(ctx, idpClient); err != nil {
		return nil, err
	}

	endpoints, err := c.buildInbound(ctx, idpClient)
	if err != nil {
		return nil, err
	}

	if err := c.buildRelay(); err != nil {
		return nil, err
	}

	if c.validator != nil {
		c.sessions = c.buildSessions(endpoints)
	}

	return c, nil
}

func (c *components) buildTokenCore(ctx context.Context, idpClient *http.Client) error {
	regs := c.cfg.ClientRegistrations()
	for i, reg := range regs {
		resolved, err := registration.Resolve(ctx, reg, idpClient)
		if err != nil {
			return err
		}
		if resolved.TokenURL != reg.TokenURL {
			c.logger.Info("resolved token endpoint", "registration", reg.ID, "token_url", resolved.TokenURL)
		}
		regs[i] = resolved
	}

	registry, err := registration.NewRegistry(regs...)
	if err != nil {
		return err
	}
	c.registry = registry

	executor := oauth2client.NewClientCredentialsExecutor(
		oauth2client.WithHTTPClient(idpClient),
		oauth2client.WithClockSkew(c.cfg.Grant.ClockSkew),
		oauth2client.WithExecutorLogger(c.libLogger),
	)

	opts := []oauth2client.Option{
		oauth2client.WithLogger(c.libLogger),
		oauth2client.WithRecorder(c.recorder),
	}
	if c.cfg.Grant.SingleFlight {
		opts = append(opts, oauth2client.WithSingleFlight())
	}
	c.manager = oauth2client.NewAuthorizedClientManager(registry, executor, nil, opts...)
	return nil
}

// buildInbound creates the inbound token validator and returns the discovered
// provider endpoints, if discovery was performed.
func (c *components) buildInbound(ctx context.Context, idpClient *http.Client) (*registration.ProviderEndpoints, error) {
	inbound := c.cfg.Inbound
	if inbound.IssuerURL == "" {
		return nil, nil
	}

	builder := httpserver.NewValidatorBuilder(inbound.IssuerURL, inbound.Audience).
		WithCacheTTL(inbound.CacheTTL).
		WithHTTPClient(idpClient).
		WithLogger(c.libLogger)

	var needsDiscovery bool
	if inbound.Introspection.Enabled() {
		builder.WithIntrospection(inbound.Introspection.URL, inbound.Introspection.ClientID, inbound.Introspection.ClientSecret)
		needsDiscovery = inbound.Introspection.URL == ""
	} else {
		builder.WithJWKSURL(inbound.JWKSURL)
		needsDiscovery = inbound.JWKSURL == ""
	}

	var endpoints *registration.ProviderEndpoints
	if needsDiscovery || c.cfg.Logout.Endpoint == "" {
		discovered, err := registration.Discover(ctx, inbound.IssuerURL, idpClient)
		switch {
		case err == nil:
			endpoints = discovered
			builder.WithEndpoints(endpoints)
		case needsDiscovery:
			return nil, fmt.Errorf("inbound validation: %w", err)
		default:
			c.logger.Warn("provider discovery failed, logout ends local sessions only", "error", err)
		}
	}

	validator, err := builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("inbound validation: %w", err)
	}
	c.validator = validator
	return endpoints, nil
}

func (c *components) buildRelay() error {
	downstream := c.cfg.Downstream
	if downstream.BaseURL == "" {
		return nil
	}

	builder := httpclient.NewBuilder().WithTimeout(downstream.Timeout)
	if downstream.CAFile != "" {
		builder.WithTLS(downstream.CAFile, "", "")
	}
	client, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build downstream client: %w", err)
	}

	invoker := httpclient.NewOutboundInvoker(client,
		httpclient.WithMethod(downstream.Method),
		httpclient.WithMaxResponseBytes(downstream.MaxResponseBytes),
		httpclient.WithLogger(c.libLogger),
		httpclient.WithObserver(c.recorder),
	)

	cfg := relay.Config{
		BaseURL:    downstream.BaseURL,
		Propagator: propagation.NewTokenPropagator(propagation.WithLogger(c.libLogger)),
		Invoker:    invoker,
	}
	if downstream.Registration != "" {
		cfg.RegistrationID = downstream.Registration
		cfg.Manager = c.manager
	}

	r, err := relay.New(cfg,
		relay.WithLogger(c.libLogger),
		relay.WithRetry(c.cfg.Retry.MaxTries, c.cfg.Retry.InitialInterval),
	)
	if err != nil {
		return err
	}
	c.relay = r
	return nil
}

func (c *components) buildSessions(endpoints *registration.ProviderEndpoints) *session.Handlers {
	endSessionURL := c.cfg.Logout.Endpoint
	if endSessionURL == "" && endpoints != nil {
		endSessionURL = endpoints.EndSessionURL
	}

	opts := []session.Option{
		session.WithCookieName(c.cfg.Logout.CookieName),
		session.WithLogger(c.libLogger),
	}
	if c.cfg.Logout.SecureCookie {
		opts = append(opts, session.WithSecureCookie())
	}
	return session.NewHandlers(session.NewMemoryStore(), endSessionURL, c.cfg.Logout.PostLogoutRedirectURI, opts...)
}

// authenticate returns the inbound authentication middleware.
func (c *components) authenticate() func(http.Handler) http.Handler {
	return httpserver.Middleware(c.validator,
		httpserver.WithMiddlewareLogger(c.libLogger),
		httpserver.WithAuthorizationPolicy(c.policy),
	)
}

// close evicts every cached token.
func (c *components) close() {
	if c.manager != nil {
		c.manager.Close()
	}
}
