// Package oauth2client manages client-credentials tokens per client registration.
//
// It performs the client-credentials grant, caches one token per registration,
// and refreshes it when it expires. Tokens are stamped with an expiry that is a
// clock-skew margin earlier than the provider's, so a cached token is treated
// as expired slightly before the provider would reject it.
//
// # Components
//
//   - ClientCredentialsExecutor: a stateless GrantExecutor backed by golang.org/x/oauth2/clientcredentials
//   - TokenCache: one AuthorizedClient per registration id, last write wins
//   - AuthorizedClientManager: cache fast path, grant on miss or expiry, no stale fallback
//
// # Quick Start
//
//	registry, err := registration.NewRegistry(registration.ClientRegistration{
//	    ID:           "keycloak-client",
//	    TokenURL:     "https://auth.example.com/realms/demo/protocol/openid-connect/token",
//	    ClientID:     "client-app",
//	    ClientSecret: "secret",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	manager := oauth2client.NewAuthorizedClientManager(
//	    registry,
//	    oauth2client.NewClientCredentialsExecutor(),
//	    oauth2client.NewTokenCache(),
//	    oauth2client.WithLoggingEnabled(),
//	)
//
//	token, err := manager.Authorize(ctx, "keycloak-client")
//
// # Errors
//
// Grant failures are *GrantError values classified as unauthorized (4xx),
// unavailable (network or 5xx) or malformed response. Authorize wraps them in
// *AuthorizationError; errors.Is(err, ErrGrantFailed) and the per-kind
// sentinels such as ErrGrantUnavailable work through the chain.
//
// # Notes
//
//   - Nothing here retries; retry policy belongs to the caller.
//   - AuthorizedClientManager is safe for concurrent use. By default two callers
//     racing past an expired entry may both run a grant; WithSingleFlight
//     collapses them into one.
package oauth2client
