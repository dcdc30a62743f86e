package oauth2client

import "context"

// TokenSource supplies the token for one outbound call.
//
// Transports and invokers depend on this interface rather than on the manager,
// so the same plumbing serves propagated and client-credentials tokens.
type TokenSource interface {
	Token(ctx context.Context) (Token, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (Token, error)

// Token calls f(ctx).
func (f TokenSourceFunc) Token(ctx context.Context) (Token, error) { return f(ctx) }

// TokenSource returns a TokenSource that authorizes registrationID on every call.
func (m *AuthorizedClientManager) TokenSource(registrationID string) TokenSource {
	return TokenSourceFunc(func(ctx context.Context) (Token, error) {
		return m.Authorize(ctx, registrationID)
	})
}
