package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/AmmannChristian/go-authrelay/authz"
	"github.com/AmmannChristian/go-authrelay/propagation"
)

// ErrMissingToken is passed to the unauthorized handler when a request has no bearer token.
var ErrMissingToken = errors.New("httpserver: missing bearer token")

// MiddlewareConfig holds configuration for authentication middleware.
type MiddlewareConfig struct {
	validator           TokenValidator
	exemptPaths         map[string]bool // Exact path matches
	exemptPathPrefixes  []string        // Prefix matches
	logger              Logger          // optional logger
	tokenExtractor      TokenExtractor  // custom token extraction logic (optional)
	unauthorizedHandler ErrorHandler
	forbiddenHandler    ErrorHandler
	policy              *authz.Evaluator
}

// MiddlewareOption is a functional option for configuring middleware.
type MiddlewareOption func(*MiddlewareConfig)

// TokenExtractor extracts a token from an HTTP request.
// It returns the token string and whether extraction succeeded.
type TokenExtractor func(r *http.Request) (string, bool)

// ErrorHandler writes the response for a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// WithExemptPaths specifies HTTP paths that don't require authentication.
// These paths must match exactly.
//
// Example:
//
//	WithExemptPaths("/healthz", "/metrics")
func WithExemptPaths(paths ...string) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		for _, path := range paths {
			c.exemptPaths[path] = true
		}
	}
}

// WithExemptPathPrefixes specifies HTTP path prefixes that don't require authentication.
func WithExemptPathPrefixes(prefixes ...string) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.exemptPathPrefixes = append(c.exemptPathPrefixes, prefixes...)
	}
}

// WithMiddlewareLogger sets a logger for the middleware.
func WithMiddlewareLogger(logger Logger) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.logger = logger
	}
}

// WithTokenExtractor sets a custom token extraction function.
// By default, tokens are read from "Authorization: Bearer <token>".
func WithTokenExtractor(extractor TokenExtractor) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.tokenExtractor = extractor
	}
}

// WithUnauthorizedHandler sets a custom handler for authentication failures.
// By default, returns HTTP 401 with a Bearer challenge.
func WithUnauthorizedHandler(handler ErrorHandler) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.unauthorizedHandler = handler
	}
}

// WithForbiddenHandler sets a custom handler for authorization failures.
// By default, returns HTTP 403.
func WithForbiddenHandler(handler ErrorHandler) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.forbiddenHandler = handler
	}
}

// WithAuthorizationPolicy requires the authenticated principal to satisfy policy.
func WithAuthorizationPolicy(policy authz.Policy) MiddlewareOption {
	return func(c *MiddlewareConfig) {
		c.policy = authz.NewEvaluator(policy)
	}
}

// Middleware returns an HTTP middleware that authenticates inbound bearer tokens.
//
// A valid token becomes a propagation.InboundPrincipal in the request context,
// together with its TokenClaims, so handlers can propagate the raw token
// downstream. Missing or invalid tokens get 401; principals that fail the
// authorization policy get 403.
func Middleware(validator TokenValidator, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	config := &MiddlewareConfig{
		validator:   validator,
		exemptPaths: make(map[string]bool),
		unauthorizedHandler: func(w http.ResponseWriter, _ *http.Request, _ error) {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		},
		forbiddenHandler: func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "forbidden", http.StatusForbidden)
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExempt(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := extractToken(r, config)
			if !ok {
				config.reject(w, r, ErrMissingToken)
				return
			}

			claims, err := config.validator.ValidateToken(r.Context(), token)
			if err != nil {
				config.reject(w, r, err)
				return
			}

			principal := PrincipalFromClaims(token, claims)
			if config.policy != nil {
				if err := config.policy.Authorize(principal); err != nil {
					if config.logger != nil {
						config.logger.Printf("httpserver: authorization failed for %s %s (subject: %s): %v", r.Method, r.URL.Path, principal.Subject, err)
					}
					config.forbiddenHandler(w, r, err)
					return
				}
			}

			ctx := WithTokenClaims(r.Context(), claims)
			ctx = propagation.WithPrincipal(ctx, principal)
			r = r.WithContext(ctx)

			if config.logger != nil {
				config.logger.Printf("httpserver: authenticated request for %s %s (subject: %s)", r.Method, r.URL.Path, principal.Subject)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (c *MiddlewareConfig) reject(w http.ResponseWriter, r *http.Request, err error) {
	if c.logger != nil {
		c.logger.Printf("httpserver: authentication failed for %s %s: %v", r.Method, r.URL.Path, err)
	}
	c.unauthorizedHandler(w, r, err)
}

func isExempt(path string, config *MiddlewareConfig) bool {
	if config.exemptPaths[path] {
		return true
	}
	for _, prefix := range config.exemptPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// extractToken reads the bearer token with the custom extractor, or from the
// Authorization header. The scheme is matched case-insensitively.
func extractToken(r *http.Request, config *MiddlewareConfig) (string, bool) {
	if config.tokenExtractor != nil {
		token, ok := config.tokenExtractor(r)
		return token, ok && token != ""
	}

	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
