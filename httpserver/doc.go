// Package httpserver authenticates inbound HTTP requests to the relay.
//
// The middleware validates the bearer token of every non-exempt request,
// either as a JWT against the issuer's JWKS or as an opaque token through
// RFC 7662 introspection, and stores the resulting propagation.InboundPrincipal
// in the request context. Handlers that call downstream services on the
// caller's behalf read the principal back with propagation.PrincipalFromContext.
//
// # Quick Start
//
//	validator, err := httpserver.NewValidatorBuilder(
//	    "https://keycloak.example.com/realms/demo", // OIDC issuer URL
//	    "authrelay",                                // expected audience
//	).Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/proxy", proxyHandler)
//
//	handler := httpserver.Middleware(validator,
//	    httpserver.WithExemptPaths("/healthz", "/metrics"),
//	)(mux)
//
// The JWKS and introspection endpoints are discovered from
// {issuer}/.well-known/openid-configuration unless set explicitly with
// WithJWKSURL or WithIntrospection.
//
// # Principals and Claims
//
//	func proxyHandler(w http.ResponseWriter, r *http.Request) {
//	    principal, ok := propagation.PrincipalFromContext(r.Context())
//	    if !ok {
//	        http.Error(w, "unauthorized", http.StatusUnauthorized)
//	        return
//	    }
//	    claims, _ := httpserver.TokenClaimsFromContext(r.Context())
//	    fmt.Fprintf(w, "hello %s (%s)", principal.Subject, claims.Email)
//	}
//
// # Authorization
//
// WithAuthorizationPolicy rejects authenticated principals that lack the
// required scopes or roles with 403 Forbidden:
//
//	httpserver.Middleware(validator, httpserver.WithAuthorizationPolicy(authz.Policy{
//	    RequiredRoles: []string{"relay-user"},
//	}))
//
// # TLS
//
// NewTLSConfig and ConfigureServer build server TLS settings, including mTLS
// when a client CA is configured.
package httpserver
