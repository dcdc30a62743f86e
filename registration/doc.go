// Package registration holds the immutable table of OAuth2 client registrations.
//
// Registrations are loaded once at startup from configuration. A registration
// either names its token endpoint directly or points at an OIDC issuer, in which
// case Resolve fills in the token endpoint through OIDC discovery before the
// Registry is built.
//
//	reg, err := registration.Resolve(ctx, registration.ClientRegistration{
//	    ID:           "keycloak-client",
//	    IssuerURL:    "https://auth.example.com/realms/demo",
//	    ClientID:     "client-app",
//	    ClientSecret: "secret",
//	    Scopes:       []string{"read"},
//	}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	registry, err := registration.NewRegistry(reg)
package registration
