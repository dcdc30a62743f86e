// Package grpcclient authenticates outbound gRPC calls with the same token
// sources the HTTP path uses.
//
// Any oauth2client.TokenSource can back a connection: the
// AuthorizedClientManager for service-to-service calls, or a
// propagation.TokenPropagator to forward the inbound caller's token.
//
// # Quick Start
//
//	conn, err := grpcclient.NewBuilder().
//	    WithAddress("inventory.internal:9090").
//	    WithAuthorizedClient(manager, "keycloak-client").
//	    WithTLS("/path/to/ca.crt", "", "", "inventory.internal").
//	    Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
// Per call, instead of per connection:
//
//	creds := grpcclient.NewCredentials(propagation.NewTokenPropagator())
//	resp, err := client.Get(r.Context(), req, grpc.PerRPCCredentials(creds))
//
// # TLS Behavior
//
// TLS is enabled by default with system CAs and TLS 1.2 minimum. WithTLS allows supplying a custom
// root CA and optional client cert/key for mTLS; both cert and key must be provided together.
// WithInsecure dials plaintext.
package grpcclient
