// Package httpclient issues the downstream calls of the relay.
//
// OutboundInvoker sends one request per call with a bearer token chosen by the
// caller and returns the body of a 2xx response. Failures are *InvocationError
// values: UpstreamStatus for a non-2xx answer (status and body included) and
// Unreachable when no response arrived. A 2xx body above the configured limit
// fails with ResponseTooLarge rather than being cut short. Do also returns the
// response headers. Nothing here retries.
//
// The fluent Builder creates the underlying http.Client with TLS 1.2+ defaults,
// optional custom CA and mTLS, timeouts and redirect control. With a
// TokenSource it wraps the transport in a BearerTransport so every request is
// authenticated without an explicit token.
//
// # Quick Start
//
//	client, err := httpclient.NewBuilder().
//	    WithTLS("/path/to/ca.crt", "", "").
//	    WithTimeout(10 * time.Second).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	invoker := httpclient.NewOutboundInvoker(client, httpclient.WithLoggingEnabled())
//	body, err := invoker.Call(ctx, "https://resource.example.com/data", token)
//
// # Transport Wrapping
//
//	client, err := httpclient.NewBuilder().
//	    WithAuthorizedClient(manager, "keycloak-client").
//	    Build()
//
// All components are safe for concurrent use if the provided TokenSource is.
package httpclient
