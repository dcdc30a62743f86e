// Package testutil provides test helpers for go-authrelay packages.
//
// It includes utilities to spin up IPv4-only local HTTP servers (avoiding IPv6 in sandboxes),
// mock OAuth2 token endpoints without real sockets, a manually advanced clock, a recording
// Printf logger, JWT/JWKS fixtures, and self-signed certificates for TLS/mTLS tests.
//
// # Utilities
//
//   - NewLocalHTTPServer: start httptest server bound to 127.0.0.1
//   - MockOAuth2Server, TokenResponse, StatusResponse: stub token endpoints and capture requests
//   - RoundTripFunc: inline http.RoundTripper implementations
//   - Clock: deterministic time for expiry tests
//   - StubLogger: capture Printf output
//   - NewJWTTestSetup / NewJWTClaims: sign tokens against a local JWKS server
//   - WriteTestCACert / WriteTestCertAndKey: generate temporary CA and leaf certificates for tests
package testutil
