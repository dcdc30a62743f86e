package testutil

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// NewLocalHTTPServer starts an HTTP server bound to IPv4 loopback only.
// The sandbox blocks IPv6 listeners, so force tcp4 to keep tests runnable.
func NewLocalHTTPServer(tb testing.TB, handler http.Handler) *httptest.Server {
	tb.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("failed to create IPv4 listener: %v", err)
	}

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()
	tb.Cleanup(server.Close)

	return server
}

// RoundTripFunc allows inlining http.RoundTripper implementations.
type RoundTripFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls the underlying function.
func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// TokenRequest is what MockOAuth2Server saw for one token request.
type TokenRequest struct {
	Method       string
	Path         string
	Form         url.Values
	BasicUser    string
	BasicSecret  string
	HasBasicAuth bool
}

// MockOAuth2Server simulates an OAuth2 token endpoint without real sockets.
// It records requests and serves responses through Client's RoundTripper.
type MockOAuth2Server struct {
	URL    string
	Client *http.Client

	mu       sync.Mutex
	requests []TokenRequest
}

// NewMockOAuth2Server builds a mock OAuth2 endpoint backed by an in-memory RoundTripper.
// If handler is nil, it returns a default successful token response.
func NewMockOAuth2Server(tb testing.TB, handler RoundTripFunc) *MockOAuth2Server {
	tb.Helper()

	server := &MockOAuth2Server{
		URL: "https://mock-oauth.example.com",
	}

	if handler == nil {
		handler = TokenResponse("mock-access-token", 3600)
	}

	server.Client = &http.Client{Transport: RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		server.record(req)
		return handler(req)
	})}

	return server
}

// Calls returns how many token requests the server has received.
func (m *MockOAuth2Server) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the recorded requests.
func (m *MockOAuth2Server) Requests() []TokenRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TokenRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockOAuth2Server) record(req *http.Request) {
	recorded := TokenRequest{Method: req.Method, Path: req.URL.Path}
	if req.Body != nil {
		body, _ := io.ReadAll(req.Body)
		_ = req.Body.Close()
		recorded.Form, _ = url.ParseQuery(string(body))
		req.Body = io.NopCloser(strings.NewReader(string(body)))
	}
	recorded.BasicUser, recorded.BasicSecret, recorded.HasBasicAuth = req.BasicAuth()

	m.mu.Lock()
	m.requests = append(m.requests, recorded)
	m.mu.Unlock()
}

// TokenResponse returns a handler that issues accessToken with the given lifetime in seconds.
func TokenResponse(accessToken string, expiresIn int) RoundTripFunc {
	return StaticJSONResponse(fmt.Sprintf(`{
		"access_token": %q,
		"token_type": "Bearer",
		"expires_in": %d
	}`, accessToken, expiresIn))
}

// StaticJSONResponse returns a RoundTripper that always responds with the provided JSON body.
func StaticJSONResponse(body string) RoundTripFunc {
	return StatusResponse(http.StatusOK, body)
}

// StatusResponse returns a RoundTripper that always responds with status and a JSON body.
func StatusResponse(status int, body string) RoundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		header := make(http.Header)
		header.Set("Content-Type", "application/json")
		return &http.Response{
			StatusCode: status,
			Header:     header,
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

// Clock is a manually advanced clock, safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StubLogger records Printf output.
type StubLogger struct {
	mu       sync.Mutex
	messages []string
}

// Printf implements the Printf-style logger interfaces used across the module.
func (l *StubLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}

// Messages returns a copy of the recorded messages.
func (l *StubLogger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := make([]string, len(l.messages))
	copy(msgs, l.messages)
	return msgs
}

// Contains reports whether any recorded message contains substr.
func (l *StubLogger) Contains(substr string) bool {
	for _, msg := range l.Messages() {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}
