package oauth2client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AmmannChristian/go-authrelay/internal/testutil"
	"github.com/AmmannChristian/go-authrelay/registration"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func testRegistration(server *testutil.MockOAuth2Server) registration.ClientRegistration {
	return registration.ClientRegistration{
		ID:           "keycloak-client",
		TokenURL:     server.URL + "/token",
		ClientID:     "client-app",
		ClientSecret: "s3cret",
		GrantType:    registration.GrantTypeClientCredentials,
		Scopes:       []string{"read", "write"},
		AuthMethod:   registration.AuthMethodClientSecretBasic,
	}
}

func newTestExecutor(server *testutil.MockOAuth2Server, clock Clock, opts ...ExecutorOption) *ClientCredentialsExecutor {
	opts = append([]ExecutorOption{WithHTTPClient(server.Client), WithExecutorClock(clock)}, opts...)
	return NewClientCredentialsExecutor(opts...)
}

func TestClientCredentialsExecutor_Acquire(t *testing.T) {
	server := testutil.NewMockOAuth2Server(t, nil)
	executor := newTestExecutor(server, testutil.NewClock(testNow))

	token, err := executor.Acquire(context.Background(), testRegistration(server))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if token.Value != "mock-access-token" {
		t.Errorf("expected mock-access-token, got %s", token.Value)
	}
	if token.Type != TokenTypeBearer {
		t.Errorf("expected Bearer token type, got %s", token.Type)
	}

	wantExpiry := testNow.Add(time.Hour - DefaultClockSkew)
	if !token.Expiry.Equal(wantExpiry) {
		t.Errorf("expected expiry %s, got %s", wantExpiry, token.Expiry)
	}

	requests := server.Requests()
	if len(requests) != 1 {
		t.Fatalf("expected 1 token request, got %d", len(requests))
	}
	req := requests[0]
	if req.Method != http.MethodPost || req.Path != "/token" {
		t.Errorf("unexpected request %s %s", req.Method, req.Path)
	}
	if got := req.Form.Get("grant_type"); got != "client_credentials" {
		t.Errorf("expected client_credentials grant, got %q", got)
	}
	if got := req.Form.Get("scope"); got != "read write" {
		t.Errorf("expected space separated scopes, got %q", got)
	}
	if !req.HasBasicAuth || req.BasicUser != "client-app" || req.BasicSecret != "s3cret" {
		t.Errorf("expected basic auth credentials, got %q/%q (present=%v)", req.BasicUser, req.BasicSecret, req.HasBasicAuth)
	}
	if req.Form.Get("client_secret") != "" {
		t.Error("client secret must not be sent in the body with client_secret_basic")
	}
}

func TestClientCredentialsExecutor_ClientSecretPost(t *testing.T) {
	server := testutil.NewMockOAuth2Server(t, nil)
	executor := newTestExecutor(server, testutil.NewClock(testNow))

	reg := testRegistration(server)
	reg.AuthMethod = registration.AuthMethodClientSecretPost

	if _, err := executor.Acquire(context.Background(), reg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := server.Requests()[0]
	if req.HasBasicAuth {
		t.Error("basic auth must not be used with client_secret_post")
	}
	if req.Form.Get("client_id") != "client-app" || req.Form.Get("client_secret") != "s3cret" {
		t.Errorf("expected credentials in form body, got %v", req.Form)
	}
}

func TestClientCredentialsExecutor_Errors(t *testing.T) {
	tests := []struct {
		name       string
		handler    testutil.RoundTripFunc
		wantKind   GrantErrorKind
		wantStatus int
		sentinel   error
		retryable  bool
	}{
		{
			name:       "bad credentials",
			handler:    testutil.StatusResponse(http.StatusUnauthorized, `{"error":"invalid_client"}`),
			wantKind:   GrantUnauthorized,
			wantStatus: http.StatusUnauthorized,
			sentinel:   ErrGrantUnauthorized,
		},
		{
			name:       "bad scope",
			handler:    testutil.StatusResponse(http.StatusBadRequest, `{"error":"invalid_scope"}`),
			wantKind:   GrantUnauthorized,
			wantStatus: http.StatusBadRequest,
			sentinel:   ErrGrantUnauthorized,
		},
		{
			name:       "provider failure",
			handler:    testutil.StatusResponse(http.StatusServiceUnavailable, `{"error":"temporarily_unavailable"}`),
			wantKind:   GrantUnavailable,
			wantStatus: http.StatusServiceUnavailable,
			sentinel:   ErrGrantUnavailable,
			retryable:  true,
		},
		{
			name: "network failure",
			handler: func(*http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			},
			wantKind:  GrantUnavailable,
			sentinel:  ErrGrantUnavailable,
			retryable: true,
		},
		{
			name:     "unparseable body",
			handler:  testutil.StaticJSONResponse(`{"access_token": `),
			wantKind: GrantMalformedResponse,
			sentinel: ErrGrantMalformedResponse,
		},
		{
			name:     "missing access token",
			handler:  testutil.StaticJSONResponse(`{"token_type":"Bearer","expires_in":60}`),
			wantKind: GrantMalformedResponse,
			sentinel: ErrGrantMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := testutil.NewMockOAuth2Server(t, tt.handler)
			executor := newTestExecutor(server, testutil.NewClock(testNow))

			_, err := executor.Acquire(context.Background(), testRegistration(server))
			if err == nil {
				t.Fatal("expected error")
			}

			var grantErr *GrantError
			if !errors.As(err, &grantErr) {
				t.Fatalf("expected *GrantError, got %T: %v", err, err)
			}
			if grantErr.Kind != tt.wantKind {
				t.Errorf("expected kind %s, got %s", tt.wantKind, grantErr.Kind)
			}
			if grantErr.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, grantErr.StatusCode)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("expected errors.Is(%v)", tt.sentinel)
			}
			if grantErr.Retryable() != tt.retryable {
				t.Errorf("expected retryable=%v", tt.retryable)
			}
			if grantErr.RegistrationID != "keycloak-client" {
				t.Errorf("unexpected registration id %s", grantErr.RegistrationID)
			}

			// No retries inside the executor.
			if server.Calls() != 1 {
				t.Errorf("expected exactly 1 call, got %d", server.Calls())
			}
		})
	}
}

func TestClientCredentialsExecutor_Lifetime(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		skew       time.Duration
		wantExpiry time.Duration
	}{
		{
			name:       "skew subtracted",
			body:       `{"access_token":"t","token_type":"bearer","expires_in":60}`,
			skew:       30 * time.Second,
			wantExpiry: 30 * time.Second,
		},
		{
			name:       "no skew",
			body:       `{"access_token":"t","token_type":"bearer","expires_in":60}`,
			skew:       0,
			wantExpiry: 60 * time.Second,
		},
		{
			name:       "skew capped at half the lifetime",
			body:       `{"access_token":"t","token_type":"bearer","expires_in":10}`,
			skew:       30 * time.Second,
			wantExpiry: 5 * time.Second,
		},
		{
			name:       "string expires_in",
			body:       `{"access_token":"t","token_type":"bearer","expires_in":"120"}`,
			skew:       0,
			wantExpiry: 120 * time.Second,
		},
		{
			name:       "missing expires_in",
			body:       `{"access_token":"t","token_type":"bearer"}`,
			skew:       30 * time.Second,
			wantExpiry: 500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := testutil.NewMockOAuth2Server(t, testutil.StaticJSONResponse(tt.body))
			executor := newTestExecutor(server, testutil.NewClock(testNow), WithClockSkew(tt.skew))

			token, err := executor.Acquire(context.Background(), testRegistration(server))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := token.Expiry.Sub(testNow); got != tt.wantExpiry {
				t.Errorf("expected lifetime %v, got %v", tt.wantExpiry, got)
			}
			if token.Type != TokenTypeBearer {
				t.Errorf("expected normalized Bearer type, got %q", token.Type)
			}
		})
	}
}

func TestClientCredentialsExecutor_HonorsRedirectPolicy(t *testing.T) {
	var followed atomic.Int32
	var leakedSecret atomic.Value
	target := testutil.NewLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		followed.Add(1)
		_ = r.ParseForm()
		leakedSecret.Store(r.PostForm.Get("client_secret"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"via-redirect","token_type":"Bearer","expires_in":300}`))
	}))
	provider := testutil.NewLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/token", http.StatusTemporaryRedirect)
	}))

	client := &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	executor := NewClientCredentialsExecutor(WithHTTPClient(client), WithExecutorClock(testutil.NewClock(testNow)))

	reg := registration.ClientRegistration{
		ID:           "keycloak-client",
		TokenURL:     provider.URL + "/token",
		ClientID:     "client-app",
		ClientSecret: "s3cret",
		GrantType:    registration.GrantTypeClientCredentials,
		AuthMethod:   registration.AuthMethodClientSecretPost,
	}

	token, err := executor.Acquire(context.Background(), reg)
	if err == nil {
		t.Fatalf("expected error, got token %q", token.Value)
	}
	var grantErr *GrantError
	if !errors.As(err, &grantErr) {
		t.Fatalf("expected *GrantError, got %T: %v", err, err)
	}
	if grantErr.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("expected status 307, got %d", grantErr.StatusCode)
	}
	if n := followed.Load(); n != 0 {
		t.Errorf("redirect must not be followed, target saw %d requests", n)
	}
	if secret, _ := leakedSecret.Load().(string); secret != "" {
		t.Errorf("client secret reached the redirect target: %q", secret)
	}
}

func TestClientCredentialsExecutor_UnsupportedGrant(t *testing.T) {
	server := testutil.NewMockOAuth2Server(t, nil)
	executor := newTestExecutor(server, testutil.NewClock(testNow))

	reg := testRegistration(server)
	reg.GrantType = "password"

	_, err := executor.Acquire(context.Background(), reg)
	if err == nil || !strings.Contains(err.Error(), "unsupported grant type") {
		t.Fatalf("expected unsupported grant error, got %v", err)
	}
	if server.Calls() != 0 {
		t.Error("no request should be made for an unsupported grant")
	}
}

func TestClientCredentialsExecutor_Logger(t *testing.T) {
	server := testutil.NewMockOAuth2Server(t, nil)
	logger := &testutil.StubLogger{}
	executor := newTestExecutor(server, testutil.NewClock(testNow), WithExecutorLogger(logger))

	if _, err := executor.Acquire(context.Background(), testRegistration(server)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !logger.Contains("acquired token for keycloak-client") {
		t.Errorf("expected acquisition log, got %v", logger.Messages())
	}
}

func TestWithClockSkew_Negative(t *testing.T) {
	executor := NewClientCredentialsExecutor(WithClockSkew(-time.Second))
	if executor.clockSkew != 0 {
		t.Errorf("expected negative skew to clamp to 0, got %v", executor.clockSkew)
	}
}
