package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/AmmannChristian/go-authrelay/internal/testutil"
	"github.com/AmmannChristian/go-authrelay/oauth2client"
)

func staticSource(value string) oauth2client.TokenSource {
	return oauth2client.TokenSourceFunc(func(context.Context) (oauth2client.Token, error) {
		return oauth2client.Token{Value: value, Type: oauth2client.TokenTypeBearer}, nil
	})
}

func okResponse(req *http.Request, body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func TestNewBearerTransport(t *testing.T) {
	source := staticSource("t")
	transport := NewBearerTransport(source, nil)

	if transport.Source == nil {
		t.Error("Source not set")
	}
	if transport.Base == nil {
		t.Error("Base should default to a transport")
	}

	custom := &http.Transport{}
	if NewBearerTransport(source, custom).Base != custom {
		t.Error("Base should be set to custom transport")
	}
}

func TestBearerTransport_RoundTrip(t *testing.T) {
	base := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("Authorization"); got != "Bearer mock-access-token" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if got := req.Header.Get("X-Request-ID"); got != "req-1" {
			t.Errorf("expected other headers to be preserved, got %q", got)
		}
		return okResponse(req, "success"), nil
	})

	client := &http.Client{Transport: NewBearerTransport(staticSource("mock-access-token"), base)}

	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com", nil)
	req.Header.Set("X-Request-ID", "req-1")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("original request must not be modified")
	}
}

func TestBearerTransport_RoundTrip_NilSource(t *testing.T) {
	transport := &BearerTransport{}

	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com", nil)
	_, err := transport.RoundTrip(req)
	if err == nil || !strings.Contains(err.Error(), "token source is nil") {
		t.Fatalf("expected nil source error, got %v", err)
	}
}

func TestBearerTransport_RoundTrip_TokenError(t *testing.T) {
	tokenErr := errors.New("grant failed")
	source := oauth2client.TokenSourceFunc(func(context.Context) (oauth2client.Token, error) {
		return oauth2client.Token{}, tokenErr
	})

	called := false
	base := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		called = true
		return okResponse(req, ""), nil
	})

	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com", nil)
	_, err := NewBearerTransport(source, base).RoundTrip(req)
	if !errors.Is(err, tokenErr) {
		t.Fatalf("expected wrapped token error, got %v", err)
	}
	if called {
		t.Error("base transport must not be called without a token")
	}
}

func TestBearerTransport_WithAuthorizedClient(t *testing.T) {
	server := testutil.NewMockOAuth2Server(t, nil)

	registry := newTestRegistry(t, server)
	manager := oauth2client.NewAuthorizedClientManager(
		registry,
		oauth2client.NewClientCredentialsExecutor(oauth2client.WithHTTPClient(server.Client)),
		nil,
	)

	base := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("Authorization"); got != "Bearer mock-access-token" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		return okResponse(req, "ok"), nil
	})

	client, err := NewBuilder().WithAuthorizedClient(manager, "keycloak-client").WithBaseTransport(base).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		resp, err := client.Get("https://api.example.com/data")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
	}

	if server.Calls() != 1 {
		t.Errorf("expected the token to be granted once, got %d calls", server.Calls())
	}
}

func BenchmarkBearerTransport_RoundTrip(b *testing.B) {
	base := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		return okResponse(req, "ok"), nil
	})
	transport := NewBearerTransport(staticSource("t"), base)
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := transport.RoundTrip(req)
		if err != nil {
			b.Fatal(err)
		}
		resp.Body.Close()
	}
}
