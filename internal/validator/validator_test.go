package validator

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AmmannChristian/go-authrelay/internal/testutil"
)

const testJWKSURL = "https://auth.example.com/jwks.json"

func stubJWKSClient(body string, status int) *http.Client {
	return &http.Client{
		Transport: testutil.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: status,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(body)),
				Request:    r,
			}, nil
		}),
		Timeout: 5 * time.Second,
	}
}

func newSetupValidator(t *testing.T, setup *testutil.JWTTestSetup, logger Logger) *JWTTokenValidator {
	t.Helper()

	v, err := NewJWTTokenValidator(setup.JWKSServer.URL, setup.Issuer, setup.Audience, nil, 0, logger, "test")
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}
	t.Cleanup(v.Close)
	return v
}

func TestNewJWTTokenValidator(t *testing.T) {
	client := stubJWKSClient(`{"keys":[]}`, http.StatusOK)

	v, err := NewJWTTokenValidator(testJWKSURL, "https://auth.example.com", "my-api", client, time.Minute, nil, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v.Close()
}

func TestNewJWTTokenValidator_RequiredFields(t *testing.T) {
	tests := []struct {
		name     string
		jwksURL  string
		issuer   string
		audience string
		wantErr  string
	}{
		{name: "missing JWKS URL", issuer: "iss", audience: "aud", wantErr: "test: JWKS URL is required"},
		{name: "missing issuer", jwksURL: testJWKSURL, audience: "aud", wantErr: "test: issuer is required"},
		{name: "missing audience", jwksURL: testJWKSURL, issuer: "iss", wantErr: "test: audience is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJWTTokenValidator(tt.jwksURL, tt.issuer, tt.audience, nil, 0, nil, "test")
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("expected %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewJWTTokenValidator_DefaultPrefix(t *testing.T) {
	_, err := NewJWTTokenValidator("", "iss", "aud", nil, 0, nil, "")
	if err == nil || !strings.HasPrefix(err.Error(), "validator: ") {
		t.Fatalf("expected validator prefix, got %v", err)
	}
}

func TestNewJWTTokenValidator_JWKSUnavailable(t *testing.T) {
	client := stubJWKSClient("boom", http.StatusInternalServerError)

	_, err := NewJWTTokenValidator(testJWKSURL, "https://auth.example.com", "my-api", client, 0, nil, "test")
	if err == nil || !strings.Contains(err.Error(), "failed to initialize JWKS") {
		t.Fatalf("expected JWKS init error, got %v", err)
	}
}

func TestValidateToken_Success(t *testing.T) {
	setup := testutil.NewJWTTestSetup(t)
	logger := &testutil.StubLogger{}
	v := newSetupValidator(t, setup, logger)

	tokenString := testutil.NewJWTClaims(setup.Issuer, setup.Audience, "user123").
		WithEmail("user@example.com").
		WithScope("read write admin").
		WithCustomClaim("tenant", "acme").
		SignToken(t, setup.KeyPair.PrivateKey)

	claims, err := v.ValidateToken(context.Background(), tokenString)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}

	if claims.Subject != "user123" {
		t.Errorf("expected subject user123, got %s", claims.Subject)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("unexpected email %s", claims.Email)
	}
	if claims.Issuer != setup.Issuer {
		t.Errorf("unexpected issuer %s", claims.Issuer)
	}
	if len(claims.Scopes) != 3 || claims.Scopes[2] != "admin" {
		t.Errorf("unexpected scopes %v", claims.Scopes)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != setup.Audience {
		t.Errorf("unexpected audience %v", claims.Audience)
	}
	if claims.Expiry.IsZero() || claims.IssuedAt.IsZero() {
		t.Error("expected exp and iat to be set")
	}
	if claims.Raw["tenant"] != "acme" {
		t.Errorf("expected raw claims to be kept, got %v", claims.Raw)
	}
	if !logger.Contains("test: validated token for subject user123") {
		t.Errorf("expected validation log, got %v", logger.Messages())
	}
}

func TestValidateToken_Rejections(t *testing.T) {
	setup := testutil.NewJWTTestSetup(t)
	v := newSetupValidator(t, setup, nil)

	otherKey := testutil.GenerateTestKeyPair(t)

	tests := []struct {
		name    string
		token   string
		wantErr string
	}{
		{
			name:    "malformed",
			token:   "not-a-jwt",
			wantErr: "token validation failed",
		},
		{
			name:    "expired",
			token:   testutil.CreateExpiredToken(t, setup, "user123"),
			wantErr: "token validation failed",
		},
		{
			name:    "wrong signing key",
			token:   testutil.NewJWTClaims(setup.Issuer, setup.Audience, "user123").SignToken(t, otherKey.PrivateKey),
			wantErr: "token validation failed",
		},
		{
			name:    "wrong issuer",
			token:   testutil.NewJWTClaims("https://evil.example.com", setup.Audience, "user123").SignToken(t, setup.KeyPair.PrivateKey),
			wantErr: "invalid issuer",
		},
		{
			name:    "wrong audience",
			token:   testutil.CreateTokenWithWrongAudience(t, setup, "user123"),
			wantErr: "invalid audience",
		},
		{
			name:    "missing audience",
			token:   testutil.NewJWTClaims(setup.Issuer, setup.Audience, "user123").WithoutClaim("aud").SignToken(t, setup.KeyPair.PrivateKey),
			wantErr: "invalid audience",
		},
		{
			name:    "empty subject",
			token:   testutil.NewJWTClaims(setup.Issuer, setup.Audience, "").SignToken(t, setup.KeyPair.PrivateKey),
			wantErr: "invalid subject claim: empty",
		},
		{
			name:    "missing expiry",
			token:   testutil.NewJWTClaims(setup.Issuer, setup.Audience, "user123").WithoutClaim("exp").SignToken(t, setup.KeyPair.PrivateKey),
			wantErr: "invalid expiry claim: missing",
		},
		{
			name:    "missing issued at",
			token:   testutil.NewJWTClaims(setup.Issuer, setup.Audience, "user123").WithoutClaim("iat").SignToken(t, setup.KeyPair.PrivateKey),
			wantErr: "invalid issued at claim: missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.ValidateToken(context.Background(), tt.token)
			if err == nil {
				t.Fatalf("expected error, got claims %+v", claims)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateToken_MultipleAudiences(t *testing.T) {
	setup := testutil.NewJWTTestSetup(t)
	v := newSetupValidator(t, setup, nil)

	tokenString := testutil.NewJWTClaims(setup.Issuer, setup.Audience, "user123").
		WithAudience([]string{"other-api", setup.Audience}).
		SignToken(t, setup.KeyPair.PrivateKey)

	claims, err := v.ValidateToken(context.Background(), tokenString)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(claims.Audience) != 2 {
		t.Errorf("expected both audiences, got %v", claims.Audience)
	}
}

func TestExtractScopes(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   []string
	}{
		{name: "scope string", claims: jwt.MapClaims{"scope": "read write"}, want: []string{"read", "write"}},
		{name: "scope array", claims: jwt.MapClaims{"scope": []any{"read", 42, "write"}}, want: []string{"read", "write"}},
		{name: "scp string", claims: jwt.MapClaims{"scp": "admin"}, want: []string{"admin"}},
		{name: "scp array", claims: jwt.MapClaims{"scp": []any{"a", "b"}}, want: []string{"a", "b"}},
		{name: "scope wins over scp", claims: jwt.MapClaims{"scope": "read", "scp": "write"}, want: []string{"read"}},
		{name: "no scopes", claims: jwt.MapClaims{}, want: []string{}},
		{name: "unsupported type", claims: jwt.MapClaims{"scope": 12}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractScopes(tt.claims)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") || got == nil {
				t.Errorf("ExtractScopes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContains(t *testing.T) {
	if !contains([]string{"a", "b"}, "b") {
		t.Error("expected b to be found")
	}
	if contains([]string{"a"}, "c") || contains(nil, "a") {
		t.Error("unexpected match")
	}
}

func TestJWTTokenValidator_CloseWithNilJWKS(t *testing.T) {
	v := &JWTTokenValidator{}
	v.Close()
}

func TestJWTTokenValidator_ImplementsTokenValidator(t *testing.T) {
	var _ TokenValidator = (*JWTTokenValidator)(nil)
	var _ TokenValidator = (*OpaqueTokenValidator)(nil)
}
