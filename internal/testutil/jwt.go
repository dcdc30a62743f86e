package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// testKeyID is the kid of the only key served by JWTTestSetup.
const testKeyID = "test-key-1"

// TestKeyPair is an RSA signing key and its public half.
type TestKeyPair struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

// GenerateTestKeyPair generates a 2048-bit RSA key pair.
func GenerateTestKeyPair(tb testing.TB) *TestKeyPair {
	tb.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate RSA key pair: %v", err)
	}
	return &TestKeyPair{PrivateKey: key, PublicKey: &key.PublicKey}
}

// JWTTestSetup is a signing key served from a local JWKS endpoint, plus the
// issuer and audience tokens are minted for.
type JWTTestSetup struct {
	KeyPair    *TestKeyPair
	JWKSServer *httptest.Server
	Issuer     string
	Audience   string
}

// NewJWTTestSetup starts a JWKS server for a fresh key pair.
func NewJWTTestSetup(tb testing.TB) *JWTTestSetup {
	tb.Helper()

	keyPair := GenerateTestKeyPair(tb)
	return &JWTTestSetup{
		KeyPair:    keyPair,
		JWKSServer: newJWKSServer(tb, keyPair.PublicKey),
		Issuer:     "https://auth.example.com",
		Audience:   "my-api",
	}
}

func newJWKSServer(tb testing.TB, publicKey *rsa.PublicKey) *httptest.Server {
	tb.Helper()

	// JWK members are unpadded base64url (RFC 7517).
	encode := base64.RawURLEncoding.EncodeToString
	body, err := json.Marshal(map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": testKeyID,
			"use": "sig",
			"alg": "RS256",
			"n":   encode(publicKey.N.Bytes()),
			"e":   encode(big.NewInt(int64(publicKey.E)).Bytes()),
		}},
	})
	if err != nil {
		tb.Fatalf("failed to encode JWKS: %v", err)
	}

	return NewLocalHTTPServer(tb, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
}

// JWTClaims builds the claims of a test token.
type JWTClaims struct {
	claims jwt.MapClaims
}

// NewJWTClaims starts from claims that are valid for the next hour.
func NewJWTClaims(issuer, audience, subject string) *JWTClaims {
	now := time.Now()
	return &JWTClaims{claims: jwt.MapClaims{
		"iss": issuer,
		"aud": []string{audience},
		"sub": subject,
		"iat": now.Add(-time.Minute).Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}}
}

// WithExpiry sets exp.
func (c *JWTClaims) WithExpiry(exp time.Time) *JWTClaims {
	c.claims["exp"] = exp.Unix()
	return c
}

// WithScope sets the space separated scope claim.
func (c *JWTClaims) WithScope(scope string) *JWTClaims {
	c.claims["scope"] = scope
	return c
}

// WithEmail sets the email claim.
func (c *JWTClaims) WithEmail(email string) *JWTClaims {
	c.claims["email"] = email
	return c
}

// WithAudience replaces aud.
func (c *JWTClaims) WithAudience(audience []string) *JWTClaims {
	c.claims["aud"] = audience
	return c
}

// WithoutClaim removes key.
func (c *JWTClaims) WithoutClaim(key string) *JWTClaims {
	delete(c.claims, key)
	return c
}

// WithCustomClaim sets an arbitrary claim.
func (c *JWTClaims) WithCustomClaim(key string, value any) *JWTClaims {
	c.claims[key] = value
	return c
}

// SignToken signs the claims with RS256 under the setup's key id.
func (c *JWTClaims) SignToken(tb testing.TB, privateKey *rsa.PrivateKey) string {
	tb.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, c.claims)
	token.Header["kid"] = testKeyID

	signed, err := token.SignedString(privateKey)
	if err != nil {
		tb.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

// CreateValidToken mints a token the setup's validator accepts.
func CreateValidToken(tb testing.TB, setup *JWTTestSetup, subject string) string {
	tb.Helper()
	return NewJWTClaims(setup.Issuer, setup.Audience, subject).SignToken(tb, setup.KeyPair.PrivateKey)
}

// CreateExpiredToken mints a token that expired an hour ago.
func CreateExpiredToken(tb testing.TB, setup *JWTTestSetup, subject string) string {
	tb.Helper()
	return NewJWTClaims(setup.Issuer, setup.Audience, subject).
		WithExpiry(time.Now().Add(-time.Hour)).
		SignToken(tb, setup.KeyPair.PrivateKey)
}

// CreateTokenWithWrongAudience mints a token for another audience.
func CreateTokenWithWrongAudience(tb testing.TB, setup *JWTTestSetup, subject string) string {
	tb.Helper()
	return NewJWTClaims(setup.Issuer, "wrong-audience", subject).SignToken(tb, setup.KeyPair.PrivateKey)
}
