package oauth2client

import (
	"time"
)

// TokenTypeBearer is the only token type the relay presents downstream.
const TokenTypeBearer = "Bearer"

// Token is an issued access token. Tokens are immutable and superseded, never
// mutated, on refresh.
type Token struct {
	Value  string
	Type   string
	Expiry time.Time // zero for propagated tokens whose expiry is not tracked here
}

// Valid reports whether the token can still be used at now.
func (t Token) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.Expiry)
}

// AuthorizationHeader returns the value for an HTTP Authorization header.
func (t Token) AuthorizationHeader() string {
	return TokenTypeBearer + " " + t.Value
}

// AuthorizedClient associates a client registration with its current token.
type AuthorizedClient struct {
	RegistrationID string
	Token          Token
	IssuedAt       time.Time
}

// Clock supplies the current time. Tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }
