package oauth2client

import (
	"errors"
	"fmt"
)

// GrantErrorKind classifies a failed grant.
type GrantErrorKind int

const (
	// GrantUnauthorized means the provider rejected the credentials or scope (4xx).
	GrantUnauthorized GrantErrorKind = iota + 1
	// GrantUnavailable means the provider could not be reached or failed (network, 5xx).
	GrantUnavailable
	// GrantMalformedResponse means the provider answered with a body that is not a token.
	GrantMalformedResponse
)

var (
	// ErrGrantUnauthorized matches GrantError values of kind GrantUnauthorized.
	ErrGrantUnauthorized = errors.New("oauth2client: grant unauthorized")
	// ErrGrantUnavailable matches GrantError values of kind GrantUnavailable.
	ErrGrantUnavailable = errors.New("oauth2client: token endpoint unavailable")
	// ErrGrantMalformedResponse matches GrantError values of kind GrantMalformedResponse.
	ErrGrantMalformedResponse = errors.New("oauth2client: malformed token response")

	// ErrGrantFailed matches AuthorizationError values caused by a GrantError.
	ErrGrantFailed = errors.New("oauth2client: grant failed")
	// ErrTokenExpired is the authorization failure reason for a token that expired before it could be returned.
	ErrTokenExpired = errors.New("oauth2client: token expired before use")
)

func (k GrantErrorKind) String() string {
	switch k {
	case GrantUnauthorized:
		return "unauthorized"
	case GrantUnavailable:
		return "unavailable"
	case GrantMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

func (k GrantErrorKind) sentinel() error {
	switch k {
	case GrantUnauthorized:
		return ErrGrantUnauthorized
	case GrantUnavailable:
		return ErrGrantUnavailable
	case GrantMalformedResponse:
		return ErrGrantMalformedResponse
	default:
		return nil
	}
}

// GrantError is returned by a GrantExecutor when a grant fails.
type GrantError struct {
	Kind           GrantErrorKind
	RegistrationID string
	StatusCode     int // provider status, 0 when no response was received
	Err            error
}

// Error returns a concise description of the failure.
func (e *GrantError) Error() string {
	msg := fmt.Sprintf("oauth2client: grant for %q failed (%s)", e.RegistrationID, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *GrantError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *GrantError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Retryable reports whether repeating the grant can change the outcome.
// Only unavailability is retryable; bad credentials and bad payloads are not.
func (e *GrantError) Retryable() bool { return e.Kind == GrantUnavailable }

// AuthorizationError is returned by AuthorizedClientManager.Authorize.
type AuthorizationError struct {
	RegistrationID string
	Reason         error
}

// Error returns a concise description of the failure.
func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("oauth2client: authorization for %q failed: %v", e.RegistrationID, e.Reason)
}

// Unwrap returns the reason so callers can reach the GrantError.
func (e *AuthorizationError) Unwrap() error { return e.Reason }

// Is reports ErrGrantFailed when the reason is a GrantError.
func (e *AuthorizationError) Is(target error) bool {
	if target != ErrGrantFailed {
		return false
	}
	var grantErr *GrantError
	return errors.As(e.Reason, &grantErr)
}
