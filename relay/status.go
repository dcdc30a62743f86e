package relay

import (
	"context"
	"errors"
	"net/http"

	"github.com/AmmannChristian/go-authrelay/httpclient"
	"github.com/AmmannChristian/go-authrelay/oauth2client"
)

// HTTPStatus maps a Fetch error to the status the relay answers its own caller with.
//
// Downstream 401 and 403 are passed through so the caller learns that its
// token was refused; any other downstream status becomes 502, as does an
// oversized downstream body. A deadline expiring anywhere in the call is 504.
// Malformed token responses, a missing inbound principal and unclassified
// errors are 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var invocationErr *httpclient.InvocationError
	if errors.As(err, &invocationErr) && invocationErr.Kind == httpclient.UpstreamStatus {
		switch invocationErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return invocationErr.StatusCode
		default:
			return http.StatusBadGateway
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, oauth2client.ErrGrantUnavailable), errors.Is(err, httpclient.ErrUnreachable),
		errors.Is(err, httpclient.ErrResponseTooLarge):
		return http.StatusBadGateway
	case errors.Is(err, oauth2client.ErrGrantUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
