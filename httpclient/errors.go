package httpclient

import (
	"errors"
	"fmt"
)

// InvocationErrorKind classifies a failed downstream call.
type InvocationErrorKind int

const (
	// UpstreamStatus means the downstream server answered with a non-2xx status.
	UpstreamStatus InvocationErrorKind = iota + 1
	// Unreachable means no response was received.
	Unreachable
	// ResponseTooLarge means a 2xx body exceeded the invoker's size limit.
	ResponseTooLarge
)

var (
	// ErrUpstreamStatus matches InvocationError values of kind UpstreamStatus.
	ErrUpstreamStatus = errors.New("httpclient: upstream returned an error status")
	// ErrUnreachable matches InvocationError values of kind Unreachable.
	ErrUnreachable = errors.New("httpclient: upstream unreachable")
	// ErrResponseTooLarge matches InvocationError values of kind ResponseTooLarge.
	ErrResponseTooLarge = errors.New("httpclient: upstream response too large")
)

func (k InvocationErrorKind) String() string {
	switch k {
	case UpstreamStatus:
		return "upstream_status"
	case Unreachable:
		return "unreachable"
	case ResponseTooLarge:
		return "response_too_large"
	default:
		return "unknown"
	}
}

// InvocationError is returned by OutboundInvoker.Call.
type InvocationError struct {
	Kind       InvocationErrorKind
	URL        string
	StatusCode int    // set for UpstreamStatus and ResponseTooLarge
	Body       []byte // response body for UpstreamStatus, possibly truncated
	Limit      int64  // size limit that was exceeded, set for ResponseTooLarge
	Err        error
}

// Error returns a concise description of the failure.
func (e *InvocationError) Error() string {
	switch e.Kind {
	case UpstreamStatus:
		return fmt.Sprintf("httpclient: %s returned status %d", e.URL, e.StatusCode)
	case ResponseTooLarge:
		return fmt.Sprintf("httpclient: %s response body exceeds %d bytes", e.URL, e.Limit)
	}
	if e.Err != nil {
		return fmt.Sprintf("httpclient: %s %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("httpclient: %s %s", e.URL, e.Kind)
}

// Unwrap returns the underlying transport error, if any.
func (e *InvocationError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *InvocationError) Is(target error) bool {
	switch e.Kind {
	case UpstreamStatus:
		return target == ErrUpstreamStatus
	case Unreachable:
		return target == ErrUnreachable
	case ResponseTooLarge:
		return target == ErrResponseTooLarge
	default:
		return false
	}
}

// Retryable reports whether repeating the call can change the outcome.
func (e *InvocationError) Retryable() bool { return e.Kind == Unreachable }
