package propagation

import "errors"

// PropagationErrorKind classifies a propagation failure.
type PropagationErrorKind int

const (
	// NoPrincipal means propagation was attempted without an authenticated request.
	NoPrincipal PropagationErrorKind = iota + 1
)

// ErrNoPrincipal matches PropagationError values of kind NoPrincipal.
var ErrNoPrincipal = errors.New("propagation: no inbound principal")

func (k PropagationErrorKind) String() string {
	if k == NoPrincipal {
		return "no_principal"
	}
	return "unknown"
}

// PropagationError is returned when there is no inbound token to propagate.
// Reaching it means access control upstream is misconfigured, so callers
// should treat it as an internal error.
type PropagationError struct {
	Kind PropagationErrorKind
}

// Error returns a concise description of the failure.
func (e *PropagationError) Error() string {
	return "propagation: cannot propagate token (" + e.Kind.String() + ")"
}

// Is matches ErrNoPrincipal for NoPrincipal errors.
func (e *PropagationError) Is(target error) bool {
	return e.Kind == NoPrincipal && target == ErrNoPrincipal
}
