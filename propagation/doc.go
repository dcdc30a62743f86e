// Package propagation forwards an already-validated inbound bearer token to
// outbound calls instead of minting a new one.
//
// The inbound authentication layer stores an InboundPrincipal in the request
// context with WithPrincipal. TokenPropagator reads it back and returns the raw
// token unchanged. When no principal is present it fails with a
// *PropagationError; it never falls back to a service token.
//
//	propagator := propagation.NewTokenPropagator(propagation.WithLoggingEnabled())
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    token, err := propagator.FromContext(r.Context())
//	    if err != nil {
//	        http.Error(w, "internal error", http.StatusInternalServerError)
//	        return
//	    }
//	    body, err := invoker.Call(r.Context(), downstreamURL, token)
//	    // ...
//	}
package propagation
