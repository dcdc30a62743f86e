// Package relay decides which token authenticates a downstream call.
//
// A Relay has two mutually exclusive strategies. StrategyPropagation forwards
// the bearer token of the inbound request, read from the context by a
// propagation.TokenPropagator. StrategyClientCredentials obtains the relay's
// own token from an oauth2client.AuthorizedClientManager. The strategy is
// chosen per call site and a failure of one source never falls back to the
// other:
//
//	r, err := relay.New(relay.Config{
//	    BaseURL:        "http://resource:8082",
//	    RegistrationID: "keycloak-client",
//	    Propagator:     propagation.NewTokenPropagator(),
//	    Manager:        manager,
//	    Invoker:        httpclient.NewOutboundInvoker(nil),
//	}, relay.WithRetry(3, 200*time.Millisecond))
//
//	mux.Handle("/proxy", r.Handler(relay.StrategyPropagation, "/data"))
//	mux.Handle("/service/data", r.Handler(relay.StrategyClientCredentials, "/data"))
//
// HTTPStatus translates the error taxonomy of the token sources and the
// invoker into the status the relay returns to its own caller.
package relay
