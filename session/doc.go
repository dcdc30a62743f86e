// Package session keeps the relay's local login state and ends it with a
// provider-side logout.
//
// A Session records who logged in and the ID token of that login. Handlers.Logout
// deletes the session, expires its cookie and redirects the browser to the
// provider's end-session endpoint:
//
//	GET <logout-endpoint>?id_token_hint=<id token>&post_logout_redirect_uri=<uri>
//
// The login flow itself happens at the identity provider; Handlers.Create
// records its outcome for an already authenticated principal.
package session
