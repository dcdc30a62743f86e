package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/AmmannChristian/go-authrelay/propagation"
)

// DefaultCookieName is the cookie that carries the session id.
const DefaultCookieName = "AUTHRELAY_SESSION"

// Logger is an interface for optional logging of session events.
type Logger interface {
	Printf(format string, args ...any)
}

// LogoutURL builds the provider's end-session URL:
//
//	<endpoint>?id_token_hint=<idTokenHint>&post_logout_redirect_uri=<uri>
//
// Empty parameters are omitted; existing query parameters of endpoint are kept.
func LogoutURL(endpoint, idTokenHint, postLogoutRedirectURI string) (string, error) {
	if endpoint == "" {
		return "", errors.New("session: logout endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("session: invalid logout endpoint: %w", err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("session: logout endpoint %q is not absolute", endpoint)
	}

	query := u.Query()
	if idTokenHint != "" {
		query.Set("id_token_hint", idTokenHint)
	}
	if postLogoutRedirectURI != "" {
		query.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// Handlers serves session creation and logout.
type Handlers struct {
	store                 Store
	cookieName            string
	endSessionURL         string
	postLogoutRedirectURI string
	secureCookie          bool
	logger                Logger
}

// Option configures Handlers.
type Option func(*Handlers)

// WithCookieName overrides DefaultCookieName.
func WithCookieName(name string) Option {
	return func(h *Handlers) {
		if name != "" {
			h.cookieName = name
		}
	}
}

// WithSecureCookie marks the session cookie Secure.
func WithSecureCookie() Option {
	return func(h *Handlers) {
		h.secureCookie = true
	}
}

// WithLogger sets a custom logger. If not set, no logging will occur.
func WithLogger(logger Logger) Option {
	return func(h *Handlers) {
		h.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
func WithLoggingEnabled() Option {
	return func(h *Handlers) {
		h.logger = log.Default()
	}
}

// NewHandlers creates session handlers. endSessionURL is the provider's logout
// endpoint; when empty, logout only ends the local session.
func NewHandlers(store Store, endSessionURL, postLogoutRedirectURI string, opts ...Option) *Handlers {
	h := &Handlers{
		store:                 store,
		cookieName:            DefaultCookieName,
		endSessionURL:         endSessionURL,
		postLogoutRedirectURI: postLogoutRedirectURI,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type createdSession struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
}

// Create establishes a session for the authenticated principal in the request
// context. The ID token of the completed login may be posted as "id_token" so
// that logout can pass it as id_token_hint.
func (h *Handlers) Create() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := propagation.PrincipalFromContext(r.Context())
		if !ok || principal.Subject == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		sess, err := h.store.Create(principal.Subject, r.PostFormValue("id_token"))
		if err != nil {
			if h.logger != nil {
				h.logger.Printf("session: failed to create session for %s: %v", principal.Subject, err)
			}
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     h.cookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		if h.logger != nil {
			h.logger.Printf("session: created session %s for %s", sess.ID, sess.Subject)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createdSession{ID: sess.ID, Subject: sess.Subject})
	})
}

// Logout ends the session named by the session cookie: the session is deleted,
// the cookie expired, and the browser redirected to the provider's logout
// endpoint with the session's ID token as hint. Requests without a live
// session get 401.
func (h *Handlers) Logout() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(h.cookieName)
		if err != nil || cookie.Value == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		sess, ok := h.store.Get(cookie.Value)
		if !ok {
			h.expireCookie(w)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		h.store.Delete(sess.ID)
		h.expireCookie(w)

		target := h.postLogoutRedirectURI
		if target == "" {
			target = "/"
		}
		if h.endSessionURL != "" {
			providerURL, err := LogoutURL(h.endSessionURL, sess.IDToken, h.postLogoutRedirectURI)
			if err != nil {
				if h.logger != nil {
					h.logger.Printf("session: %v", err)
				}
			} else {
				target = providerURL
			}
		}

		if h.logger != nil {
			h.logger.Printf("session: ended session %s for %s", sess.ID, sess.Subject)
		}
		http.Redirect(w, r, target, http.StatusFound)
	})
}

func (h *Handlers) expireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
