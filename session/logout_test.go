package session_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/AmmannChristian/go-authrelay/internal/testutil"
	"github.com/AmmannChristian/go-authrelay/propagation"
	"github.com/AmmannChristian/go-authrelay/session"
)

const keycloakLogout = "http://127.0.0.1:8089/realms/oauth2_learn/protocol/openid-connect/logout"

func TestLogoutURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		hint     string
		redirect string
		want     map[string]string
		wantErr  bool
	}{
		{
			name:     "hint and redirect",
			endpoint: keycloakLogout,
			hint:     "id.token.value",
			redirect: "http://localhost:8080/",
			want:     map[string]string{"id_token_hint": "id.token.value", "post_logout_redirect_uri": "http://localhost:8080/"},
		},
		{
			name:     "without hint",
			endpoint: keycloakLogout,
			redirect: "http://localhost:8080/",
			want:     map[string]string{"post_logout_redirect_uri": "http://localhost:8080/"},
		},
		{
			name:     "existing query kept",
			endpoint: keycloakLogout + "?client_id=relay",
			hint:     "h",
			want:     map[string]string{"client_id": "relay", "id_token_hint": "h"},
		},
		{name: "empty endpoint", wantErr: true},
		{name: "relative endpoint", endpoint: "/logout", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := session.LogoutURL(tt.endpoint, tt.hint, tt.redirect)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LogoutURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			u, err := url.Parse(got)
			if err != nil {
				t.Fatalf("invalid URL %q: %v", got, err)
			}
			if !strings.HasPrefix(got, keycloakLogout+"?") {
				t.Errorf("unexpected base in %s", got)
			}
			query := u.Query()
			if len(query) != len(tt.want) {
				t.Errorf("expected %d parameters, got %v", len(tt.want), query)
			}
			for k, v := range tt.want {
				if query.Get(k) != v {
					t.Errorf("expected %s=%s, got %q", k, v, query.Get(k))
				}
			}
		})
	}
}

func newSession(t *testing.T, handlers *session.Handlers) *http.Cookie {
	t.Helper()

	form := url.Values{"id_token": {"id.token.value"}}
	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = req.WithContext(propagation.WithPrincipal(req.Context(), &propagation.InboundPrincipal{Subject: "alice", RawToken: "access"}))
	rr := httptest.NewRecorder()
	handlers.Create().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	var body struct {
		ID      string `json:"id"`
		Subject string `json:"subject"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Subject != "alice" {
		t.Errorf("unexpected subject %q", body.Subject)
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != body.ID || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookies %v", cookies)
	}
	return cookies[0]
}

func TestHandlers_Create_RequiresPrincipal(t *testing.T) {
	handlers := session.NewHandlers(session.NewMemoryStore(), keycloakLogout, "")

	rr := httptest.NewRecorder()
	handlers.Create().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/session", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestHandlers_Logout(t *testing.T) {
	store := session.NewMemoryStore()
	logger := &testutil.StubLogger{}
	handlers := session.NewHandlers(store, keycloakLogout, "http://localhost:8080/", session.WithLogger(logger))
	cookie := newSession(t, handlers)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	handlers.Logout().ServeHTTP(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rr.Code)
	}
	location, err := url.Parse(rr.Header().Get("Location"))
	if err != nil {
		t.Fatalf("invalid Location: %v", err)
	}
	if location.Query().Get("id_token_hint") != "id.token.value" ||
		location.Query().Get("post_logout_redirect_uri") != "http://localhost:8080/" {
		t.Errorf("unexpected provider logout URL %s", location)
	}

	expired := rr.Result().Cookies()
	if len(expired) != 1 || expired[0].Name != session.DefaultCookieName || expired[0].MaxAge >= 0 {
		t.Errorf("expected session cookie to be expired, got %v", expired)
	}
	if store.Len() != 0 {
		t.Error("expected local session to be deleted")
	}
	if !logger.Contains("session: ended session") {
		t.Errorf("expected logout log, got %v", logger.Messages())
	}

	// The same cookie can not log out twice.
	rr = httptest.NewRecorder()
	handlers.Logout().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a finished session, got %d", rr.Code)
	}
}

func TestHandlers_Logout_LocalOnly(t *testing.T) {
	handlers := session.NewHandlers(session.NewMemoryStore(), "", "http://localhost:8080/", session.WithCookieName("SID"))
	cookie := newSession(t, handlers)
	if cookie.Name != "SID" {
		t.Fatalf("expected custom cookie name, got %s", cookie.Name)
	}

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	handlers.Logout().ServeHTTP(rr, req)

	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "http://localhost:8080/" {
		t.Errorf("expected local redirect, got %d %s", rr.Code, rr.Header().Get("Location"))
	}
}

func TestHandlers_Logout_NoSession(t *testing.T) {
	handlers := session.NewHandlers(session.NewMemoryStore(), keycloakLogout, "")

	rr := httptest.NewRecorder()
	handlers.Logout().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/logout", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without cookie, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "stale"})
	rr = httptest.NewRecorder()
	handlers.Logout().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown session, got %d", rr.Code)
	}
	if cookies := rr.Result().Cookies(); len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("expected stale cookie to be expired, got %v", cookies)
	}
}
