package oauth2client

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestTokenCache_GetPut(t *testing.T) {
	cache := NewTokenCache()

	if _, ok := cache.Get("svc"); ok {
		t.Fatal("empty cache should miss")
	}

	first := AuthorizedClient{RegistrationID: "svc", Token: Token{Value: "first", Expiry: time.Now().Add(time.Hour)}}
	cache.Put("svc", first)

	got, ok := cache.Get("svc")
	if !ok || got.Token.Value != "first" {
		t.Fatalf("expected first token, got %+v (ok=%v)", got, ok)
	}

	// Last write wins, one entry per id.
	cache.Put("svc", AuthorizedClient{RegistrationID: "svc", Token: Token{Value: "second"}})
	got, _ = cache.Get("svc")
	if got.Token.Value != "second" {
		t.Errorf("expected overwrite, got %s", got.Token.Value)
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", cache.Len())
	}
}

func TestTokenCache_DoesNotCheckExpiry(t *testing.T) {
	cache := NewTokenCache()
	cache.Put("svc", AuthorizedClient{Token: Token{Value: "stale", Expiry: time.Now().Add(-time.Hour)}})

	if _, ok := cache.Get("svc"); !ok {
		t.Error("cache should return expired entries; validity is the caller's concern")
	}
}

func TestTokenCache_Clear(t *testing.T) {
	cache := NewTokenCache()
	cache.Put("a", AuthorizedClient{})
	cache.Put("b", AuthorizedClient{})
	cache.Clear()

	if cache.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", cache.Len())
	}
}

func TestTokenCache_ZeroValueUsable(t *testing.T) {
	var cache TokenCache
	cache.Put("svc", AuthorizedClient{Token: Token{Value: "v"}})
	if got, ok := cache.Get("svc"); !ok || got.Token.Value != "v" {
		t.Errorf("zero value cache should accept writes, got %+v", got)
	}
}

func TestTokenCache_Concurrent(t *testing.T) {
	cache := NewTokenCache()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("reg-%d", i%5)
			cache.Put(id, AuthorizedClient{RegistrationID: id, Token: Token{Value: fmt.Sprint(i)}})
		}(i)
		go func(i int) {
			defer wg.Done()
			cache.Get(fmt.Sprintf("reg-%d", i%5))
		}(i)
	}
	wg.Wait()

	if cache.Len() != 5 {
		t.Errorf("expected 5 entries, got %d", cache.Len())
	}
}

func TestToken_Valid(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		token Token
		want  bool
	}{
		{name: "future expiry", token: Token{Value: "v", Expiry: now.Add(time.Second)}, want: true},
		{name: "expiry now", token: Token{Value: "v", Expiry: now}, want: false},
		{name: "past expiry", token: Token{Value: "v", Expiry: now.Add(-time.Second)}, want: false},
		{name: "empty value", token: Token{Expiry: now.Add(time.Hour)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.Valid(now); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToken_AuthorizationHeader(t *testing.T) {
	if got := (Token{Value: "abc"}).AuthorizationHeader(); got != "Bearer abc" {
		t.Errorf("unexpected header %q", got)
	}
}
