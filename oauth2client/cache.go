package oauth2client

import "sync"

// TokenCache holds the most recent AuthorizedClient per registration id.
//
// The cache does not check expiry; callers decide whether a cached token is
// still usable. There is no eviction beyond overwrite and no background sweeper.
// TokenCache is safe for concurrent use.
type TokenCache struct {
	mu      sync.RWMutex
	clients map[string]AuthorizedClient
}

// NewTokenCache creates an empty cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{clients: make(map[string]AuthorizedClient)}
}

// Get returns the cached client for registrationID, if any.
func (c *TokenCache) Get(registrationID string) (AuthorizedClient, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	client, ok := c.clients[registrationID]
	return client, ok
}

// Put stores client for registrationID, replacing any previous entry.
func (c *TokenCache) Put(registrationID string, client AuthorizedClient) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clients == nil {
		c.clients = make(map[string]AuthorizedClient)
	}
	c.clients[registrationID] = client
}

// Len returns the number of cached clients.
func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clients)
}

// Clear drops every entry. It is called on shutdown.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients = make(map[string]AuthorizedClient)
}
