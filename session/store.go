package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL bounds how long an idle session stays in a MemoryStore.
const DefaultTTL = 8 * time.Hour

// ErrEmptySubject is returned when a session is created without a subject.
var ErrEmptySubject = errors.New("session: subject is required")

// Session is the relay's local login state for one browser.
type Session struct {
	ID        string
	Subject   string
	IDToken   string // ID token of the completed login, sent as id_token_hint on logout
	CreatedAt time.Time
}

// Store keeps sessions. Implementations must be safe for concurrent use.
type Store interface {
	Create(subject, idToken string) (*Session, error)
	Get(id string) (*Session, bool)
	Delete(id string)
}

// MemoryStore is an in-process Store. Sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithTTL sets how long a session stays valid after creation.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new session with a random UUID identifier and drops every
// session that has expired.
func (s *MemoryStore) Create(subject, idToken string) (*Session, error) {
	if subject == "" {
		return nil, ErrEmptySubject
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Subject:   subject,
		IDToken:   idToken,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.pruneLocked(sess.CreatedAt)
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	copied := *sess
	return &copied, nil
}

// Get returns a copy of the session. Expired sessions are removed and reported missing.
func (s *MemoryStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if s.expired(sess, s.now()) {
		s.Delete(id)
		return nil, false
	}

	copied := *sess
	return &copied, true
}

func (s *MemoryStore) expired(sess *Session, now time.Time) bool {
	return now.Sub(sess.CreatedAt) >= s.ttl
}

// pruneLocked removes expired sessions. s.mu must be held for writing.
func (s *MemoryStore) pruneLocked(now time.Time) {
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
		}
	}
}

// Delete removes the session. Deleting an unknown id is a no-op.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len reports the number of stored sessions, including expired ones not yet
// collected by Create or Get.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
