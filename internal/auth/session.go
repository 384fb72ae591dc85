// Package auth guards the admin surface: an opaque-token session registry
// and the single admin credential.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"paylog/internal/cache"
)

const (
	// CookieName carries the session token.
	CookieName = "admin_session"

	DefaultSessionTTL  = 8 * time.Hour
	DefaultMaxSessions = 1024

	tokenBytes = 32
)

// SessionStore is an in-process registry of session tokens. Sessions expire
// after ttl without use; every successful Valid call extends them.
type SessionStore struct {
	sessions *cache.LRUCache[time.Time]
	ttl      time.Duration
}

// NewSessionStore creates a registry. Non-positive arguments select the
// defaults.
func NewSessionStore(ttl time.Duration, maxSessions int, opts ...cache.Option) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	opts = append([]cache.Option{cache.WithSlidingExpiry()}, opts...)
	return &SessionStore{
		sessions: cache.NewLRUCache[time.Time](maxSessions, ttl, opts...),
		ttl:      ttl,
	}
}

// Create registers a new random token.
func (s *SessionStore) Create() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	token := hex.EncodeToString(b)
	s.sessions.Set(token, time.Now())
	return token, nil
}

// Valid reports whether token names a live session and refreshes it.
func (s *SessionStore) Valid(token string) bool {
	if len(token) != 2*tokenBytes {
		return false
	}
	_, ok := s.sessions.Get(token)
	return ok
}

func (s *SessionStore) Delete(token string) {
	s.sessions.Delete(token)
}

// CleanExpired drops expired sessions and returns how many were removed.
func (s *SessionStore) CleanExpired() int {
	return s.sessions.CleanExpired()
}

// TTL is the idle lifetime of a session.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Len returns the number of tracked sessions, including expired ones not
// yet swept.
func (s *SessionStore) Len() int {
	return s.sessions.Size()
}
