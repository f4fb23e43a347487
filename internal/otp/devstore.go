package otp

import (
	"context"
	"sync"
	"time"
)

// DevStore holds plain codes by challenge id for dev-only retrieval
// (GET /dev/otp). Only wired when dev OTP mode is enabled; never in production.
type DevStore struct {
	mu   sync.RWMutex
	m    map[string]devEntry
	nowF func() time.Time
}

type devEntry struct {
	code      string
	expiresAt time.Time
}

// NewDevStore returns a new in-memory dev code store.
func NewDevStore() *DevStore {
	return &DevStore{
		m:    make(map[string]devEntry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores code for challengeID until expiresAt.
func (s *DevStore) Put(ctx context.Context, challengeID, code string, expiresAt time.Time) {
	s.mu.Lock()
	s.m[challengeID] = devEntry{code: code, expiresAt: expiresAt}
	s.mu.Unlock()
}

// Get returns the code for challengeID if present and not expired.
func (s *DevStore) Get(ctx context.Context, challengeID string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[challengeID]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, challengeID)
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}
