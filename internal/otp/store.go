package otp

import (
	"context"
	"sync"
	"time"

	"crm-auth-service/internal/otp/domain"
)

// ValidationStatus is the typed outcome of a code validation.
type ValidationStatus int

const (
	// StatusSuccess: the code matched; the challenge has been consumed.
	StatusSuccess ValidationStatus = iota
	// StatusInvalidCode: the code did not match; one attempt was spent.
	StatusInvalidCode
	// StatusExpired: the challenge's validity window has passed; it has been discarded.
	StatusExpired
	// StatusAttemptsExceeded: no attempts remained; the challenge has been discarded.
	StatusAttemptsExceeded
	// StatusNotFound: no challenge exists for the given id.
	StatusNotFound
)

// Store holds pending challenges. Validate runs its whole check-and-mutate
// sequence atomically per challenge so concurrent guesses cannot both succeed
// against a single remaining attempt.
type Store interface {
	// Put stores the challenge, replacing any previous challenge with the same id.
	Put(ctx context.Context, c *domain.Challenge)
	// Validate checks the submitted code against the stored challenge.
	Validate(ctx context.Context, id, code string) ValidationStatus
	// Delete removes the challenge if present.
	Delete(ctx context.Context, id string)
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.Mutex
	m    map[string]*domain.Challenge
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory challenge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]*domain.Challenge),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores the challenge under its id.
func (s *MemoryStore) Put(ctx context.Context, c *domain.Challenge) {
	cp := *c
	s.mu.Lock()
	s.m[c.ID] = &cp
	s.mu.Unlock()
}

// Validate applies the validation sequence under one critical section:
// unknown id, then expiry, then remaining attempts, then the code comparison.
// A mismatch spends an attempt; a match consumes the challenge.
func (s *MemoryStore) Validate(ctx context.Context, id, code string) ValidationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.m[id]
	if !ok {
		return StatusNotFound
	}
	if !c.ExpiresAt.After(s.nowF()) {
		delete(s.m, id)
		return StatusExpired
	}
	if c.AttemptsLeft <= 0 {
		delete(s.m, id)
		return StatusAttemptsExceeded
	}
	if !CodeEqual(code, c.CodeHash) {
		c.AttemptsLeft--
		return StatusInvalidCode
	}
	delete(s.m, id)
	return StatusSuccess
}

// Delete removes the challenge if present.
func (s *MemoryStore) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
}
