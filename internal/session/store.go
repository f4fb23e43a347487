// Package session holds per-session login state: either a pending first-factor
// success awaiting code confirmation, or a fully authenticated session.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"crm-auth-service/internal/session/domain"
)

// ErrAlreadyActive is returned by BeginPending when the session already has a
// pending or authenticated entry. A session cannot be mid-authentication twice.
var ErrAlreadyActive = errors.New("session: login already in progress or completed")

type entry struct {
	pending *domain.PendingAuthentication
	auth    *domain.AuthenticatedSession
}

// Manager is the in-memory session state store. Every check-and-mutate sequence
// runs under one lock, so concurrent logins, confirmations, and logouts for a
// session id cannot interleave. Callers must keep I/O (directory, SMS, database)
// outside these calls. Expiry is checked lazily; Sweep reclaims memory.
type Manager struct {
	mu         sync.Mutex
	m          map[string]*entry
	authTTL    time.Duration
	pendingTTL time.Duration
	nowF       func() time.Time
}

// NewManager returns a Manager. authTTL bounds authenticated sessions;
// pendingTTL bounds how long a pending entry may await confirmation.
func NewManager(authTTL, pendingTTL time.Duration) *Manager {
	return &Manager{
		m:          make(map[string]*entry),
		authTTL:    authTTL,
		pendingTTL: pendingTTL,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// BeginPending associates the session with a pending authentication awaiting
// code confirmation. Fails with ErrAlreadyActive if a live pending or
// authenticated entry already exists for the session id.
func (s *Manager) BeginPending(ctx context.Context, sessionID, userID, challengeID string) error {
	now := s.nowF()
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.m[sessionID]
	if e != nil && s.live(e, now) {
		return ErrAlreadyActive
	}
	s.m[sessionID] = &entry{
		pending: &domain.PendingAuthentication{
			SessionID:   sessionID,
			UserID:      userID,
			ChallengeID: challengeID,
			CreatedAt:   now,
		},
	}
	return nil
}

// GetPending returns the pending authentication for the session, or nil if the
// session has none (never started, already finalized, or expired).
func (s *Manager) GetPending(ctx context.Context, sessionID string) *domain.PendingAuthentication {
	now := s.nowF()
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.m[sessionID]
	if e == nil || !s.live(e, now) {
		delete(s.m, sessionID)
		return nil
	}
	if e.pending == nil {
		return nil
	}
	p := *e.pending
	return &p
}

// SwapChallenge atomically points the session's pending entry at a new
// challenge (code resend). Returns the replaced challenge id so the caller can
// discard it, and ok=false when the session has no live pending entry.
func (s *Manager) SwapChallenge(ctx context.Context, sessionID, challengeID string) (old string, ok bool) {
	now := s.nowF()
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.m[sessionID]
	if e == nil || e.pending == nil || !s.live(e, now) {
		return "", false
	}
	old = e.pending.ChallengeID
	e.pending.ChallengeID = challengeID
	return old, true
}

// Finalize replaces any pending state with an authenticated session. This is
// the only path that produces an authenticated session.
func (s *Manager) Finalize(ctx context.Context, sessionID, userID string, method domain.AuthMethod) *domain.AuthenticatedSession {
	now := s.nowF()
	auth := &domain.AuthenticatedSession{
		SessionID: sessionID,
		UserID:    userID,
		Method:    method,
		CreatedAt: now,
		ExpiresAt: now.Add(s.authTTL),
	}
	s.mu.Lock()
	s.m[sessionID] = &entry{auth: auth}
	s.mu.Unlock()
	a := *auth
	return &a
}

// Get returns the live authenticated session for the session id, or nil.
func (s *Manager) Get(ctx context.Context, sessionID string) *domain.AuthenticatedSession {
	now := s.nowF()
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.m[sessionID]
	if e == nil || e.auth == nil {
		return nil
	}
	if !e.auth.ExpiresAt.After(now) {
		delete(s.m, sessionID)
		return nil
	}
	a := *e.auth
	return &a
}

// Invalidate removes both pending and authenticated state for the session
// (logout). Idempotent: invalidating an unknown session succeeds silently.
// Returns the pending challenge id, if any, so the caller can discard it.
func (s *Manager) Invalidate(ctx context.Context, sessionID string) (challengeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.m[sessionID]; e != nil && e.pending != nil {
		challengeID = e.pending.ChallengeID
	}
	delete(s.m, sessionID)
	return challengeID
}

// Sweep drops expired entries. Correctness does not depend on it (expiry is
// checked lazily); it only reclaims memory. Returns the number removed.
func (s *Manager) Sweep(ctx context.Context) int {
	now := s.nowF()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.m {
		if !s.live(e, now) {
			delete(s.m, id)
			removed++
		}
	}
	return removed
}

// live reports whether the entry still counts, under s.mu.
func (s *Manager) live(e *entry, now time.Time) bool {
	if e.auth != nil {
		return e.auth.ExpiresAt.After(now)
	}
	if e.pending != nil {
		return e.pending.CreatedAt.Add(s.pendingTTL).After(now)
	}
	return false
}
