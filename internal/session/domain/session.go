package domain

import "time"

// AuthMethod is the verification path that produced a session.
type AuthMethod string

const (
	MethodLocal     AuthMethod = "local"
	MethodDirectory AuthMethod = "directory"
)

// PendingAuthentication holds a login attempt between first-factor success and
// code confirmation. At most one exists per session id, and never alongside an
// AuthenticatedSession.
type PendingAuthentication struct {
	SessionID   string
	UserID      string
	ChallengeID string
	CreatedAt   time.Time
}

// AuthenticatedSession exists only when every required factor passed.
type AuthenticatedSession struct {
	SessionID string
	UserID    string
	Method    AuthMethod
	CreatedAt time.Time
	ExpiresAt time.Time
}
