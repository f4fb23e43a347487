package domain

import "time"

// AuthEvent represents one authentication flow event (login attempt, OTP
// challenge, logout) destined for the observability pipeline.
type AuthEvent struct {
	UserID    string
	Username  string
	SessionID string
	EventType string
	Source    string // auth mode that produced the event: local, directory, otp
	Metadata  []byte // JSON
	CreatedAt time.Time
}
