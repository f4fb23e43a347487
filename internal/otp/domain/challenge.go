package domain

import "time"

// Challenge represents a pending one-time-code challenge. The plain code is never
// stored; only its hash. A challenge is consumed by one successful validation or
// discarded on expiry / attempt exhaustion.
type Challenge struct {
	ID           string
	UserID       string
	Phone        string
	CodeHash     string
	AttemptsLeft int
	ExpiresAt    time.Time
	CreatedAt    time.Time
}
