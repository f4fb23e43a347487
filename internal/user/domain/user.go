package domain

import (
	"errors"
	"time"
)

// User is the authenticatable identity record: credentials plus profile attributes.
type User struct {
	ID           string
	Username     string
	PasswordHash string // empty for directory-only accounts
	Phone        string // optional; required for OTP login
	Department   string
	Position     string
	Source       Source
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Source tags where the account's credentials live.
type Source string

const (
	SourceLocal     Source = "local"
	SourceDirectory Source = "directory"
)

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.Source == "" {
		u.Source = SourceLocal
	}
	if u.Source != SourceLocal && u.Source != SourceDirectory {
		return errors.New("source must be local or directory")
	}
	return nil
}
