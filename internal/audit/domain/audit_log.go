package domain

import "time"

// AuditLog represents one recorded authentication event.
type AuditLog struct {
	ID        string
	UserID    string
	Username  string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

// Audit actions written by the auth service.
const (
	ActionLoginSuccess = "login_success"
	ActionLoginFailure = "login_failure"
	ActionLoginError   = "login_error"
	ActionOTPIssued    = "otp_issued"
	ActionOTPConfirmed = "otp_confirmed"
	ActionOTPFailed    = "otp_failed"
	ActionLogout       = "logout"
)
