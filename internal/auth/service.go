// Package auth implements the authentication orchestrator: verifier strategy
// dispatch by deployment mode, the pending/authenticated session state
// machine, and the one-time-code second factor.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"crm-auth-service/internal/audit"
	auditdomain "crm-auth-service/internal/audit/domain"
	"crm-auth-service/internal/directory"
	"crm-auth-service/internal/otp"
	"crm-auth-service/internal/session"
	sessiondomain "crm-auth-service/internal/session/domain"
	"crm-auth-service/internal/telemetry"
	telemetrydomain "crm-auth-service/internal/telemetry/domain"
	telemetryotel "crm-auth-service/internal/telemetry/otel"
	userdomain "crm-auth-service/internal/user/domain"
)

// Mode selects the deployment's verification path.
type Mode string

const (
	// ModeLocal verifies against the local user store only.
	ModeLocal Mode = "local"
	// ModeDirectory prefers the enterprise directory; an explicit request for
	// local verification is honored, but a failed path never falls back to the
	// other one.
	ModeDirectory Mode = "directory"
	// ModeOTP verifies locally and then requires an SMS one-time code.
	ModeOTP Mode = "otp"
)

// Sentinel errors for the auth service; the handler maps them to HTTP statuses.
// Credential rejections share one message so callers cannot probe for
// registered usernames.
var (
	ErrInvalidCredentials        = errors.New("invalid username or password")
	ErrLoginInProgress           = errors.New("login already in progress for this session")
	ErrSessionNotFound           = errors.New("session expired, log in again")
	ErrNoPendingChallenge        = errors.New("no active verification code for this session")
	ErrChallengeExpired          = errors.New("verification code expired")
	ErrChallengeAttemptsExceeded = errors.New("too many incorrect codes")
	ErrInvalidCode               = errors.New("incorrect verification code")
	ErrInternal                  = errors.New("authentication error")
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	UpdateAttributes(ctx context.Context, id, department, position string) error
}

// LoginResult is the outcome of Login, ConfirmOTP, or ResendOTP.
// When RequiresOTP is set the login is pending: only MaskedPhone and the user
// fields are meaningful, and the caller must confirm the code next.
type LoginResult struct {
	UserID      string
	Username    string
	Method      sessiondomain.AuthMethod
	RequiresOTP bool
	MaskedPhone string
	Department  string
	Position    string
	ExpiresAt   time.Time
}

// SessionInfo describes a live authenticated session for introspection.
type SessionInfo struct {
	UserID     string
	Username   string
	Department string
	Position   string
	Method     sessiondomain.AuthMethod
	ExpiresAt  time.Time
}

// Service is the authentication orchestrator.
type Service struct {
	mode      Mode
	users     UserRepo
	local     Verifier
	directory Verifier
	issuer    *otp.Issuer
	sessions  *session.Manager
	dev       *otp.DevStore
	audit     audit.AuditLogger
	events    telemetry.EventEmitter
}

// NewService returns a Service. directoryVerifier may be nil unless mode is
// ModeDirectory; dev may be nil (dev code retrieval disabled); auditLog and
// events may be nil.
func NewService(
	mode Mode,
	users UserRepo,
	local Verifier,
	directoryVerifier Verifier,
	issuer *otp.Issuer,
	sessions *session.Manager,
	dev *otp.DevStore,
	auditLog audit.AuditLogger,
	events telemetry.EventEmitter,
) *Service {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &Service{
		mode:      mode,
		users:     users,
		local:     local,
		directory: directoryVerifier,
		issuer:    issuer,
		sessions:  sessions,
		dev:       dev,
		audit:     auditLog,
		events:    events,
	}
}

// Login runs the first factor for the deployment mode and either finalizes the
// session or places it in the pending state awaiting code confirmation.
// requestedMode is honored only in ModeDirectory deployments, where "local" or
// "database" selects the local verifier; a failed verifier never falls back to
// the other one.
func (s *Service) Login(ctx context.Context, sessionID, username, password, requestedMode string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		s.record(ctx, "", username, sessionID, auditdomain.ActionLoginFailure, "", nil)
		return nil, ErrInvalidCredentials
	}

	verifier, method := s.pickVerifier(requestedMode)
	res, err := verifier.Verify(ctx, username, password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			s.record(ctx, "", username, sessionID, auditdomain.ActionLoginFailure, string(method), nil)
			return nil, ErrInvalidCredentials
		case errors.Is(err, directory.ErrUnavailable):
			// Treated as a verification failure, not a fatal error; the caller
			// sees the same generic rejection.
			log.Printf("auth: directory unavailable during login for session %s: %v", sessionID, err)
			s.record(ctx, "", username, sessionID, auditdomain.ActionLoginError, string(method), map[string]string{"reason": "directory_unavailable"})
			return nil, ErrInvalidCredentials
		default:
			log.Printf("auth: login failed unexpectedly for session %s: %v", sessionID, err)
			s.record(ctx, "", username, sessionID, auditdomain.ActionLoginError, string(method), nil)
			return nil, ErrInternal
		}
	}

	u := res.User
	if res.Profile != nil {
		if err := s.syncAttributes(ctx, u, res.Profile); err != nil {
			log.Printf("auth: attribute sync failed for user %s: %v", u.ID, err)
			s.record(ctx, u.ID, u.Username, sessionID, auditdomain.ActionLoginError, string(method), nil)
			return nil, ErrInternal
		}
	}

	if s.mode == ModeOTP {
		return s.beginOTP(ctx, sessionID, u)
	}

	sess := s.sessions.Finalize(ctx, sessionID, u.ID, method)
	s.record(ctx, u.ID, u.Username, sessionID, auditdomain.ActionLoginSuccess, string(method), nil)
	return &LoginResult{
		UserID:     u.ID,
		Username:   u.Username,
		Method:     method,
		Department: u.Department,
		Position:   u.Position,
		ExpiresAt:  sess.ExpiresAt,
	}, nil
}

// ConfirmOTP validates the submitted code for the session's pending login and
// finalizes the session on success. A discarded challenge (expired or
// exhausted) leaves the pending entry behind; a retry then reports
// ErrNoPendingChallenge rather than a raw lookup failure.
func (s *Service) ConfirmOTP(ctx context.Context, sessionID, code string) (*LoginResult, error) {
	p, err := s.pending(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch s.issuer.Validate(ctx, p.ChallengeID, code) {
	case otp.StatusSuccess:
	case otp.StatusInvalidCode:
		s.record(ctx, p.UserID, "", sessionID, auditdomain.ActionOTPFailed, string(ModeOTP), map[string]string{"reason": "invalid_code"})
		return nil, ErrInvalidCode
	case otp.StatusExpired:
		s.record(ctx, p.UserID, "", sessionID, auditdomain.ActionOTPFailed, string(ModeOTP), map[string]string{"reason": "expired"})
		return nil, ErrChallengeExpired
	case otp.StatusAttemptsExceeded:
		s.record(ctx, p.UserID, "", sessionID, auditdomain.ActionOTPFailed, string(ModeOTP), map[string]string{"reason": "attempts_exceeded"})
		return nil, ErrChallengeAttemptsExceeded
	default:
		return nil, ErrNoPendingChallenge
	}

	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil || u == nil {
		log.Printf("auth: pending user %s lookup failed for session %s: %v", p.UserID, sessionID, err)
		s.record(ctx, p.UserID, "", sessionID, auditdomain.ActionLoginError, string(ModeOTP), nil)
		return nil, ErrInternal
	}

	sess := s.sessions.Finalize(ctx, sessionID, u.ID, sessiondomain.MethodLocal)
	s.record(ctx, u.ID, u.Username, sessionID, auditdomain.ActionOTPConfirmed, string(ModeOTP), nil)
	return &LoginResult{
		UserID:     u.ID,
		Username:   u.Username,
		Method:     sessiondomain.MethodLocal,
		Department: u.Department,
		Position:   u.Position,
		ExpiresAt:  sess.ExpiresAt,
	}, nil
}

// ResendOTP issues a fresh challenge for the session's pending login and
// discards the previous one. The swap is atomic against concurrent
// confirmation and logout.
func (s *Service) ResendOTP(ctx context.Context, sessionID string) (*LoginResult, error) {
	p, err := s.pending(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil || u == nil || u.Phone == "" {
		log.Printf("auth: resend failed for session %s, user %s: %v", sessionID, p.UserID, err)
		s.record(ctx, p.UserID, "", sessionID, auditdomain.ActionLoginError, string(ModeOTP), nil)
		return nil, ErrInternal
	}

	ch, err := s.issuer.Issue(ctx, u.ID, u.Phone)
	if err != nil {
		log.Printf("auth: challenge issue failed for session %s: %v", sessionID, err)
		s.record(ctx, u.ID, u.Username, sessionID, auditdomain.ActionLoginError, string(ModeOTP), nil)
		return nil, ErrInternal
	}
	old, ok := s.sessions.SwapChallenge(ctx, sessionID, ch.ID)
	if !ok {
		// Pending state vanished between GetPending and the swap (logout or
		// confirmation won the race). The fresh challenge must not survive.
		s.issuer.Discard(ctx, ch.ID)
		return nil, ErrSessionNotFound
	}
	s.issuer.Discard(ctx, old)

	s.record(ctx, u.ID, u.Username, sessionID, auditdomain.ActionOTPIssued, string(ModeOTP), map[string]string{"resend": "true"})
	return &LoginResult{
		UserID:      u.ID,
		Username:    u.Username,
		RequiresOTP: true,
		MaskedPhone: otp.MaskPhone(u.Phone),
	}, nil
}

// Logout removes both pending and authenticated state for the session and
// discards any outstanding challenge. Idempotent; never errors.
func (s *Service) Logout(ctx context.Context, sessionID string) {
	if chID := s.sessions.Invalidate(ctx, sessionID); chID != "" {
		s.issuer.Discard(ctx, chID)
	}
	s.record(ctx, "", "", sessionID, auditdomain.ActionLogout, "", nil)
}

// Session returns the live authenticated session's identity, or
// ErrSessionNotFound when the session is absent or expired.
func (s *Service) Session(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess := s.sessions.Get(ctx, sessionID)
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		log.Printf("auth: session user %s lookup failed: %v", sess.UserID, err)
		return nil, ErrInternal
	}
	if u == nil {
		return nil, ErrSessionNotFound
	}
	return &SessionInfo{
		UserID:     u.ID,
		Username:   u.Username,
		Department: u.Department,
		Position:   u.Position,
		Method:     sess.Method,
		ExpiresAt:  sess.ExpiresAt,
	}, nil
}

// DevCode returns the plain code for the session's pending challenge. Only
// available when the dev code store is wired (never in production).
func (s *Service) DevCode(ctx context.Context, sessionID string) (string, error) {
	if s.dev == nil {
		return "", ErrNoPendingChallenge
	}
	p, err := s.pending(ctx, sessionID)
	if err != nil {
		return "", err
	}
	code, ok := s.dev.Get(ctx, p.ChallengeID)
	if !ok {
		return "", ErrNoPendingChallenge
	}
	return code, nil
}

// pending resolves the session's pending entry. An already-authenticated
// session reports ErrNoPendingChallenge (there is a session, just nothing to
// confirm); a session with no state at all reports ErrSessionNotFound.
func (s *Service) pending(ctx context.Context, sessionID string) (*sessiondomain.PendingAuthentication, error) {
	if p := s.sessions.GetPending(ctx, sessionID); p != nil {
		return p, nil
	}
	if s.sessions.Get(ctx, sessionID) != nil {
		return nil, ErrNoPendingChallenge
	}
	return nil, ErrSessionNotFound
}

// pickVerifier resolves the verifier and resulting auth method for the
// deployment mode and the caller's requested mode.
func (s *Service) pickVerifier(requested string) (Verifier, sessiondomain.AuthMethod) {
	if s.mode == ModeDirectory {
		switch strings.ToLower(strings.TrimSpace(requested)) {
		case "local", "database":
			return s.local, sessiondomain.MethodLocal
		default:
			return s.directory, sessiondomain.MethodDirectory
		}
	}
	return s.local, sessiondomain.MethodLocal
}

// beginOTP issues a challenge for the verified user and moves the session into
// the pending state. Challenge issuance (including SMS dispatch) happens
// before BeginPending so no I/O runs inside the session store.
func (s *Service) beginOTP(ctx context.Context, sessionID string, u *userdomain.User) (*LoginResult, error) {
	if u.Phone == "" {
		log.Printf("auth: user %s has no phone registered for code delivery", u.ID)
		s.record(ctx, u.ID, u.Username, sessionID, auditdomain.ActionLoginError, string(ModeOTP), map[string]string{"reason": "no_phone"})
		return nil, ErrInternal
	}
	ch, err := s.issuer.Issue(ctx, u.ID, u.Phone)
	if err != nil {
		log.Printf("auth: challenge issue failed for session %s: %v", sessionID, err)
		s.record(ctx, u.ID, u.Username, sessionID, auditdomain.ActionLoginError, string(ModeOTP), nil)
		return nil, ErrInternal
	}
	if err := s.sessions.BeginPending(ctx, sessionID, u.ID, ch.ID); err != nil {
		s.issuer.Discard(ctx, ch.ID)
		if errors.Is(err, session.ErrAlreadyActive) {
			return nil, ErrLoginInProgress
		}
		log.Printf("auth: begin pending failed for session %s: %v", sessionID, err)
		return nil, ErrInternal
	}

	masked := otp.MaskPhone(u.Phone)
	s.record(ctx, u.ID, u.Username, sessionID, auditdomain.ActionOTPIssued, string(ModeOTP), map[string]string{"phone": masked})
	return &LoginResult{
		UserID:      u.ID,
		Username:    u.Username,
		RequiresOTP: true,
		MaskedPhone: masked,
	}, nil
}

// syncAttributes persists fresher directory attributes onto the cached record
// and updates the in-memory copy.
func (s *Service) syncAttributes(ctx context.Context, u *userdomain.User, p *directory.Profile) error {
	if p.Department == u.Department && p.Position == u.Position {
		return nil
	}
	if err := s.users.UpdateAttributes(ctx, u.ID, p.Department, p.Position); err != nil {
		return err
	}
	u.Department = p.Department
	u.Position = p.Position
	return nil
}

// record writes the outcome to the audit trail and emits a telemetry event.
// Both sinks are best-effort.
func (s *Service) record(ctx context.Context, userID, username, sessionID, action, source string, meta map[string]string) {
	var metaJSON []byte
	if len(meta) > 0 {
		metaJSON, _ = json.Marshal(meta)
	}
	s.audit.LogEvent(ctx, userID, username, action, "auth", string(metaJSON))
	if s.events != nil {
		telemetryotel.EmitAsync(s.events, ctx, &telemetrydomain.AuthEvent{
			UserID:    userID,
			Username:  username,
			SessionID: sessionID,
			EventType: action,
			Source:    source,
			Metadata:  metaJSON,
			CreatedAt: time.Now().UTC(),
		})
	}
}
