// Package handler exposes the authentication service over HTTP. The session
// cookie carries a signed token referencing the server-side session; the
// session store stays authoritative, so a token for an invalidated session
// does not authenticate.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"crm-auth-service/internal/auth"
	"crm-auth-service/internal/security"
)

// SessionCookie is the cookie holding the signed session token.
const SessionCookie = "crm_session"

// Service is the slice of the auth service the HTTP layer consumes.
type Service interface {
	Login(ctx context.Context, sessionID, username, password, mode string) (*auth.LoginResult, error)
	ConfirmOTP(ctx context.Context, sessionID, code string) (*auth.LoginResult, error)
	ResendOTP(ctx context.Context, sessionID string) (*auth.LoginResult, error)
	Logout(ctx context.Context, sessionID string)
	Session(ctx context.Context, sessionID string) (*auth.SessionInfo, error)
	DevCode(ctx context.Context, sessionID string) (string, error)
}

// HTTPHandler holds the handlers for the /auth routes.
type HTTPHandler struct {
	svc           Service
	tokens        *security.SessionTokenProvider
	secureCookies bool
}

// NewHTTPHandler returns an HTTPHandler. secureCookies marks the session
// cookie Secure (production deployments behind TLS).
func NewHTTPHandler(svc Service, tokens *security.SessionTokenProvider, secureCookies bool) *HTTPHandler {
	return &HTTPHandler{svc: svc, tokens: tokens, secureCookies: secureCookies}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Mode     string `json:"mode"`
}

type confirmRequest struct {
	Code string `json:"code" binding:"required"`
}

// Login handles POST /auth/login.
func (h *HTTPHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sessionID := h.resumeOrNewSession(c)
	res, err := h.svc.Login(c.Request.Context(), sessionID, req.Username, req.Password, req.Mode)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if res.RequiresOTP {
		h.setSessionCookie(c, sessionID, res.UserID, "pending")
		c.JSON(http.StatusAccepted, gin.H{
			"otp_required": true,
			"masked_phone": res.MaskedPhone,
			"message":      "verification code sent",
		})
		return
	}
	h.setSessionCookie(c, sessionID, res.UserID, string(res.Method))
	c.JSON(http.StatusOK, loginBody(res))
}

// VerifyOTP handles POST /auth/verify-otp.
func (h *HTTPHandler) VerifyOTP(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	sessionID, ok := h.sessionID(c)
	if !ok {
		h.writeError(c, auth.ErrSessionNotFound)
		return
	}
	res, err := h.svc.ConfirmOTP(c.Request.Context(), sessionID, req.Code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	// Rotate the cookie: the session is no longer pending.
	h.setSessionCookie(c, sessionID, res.UserID, string(res.Method))
	c.JSON(http.StatusOK, loginBody(res))
}

// ResendOTP handles POST /auth/resend-otp.
func (h *HTTPHandler) ResendOTP(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		h.writeError(c, auth.ErrSessionNotFound)
		return
	}
	res, err := h.svc.ResendOTP(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"otp_required": true,
		"masked_phone": res.MaskedPhone,
		"message":      "verification code sent",
	})
}

// Logout handles POST /auth/logout. Always succeeds.
func (h *HTTPHandler) Logout(c *gin.Context) {
	if sessionID, ok := h.sessionID(c); ok {
		h.svc.Logout(c.Request.Context(), sessionID)
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me handles GET /auth/me.
func (h *HTTPHandler) Me(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		h.writeError(c, auth.ErrSessionNotFound)
		return
	}
	info, err := h.svc.Session(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"username":   info.Username,
		"department": info.Department,
		"position":   info.Position,
		"method":     info.Method,
		"expires_at": info.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// DevOTP handles GET /dev/otp. Only routed when dev OTP mode is enabled.
func (h *HTTPHandler) DevOTP(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		h.writeError(c, auth.ErrSessionNotFound)
		return
	}
	code, err := h.svc.DevCode(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}

// sessionID resolves the session id from a valid session cookie.
func (h *HTTPHandler) sessionID(c *gin.Context) (string, bool) {
	raw, err := c.Cookie(SessionCookie)
	if err != nil || raw == "" {
		return "", false
	}
	sessionID, _, err := h.tokens.Validate(raw)
	if err != nil {
		return "", false
	}
	return sessionID, true
}

// resumeOrNewSession reuses the caller's session id when the cookie is valid,
// otherwise starts a fresh one. Reuse lets the conflict check in the service
// catch a login already in progress for this browser session.
func (h *HTTPHandler) resumeOrNewSession(c *gin.Context) string {
	if sessionID, ok := h.sessionID(c); ok {
		return sessionID
	}
	return uuid.New().String()
}

func (h *HTTPHandler) setSessionCookie(c *gin.Context, sessionID, userID, method string) {
	token, expiresAt, err := h.tokens.Issue(sessionID, userID, method)
	if err != nil {
		// The login itself succeeded; without a cookie the client just cannot
		// resume, which surfaces as a session-expired error on the next call.
		return
	}
	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetCookie(SessionCookie, token, maxAge, "/", "", h.secureCookies, true)
}

func (h *HTTPHandler) clearSessionCookie(c *gin.Context) {
	c.SetCookie(SessionCookie, "", -1, "/", "", h.secureCookies, true)
}

// writeError maps service sentinels to HTTP statuses. Anything unexpected is
// reported with the uniform authentication-error message.
func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidCode),
		errors.Is(err, auth.ErrSessionNotFound):
		status = http.StatusUnauthorized
	case errors.Is(err, auth.ErrLoginInProgress),
		errors.Is(err, auth.ErrNoPendingChallenge):
		status = http.StatusConflict
	case errors.Is(err, auth.ErrChallengeExpired):
		status = http.StatusGone
	case errors.Is(err, auth.ErrChallengeAttemptsExceeded):
		status = http.StatusTooManyRequests
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = auth.ErrInternal.Error()
	}
	c.JSON(status, gin.H{"error": msg})
}

func loginBody(res *auth.LoginResult) gin.H {
	return gin.H{
		"username":   res.Username,
		"method":     res.Method,
		"department": res.Department,
		"position":   res.Position,
		"expires_at": res.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
