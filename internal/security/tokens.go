package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a session token is malformed, expired, or has a bad signature.
	ErrInvalidToken = errors.New("invalid session token")
)

// SessionClaims holds JWT claims for the session token handed to the HTTP layer.
// The token is only a signed reference: the session store remains authoritative,
// and a valid token for an invalidated session must not authenticate.
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID  string `json:"session_id"`
	AuthMethod string `json:"auth_method"`
}

// SessionTokenProvider issues and validates HS256 session tokens.
type SessionTokenProvider struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
}

// NewSessionTokenProvider returns a provider signing with the given HMAC secret.
// lifetime bounds the token itself; the server-side session carries its own expiry.
func NewSessionTokenProvider(secret []byte, issuer string, lifetime time.Duration) *SessionTokenProvider {
	return &SessionTokenProvider{secret: secret, issuer: issuer, lifetime: lifetime}
}

// Issue signs a token referencing the given session for userID. Returns the token
// string and its expiration time.
func (p *SessionTokenProvider) Issue(sessionID, userID, authMethod string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(p.lifetime)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID:  sessionID,
		AuthMethod: authMethod,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate parses and verifies the token and returns the referenced session id and user id.
// Returns ErrInvalidToken for any malformed, expired, or wrongly signed token.
func (p *SessionTokenProvider) Validate(token string) (sessionID, userID string, err error) {
	var claims SessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	}, jwt.WithIssuer(p.issuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.SessionID == "" {
		return "", "", ErrInvalidToken
	}
	return claims.SessionID, claims.Subject, nil
}
