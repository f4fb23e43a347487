package otp

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"crm-auth-service/internal/otp/domain"
)

// Sender delivers a one-time code to a phone number. Delivery is best-effort:
// a send failure does not revoke the issued challenge.
type Sender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// Issuer creates challenges and dispatches their codes. Validation is delegated
// to the Store so the attempt accounting stays in one critical section.
type Issuer struct {
	store       Store
	sender      Sender
	ttl         time.Duration
	maxAttempts int
	dev         *DevStore
}

// NewIssuer returns an Issuer. sender may be nil (no delivery, e.g. dev OTP mode);
// dev may be nil (dev OTP retrieval disabled).
func NewIssuer(store Store, sender Sender, ttl time.Duration, maxAttempts int, dev *DevStore) *Issuer {
	return &Issuer{store: store, sender: sender, ttl: ttl, maxAttempts: maxAttempts, dev: dev}
}

// Issue generates a fresh code, stores the challenge, and dispatches the code to
// phone. The plain code never leaves this method except through the Sender and
// the optional dev store. Send failures are logged and do not fail issuance.
func (i *Issuer) Issue(ctx context.Context, userID, phone string) (*domain.Challenge, error) {
	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	ch := &domain.Challenge{
		ID:           uuid.New().String(),
		UserID:       userID,
		Phone:        phone,
		CodeHash:     HashCode(code),
		AttemptsLeft: i.maxAttempts,
		ExpiresAt:    now.Add(i.ttl),
		CreatedAt:    now,
	}
	i.store.Put(ctx, ch)
	if i.dev != nil {
		i.dev.Put(ctx, ch.ID, code, ch.ExpiresAt)
	}
	if i.sender != nil {
		if err := i.sender.SendCode(ctx, phone, code); err != nil {
			log.Printf("otp: code delivery failed for challenge %s: %v", ch.ID, err)
		}
	}
	return ch, nil
}

// Validate checks the submitted code against the challenge with the given id.
func (i *Issuer) Validate(ctx context.Context, id, code string) ValidationStatus {
	return i.store.Validate(ctx, id, code)
}

// Discard removes the challenge if present (e.g. when its pending login is invalidated).
func (i *Issuer) Discard(ctx context.Context, id string) {
	i.store.Delete(ctx, id)
}
