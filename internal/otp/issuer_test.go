package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingSender struct {
	mu    sync.Mutex
	phone string
	code  string
	err   error
}

func (s *recordingSender) SendCode(ctx context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phone = phone
	s.code = code
	return s.err
}

func TestIssuer_IssueStoresAndSends(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sender := &recordingSender{}
	iss := NewIssuer(store, sender, 5*time.Minute, 5, nil)

	ch, err := iss.Issue(ctx, "user-1", "01012345678")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if ch.ID == "" {
		t.Fatal("challenge id is empty")
	}
	if ch.AttemptsLeft != 5 {
		t.Errorf("AttemptsLeft = %d, want 5", ch.AttemptsLeft)
	}
	if !ch.ExpiresAt.After(time.Now()) {
		t.Error("ExpiresAt should be in the future")
	}
	if sender.phone != "01012345678" {
		t.Errorf("sent phone = %q, want the user's phone", sender.phone)
	}
	if len(sender.code) != 6 {
		t.Errorf("sent code %q, want 6 digits", sender.code)
	}
	if ch.CodeHash != HashCode(sender.code) {
		t.Error("stored hash does not match the dispatched code")
	}

	if got := iss.Validate(ctx, ch.ID, sender.code); got != StatusSuccess {
		t.Fatalf("Validate = %v, want StatusSuccess", got)
	}
}

func TestIssuer_SendFailureKeepsChallenge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sender := &recordingSender{err: errors.New("sms gateway down")}
	iss := NewIssuer(store, sender, 5*time.Minute, 5, nil)

	ch, err := iss.Issue(ctx, "user-1", "01012345678")
	if err != nil {
		t.Fatalf("Issue should not fail on delivery errors: %v", err)
	}
	if got := iss.Validate(ctx, ch.ID, sender.code); got != StatusSuccess {
		t.Fatalf("Validate = %v, want StatusSuccess; challenge must survive a failed send", got)
	}
}

func TestIssuer_NilSender(t *testing.T) {
	ctx := context.Background()
	iss := NewIssuer(NewMemoryStore(), nil, 5*time.Minute, 5, nil)
	if _, err := iss.Issue(ctx, "user-1", "01012345678"); err != nil {
		t.Fatalf("Issue with nil sender: %v", err)
	}
}

func TestIssuer_DevStoreExposesCode(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	dev := NewDevStore()
	iss := NewIssuer(store, nil, 5*time.Minute, 5, dev)

	ch, err := iss.Issue(ctx, "user-1", "01012345678")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	code, ok := dev.Get(ctx, ch.ID)
	if !ok {
		t.Fatal("dev store should hold the issued code")
	}
	if got := iss.Validate(ctx, ch.ID, code); got != StatusSuccess {
		t.Fatalf("Validate with dev code = %v, want StatusSuccess", got)
	}
}

func TestDevStore_Expiry(t *testing.T) {
	ctx := context.Background()
	dev := NewDevStore()
	dev.Put(ctx, "ch-1", "123456", time.Now().Add(time.Minute))
	dev.nowF = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }
	if _, ok := dev.Get(ctx, "ch-1"); ok {
		t.Fatal("expired dev code should not be returned")
	}
}

func TestIssuer_Discard(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sender := &recordingSender{}
	iss := NewIssuer(store, sender, 5*time.Minute, 5, nil)

	ch, err := iss.Issue(ctx, "user-1", "01012345678")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	iss.Discard(ctx, ch.ID)
	if got := iss.Validate(ctx, ch.ID, sender.code); got != StatusNotFound {
		t.Fatalf("Validate after Discard = %v, want StatusNotFound", got)
	}
}
