package auth

import (
	"context"
	"errors"
	"fmt"

	"crm-auth-service/internal/directory"
	"crm-auth-service/internal/security"
	userdomain "crm-auth-service/internal/user/domain"
)

// VerifyResult is the outcome of a successful first-factor verification.
// Profile is set only by the directory verifier; it may carry fresher
// department/position than the cached record, which the caller synchronizes.
type VerifyResult struct {
	User    *userdomain.User
	Profile *directory.Profile
}

// Verifier checks a username/password pair against a credential source.
// Expected rejections (unknown user, wrong password) return
// ErrInvalidCredentials; anything else is an unexpected collaborator fault.
type Verifier interface {
	Verify(ctx context.Context, username, password string) (*VerifyResult, error)
}

// UserReader is the minimal user repository needed by the verifiers.
type UserReader interface {
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
}

// LocalVerifier checks credentials against the local user store.
type LocalVerifier struct {
	users  UserReader
	hasher *security.Hasher
}

// NewLocalVerifier returns a Verifier over the local user store.
func NewLocalVerifier(users UserReader, hasher *security.Hasher) *LocalVerifier {
	return &LocalVerifier{users: users, hasher: hasher}
}

// Verify looks up the user by username and compares the password against the
// stored hash. Unknown username and wrong password are indistinguishable to
// the caller.
func (v *LocalVerifier) Verify(ctx context.Context, username, password string) (*VerifyResult, error) {
	u, err := v.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("local verify: %w", err)
	}
	if u == nil || u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := v.hasher.Compare(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &VerifyResult{User: u}, nil
}

// DirectoryVerifier delegates verification to the enterprise directory. The
// local store stays authoritative: a directory success for an account with no
// local record is still rejected.
type DirectoryVerifier struct {
	client directory.Client
	users  UserReader
}

// NewDirectoryVerifier returns a Verifier backed by the directory client.
func NewDirectoryVerifier(client directory.Client, users UserReader) *DirectoryVerifier {
	return &DirectoryVerifier{client: client, users: users}
}

// Verify authenticates against the directory and resolves the local record.
// Directory rejection maps to ErrInvalidCredentials; an unreachable directory
// surfaces directory.ErrUnavailable so the caller can log it separately.
func (v *DirectoryVerifier) Verify(ctx context.Context, username, password string) (*VerifyResult, error) {
	p, err := v.client.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, directory.ErrAuthFailed) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	u, err := v.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("directory verify: %w", err)
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	return &VerifyResult{User: u, Profile: p}, nil
}
