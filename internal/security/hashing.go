package security

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost mirrors the BCRYPT_COST config default.
const DefaultBcryptCost = 12

// Hasher derives and verifies bcrypt hashes for the local credential store.
// Plaintext passwords must never be logged or persisted.
type Hasher struct {
	cost int
}

// NewHasher builds a Hasher for the given bcrypt cost. Config validation
// keeps BCRYPT_COST inside bcrypt's 4..31 range before it reaches here; a
// non-positive cost falls back to DefaultBcryptCost so tests can pass zero.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	return &Hasher{cost: cost}
}

// Hash derives a storable bcrypt hash of password.
func (h *Hasher) Hash(password []byte) (string, error) {
	out, err := bcrypt.GenerateFromPassword(password, h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Compare reports whether password matches storedHash. A nil return means
// match; bcrypt.ErrMismatchedHashAndPassword or a format error otherwise.
func (h *Hasher) Compare(storedHash string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), password)
}
