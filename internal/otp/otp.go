// Package otp issues and validates SMS one-time codes for the second login factor.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

const codeDigits = 6

var codeSpace = big.NewInt(1_000_000)

// GenerateCode draws a uniformly random value in [0, 10^6) from crypto/rand
// and zero-pads it to six digits ("042317").
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}

// HashCode returns the hex SHA-256 digest of code. Challenges store the
// digest, never the plaintext code.
func HashCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// CodeEqual compares the submitted code against a stored digest in constant time.
func CodeEqual(submittedCode, storedHash string) bool {
	submittedHash := HashCode(submittedCode)
	return subtle.ConstantTimeCompare([]byte(submittedHash), []byte(storedHash)) == 1
}

// MaskPhone masks a phone number for display: all but the last four characters
// are replaced with a single "****" marker. Numbers shorter than four characters
// are returned unmasked.
func MaskPhone(phone string) string {
	if len(phone) < 4 {
		return phone
	}
	return phone[:len(phone)-4] + "****"
}
