package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Comparator hashes login secrets and verifies them against stored hashes.
// Callers treat the credential as an opaque one-way value; the algorithm is
// this package's concern only.
type Comparator interface {
	Hash(secret string) (string, error)
	Verify(hash, secret string) error
}

// BcryptComparator implements Comparator with bcrypt at the default cost.
type BcryptComparator struct{}

// Hash hashes the plaintext secret.
func (BcryptComparator) Hash(secret string) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify compares the plaintext secret with the stored hash.
func (BcryptComparator) Verify(hash, secret string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
}
