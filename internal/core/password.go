package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Hasher turns a clear-text password into the stored hash.
type Hasher interface {
	Hash(password string) (string, error)
}

// BcryptHasher hashes with bcrypt at the given cost.
type BcryptHasher struct {
	Cost int
}

// Hash implements Hasher.
func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	// bcrypt only looks at the first 72 bytes and rejects longer input.
	if len(password) > 72 {
		return "", fmt.Errorf("password longer than 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches a hash made by BcryptHasher.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GeneratePassword returns a random initial password for members the
// lookup table has no entry for. They reset it on first login.
func GeneratePassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// InitialPassword picks the configured password for bboName or generates
// one, and returns its hash.
func InitialPassword(env BuildEnv, bboName string) (string, error) {
	pw, ok := env.Lookups.Password(bboName)
	if !ok {
		pw = GeneratePassword()
	}
	hasher := env.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return hasher.Hash(pw)
}
