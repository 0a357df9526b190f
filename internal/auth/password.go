// Package auth holds the credential primitives: password hashing, access
// token signing, and generation and keyed hashing of opaque secrets
// (refresh tokens, API keys). It has no storage dependencies.
package auth

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// Password policy bounds. bcrypt only looks at the first 72 bytes.
const (
	MinPasswordLen   = 10
	MaxPasswordBytes = 72
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 10 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
)

// ValidatePassword enforces the password policy.
func ValidatePassword(raw string) error {
	if utf8.RuneCountInString(raw) < MinPasswordLen {
		return ErrPasswordTooShort
	}
	if len(raw) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// HashPassword hashes raw with bcrypt at the given cost. Out-of-range costs
// fall back to bcrypt.DefaultCost.
func HashPassword(raw string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether raw matches the stored bcrypt hash.
func VerifyPassword(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
