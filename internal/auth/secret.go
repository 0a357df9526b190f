package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// Raw sizes of the opaque credentials, before base64url encoding.
const (
	RefreshTokenBytes = 64
	APIKeyBytes       = 48
)

// NewOpaqueToken returns n random bytes encoded as unpadded base64url.
func NewOpaqueToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hasher computes the keyed hash under which refresh tokens and API keys are
// stored.
type Hasher struct {
	secret []byte
}

// NewHasher returns a Hasher keyed with secret.
func NewHasher(secret string) *Hasher {
	return &Hasher{secret: []byte(secret)}
}

// Hash returns hex(HMAC-SHA256(secret, raw)).
func (h *Hasher) Hash(raw string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal compares a raw secret with a stored hash in constant time.
func (h *Hasher) Equal(raw, storedHash string) bool {
	return hmac.Equal([]byte(h.Hash(raw)), []byte(storedHash))
}
