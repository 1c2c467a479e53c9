// Package privacy keeps raw account identifiers out of storage and logs.
// Every account id crosses this boundary exactly once, on the way in; all
// persistence and lookups operate on the stable hashed form.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
)

// AccountHasher maps a raw account identifier to a stable opaque id. The
// same function must be applied on writes and on account-scoped queries so
// lookups stay consistent.
type AccountHasher interface {
	Hash(rawAccountID string) string
}

// SaltedSHA256 is the production hasher: hex(sha256(accountId + salt)).
type SaltedSHA256 struct {
	salt string
}

func NewSaltedSHA256(salt string) *SaltedSHA256 {
	return &SaltedSHA256{salt: salt}
}

func (h *SaltedSHA256) Hash(rawAccountID string) string {
	sum := sha256.Sum256([]byte(rawAccountID + h.salt))
	return hex.EncodeToString(sum[:])
}
