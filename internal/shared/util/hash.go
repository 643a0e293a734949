package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashOwner returns a path-safe identifier for a session owner such as "guest:abc".
func HashOwner(owner string) string {
	sum := sha256.Sum256([]byte(owner))
	return hex.EncodeToString(sum[:])
}
