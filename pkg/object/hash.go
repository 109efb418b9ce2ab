package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashBytes computes the raw SHA-256 hash of data and returns it as a
// lowercase hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject computes the SHA-256 of the envelope "type len\0content",
// mirroring Git's object hashing but with SHA-256.
func HashObject(objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha256.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// ValidHash reports whether h is a lowercase hex digest of SHA-1 or
// SHA-256 width.
func ValidHash(h Hash) bool {
	if len(h) != 40 && len(h) != 64 {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Short returns the first 8 characters of h, for display.
func (h Hash) Short() string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}
