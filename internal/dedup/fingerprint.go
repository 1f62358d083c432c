// Package dedup fingerprints extracted content and filters entries seen before.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/hyperjump/digest/internal/segment"
)

// separator keeps ("ab", "c") and ("a", "bc") from hashing alike.
const separator = "\x1f"

// Fingerprint returns a stable identifier for content extracted from source.
// Case and whitespace differences do not change the result. The value is the first
// 16 bytes of a SHA-256 digest, hex encoded.
func Fingerprint(content, source string) string {
	h := sha256.New()
	h.Write([]byte(normalize(content)))
	h.Write([]byte(separator))
	h.Write([]byte(normalize(source)))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

func normalize(s string) string {
	return strings.ToLower(segment.Normalize(s))
}
