package cache

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint computes the cache key for a piece of source text.
//
// The digest is a 64-bit XXH64 over the full text: deterministic, order
// sensitive and fast enough to run on every keystroke-sized submission.
// The key format is "code_" followed by 16 hex digits.
func Fingerprint(text string) string {
	return fmt.Sprintf("code_%016x", xxhash.Sum64String(text))
}
