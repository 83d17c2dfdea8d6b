package cryptoutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// BlindIndex computes a deterministic, keyed HMAC-SHA256 digest of a
// normalized value, truncated to 128 bits (32 hex characters), for use as an
// equality-lookup index over an encrypted column. The value must already be
// normalized by the caller (internal/normalize) so that two inputs that
// denote the same identifier always produce the same index.
func BlindIndex(key [32]byte, normalizedValue string) string {
	mac := hmac.New(sha256.New, key[:])
	mac.Write([]byte(normalizedValue))
	sum := mac.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
