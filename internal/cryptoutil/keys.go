// Package cryptoutil implements Halo's PII-at-rest cryptography: HKDF-based
// domain key separation, versioned AES-256-GCM field encryption, and
// HMAC-SHA256 blind indexing for equality lookups over encrypted columns.
package cryptoutil

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Domain-separation info strings for HKDF-Expand. Each subsystem gets its
// own derived key so a compromise of one purpose's key material does not
// expose the others, even though all are rooted in the same master key.
const (
	infoPIIEncryption = "halo-pii-encryption-v1"
	infoBlindIndex    = "halo-pii-blind-index-v1"
	infoAuditChain    = "halo-audit-chain-v1"
)

// KeySet holds the three domain-separated 32-byte keys derived from a single
// master key. Construct with DeriveKeySet at startup; nothing in this
// package ever persists or logs a derived key.
type KeySet struct {
	PIIEncryptionKey [32]byte
	BlindIndexKey    [32]byte
	AuditChainKey    [32]byte
}

// DeriveKeySet runs HKDF-SHA256 (no salt; the master key itself is assumed
// high-entropy) over the master key three times, once per domain-separated
// info string, producing independent key material for PII encryption, blind
// indexing, and audit hash-chaining.
func DeriveKeySet(masterKey []byte) (KeySet, error) {
	if len(masterKey) < 32 {
		return KeySet{}, fmt.Errorf("cryptoutil: master key must be at least 32 bytes, got %d", len(masterKey))
	}

	var ks KeySet
	for _, d := range []struct {
		info string
		out  *[32]byte
	}{
		{infoPIIEncryption, &ks.PIIEncryptionKey},
		{infoBlindIndex, &ks.BlindIndexKey},
		{infoAuditChain, &ks.AuditChainKey},
	} {
		r := hkdf.New(sha256.New, masterKey, nil, []byte(d.info))
		if _, err := io.ReadFull(r, d.out[:]); err != nil {
			return KeySet{}, fmt.Errorf("cryptoutil: derive key for %q: %w", d.info, err)
		}
	}
	return ks, nil
}
