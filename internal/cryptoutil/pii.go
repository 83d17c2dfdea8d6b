package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/halo-intel/halo/internal/herr"
)

// currentPrefix is the wire-format prefix for ciphertext produced by this
// version of EncryptPII. legacyPrefix identifies ciphertext from a prior
// (unversioned) scheme; DecryptPII refuses to decrypt it rather than
// silently treating old and new formats the same way.
const (
	currentPrefix = "enc2:"
	legacyPrefix  = "enc:"
)

// EncryptPII seals plaintext under the PII encryption key with AES-256-GCM,
// returning "enc2:<base64url(nonce)>:<base64url(ciphertext||tag)>". An empty
// plaintext round-trips to an empty string rather than being wrapped.
func EncryptPII(key [32]byte, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", fmt.Errorf("cryptoutil: %w: %v", herr.ErrCrypto, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("cryptoutil: %w: generate nonce: %v", herr.ErrCrypto, err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return currentPrefix +
		base64.URLEncoding.EncodeToString(nonce) + ":" +
		base64.URLEncoding.EncodeToString(sealed), nil
}

// DecryptPII reverses EncryptPII. Ciphertext bearing the legacy "enc:"
// prefix, or any unrecognized prefix, is rejected with herr.ErrCrypto: the
// pipeline must never silently treat an old-format or malformed value as
// valid plaintext.
func DecryptPII(key [32]byte, ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	if strings.HasPrefix(ciphertext, legacyPrefix) && !strings.HasPrefix(ciphertext, currentPrefix) {
		return "", fmt.Errorf("cryptoutil: %w: legacy unversioned ciphertext rejected", herr.ErrCrypto)
	}
	if !strings.HasPrefix(ciphertext, currentPrefix) {
		return "", fmt.Errorf("cryptoutil: %w: unrecognized ciphertext prefix", herr.ErrCrypto)
	}

	body := strings.TrimPrefix(ciphertext, currentPrefix)
	idx := strings.IndexByte(body, ':')
	if idx < 0 {
		return "", fmt.Errorf("cryptoutil: %w: malformed ciphertext: missing nonce separator", herr.ErrCrypto)
	}

	nonce, err := base64.URLEncoding.DecodeString(body[:idx])
	if err != nil {
		return "", fmt.Errorf("cryptoutil: %w: decode nonce: %v", herr.ErrCrypto, err)
	}
	sealed, err := base64.URLEncoding.DecodeString(body[idx+1:])
	if err != nil {
		return "", fmt.Errorf("cryptoutil: %w: decode ciphertext: %v", herr.ErrCrypto, err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", fmt.Errorf("cryptoutil: %w: %v", herr.ErrCrypto, err)
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("cryptoutil: %w: invalid nonce length", herr.ErrCrypto)
	}

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		// Authentication failure: tampered ciphertext or wrong key. Never
		// distinguish the two in the returned error; both are herr.ErrCrypto.
		return "", fmt.Errorf("cryptoutil: %w: authentication failed", herr.ErrCrypto)
	}
	return string(plaintext), nil
}

func newGCM(key [32]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.New("aes cipher init")
	}
	return cipher.NewGCM(block)
}
