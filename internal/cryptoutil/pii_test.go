package cryptoutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/halo-intel/halo/internal/herr"
)

func testKeySet(t *testing.T) KeySet {
	t.Helper()
	ks, err := DeriveKeySet(testMasterKey())
	if err != nil {
		t.Fatal(err)
	}
	return ks
}

func TestEncryptDecryptPII_RoundTrip(t *testing.T) {
	ks := testKeySet(t)
	ct, err := EncryptPII(ks.PIIEncryptionKey, "198112189876")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(ct, "enc2:") {
		t.Fatalf("expected enc2: prefix, got %q", ct)
	}
	pt, err := DecryptPII(ks.PIIEncryptionKey, ct)
	if err != nil {
		t.Fatal(err)
	}
	if pt != "198112189876" {
		t.Fatalf("got %q", pt)
	}
}

func TestEncryptPII_EmptyStringRoundTrips(t *testing.T) {
	ks := testKeySet(t)
	ct, err := EncryptPII(ks.PIIEncryptionKey, "")
	if err != nil {
		t.Fatal(err)
	}
	if ct != "" {
		t.Fatalf("expected empty ciphertext for empty plaintext, got %q", ct)
	}
	pt, err := DecryptPII(ks.PIIEncryptionKey, "")
	if err != nil {
		t.Fatal(err)
	}
	if pt != "" {
		t.Fatal("expected empty plaintext")
	}
}

func TestEncryptPII_NondeterministicCiphertext(t *testing.T) {
	ks := testKeySet(t)
	a, err := EncryptPII(ks.PIIEncryptionKey, "same plaintext")
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncryptPII(ks.PIIEncryptionKey, "same plaintext")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("two encryptions of the same plaintext must differ (random nonce)")
	}
}

func TestDecryptPII_TamperedCiphertextRejected(t *testing.T) {
	ks := testKeySet(t)
	ct, err := EncryptPII(ks.PIIEncryptionKey, "sensitive value")
	if err != nil {
		t.Fatal(err)
	}
	tampered := ct[:len(ct)-1] + flipLastChar(ct[len(ct)-1:])
	_, err = DecryptPII(ks.PIIEncryptionKey, tampered)
	if err == nil {
		t.Fatal("expected authentication failure for tampered ciphertext")
	}
	if !errors.Is(err, herr.ErrCrypto) {
		t.Fatalf("expected herr.ErrCrypto, got %v", err)
	}
}

func TestDecryptPII_LegacyPrefixRejected(t *testing.T) {
	ks := testKeySet(t)
	_, err := DecryptPII(ks.PIIEncryptionKey, "enc:deadbeef")
	if !errors.Is(err, herr.ErrCrypto) {
		t.Fatalf("expected herr.ErrCrypto for legacy prefix, got %v", err)
	}
}

func TestDecryptPII_WrongKeyRejected(t *testing.T) {
	ks := testKeySet(t)
	ct, err := EncryptPII(ks.PIIEncryptionKey, "value")
	if err != nil {
		t.Fatal(err)
	}
	otherKS, err := DeriveKeySet(append([]byte{0x01}, testMasterKey()[1:]...))
	if err != nil {
		t.Fatal(err)
	}
	_, err = DecryptPII(otherKS.PIIEncryptionKey, ct)
	if !errors.Is(err, herr.ErrCrypto) {
		t.Fatalf("expected herr.ErrCrypto for wrong key, got %v", err)
	}
}

func flipLastChar(s string) string {
	if s == "a" {
		return "b"
	}
	return "a"
}
