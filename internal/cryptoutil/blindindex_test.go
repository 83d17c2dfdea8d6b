package cryptoutil

import "testing"

func TestBlindIndex_Deterministic(t *testing.T) {
	ks := testKeySet(t)
	a := BlindIndex(ks.BlindIndexKey, "198112189876")
	b := BlindIndex(ks.BlindIndexKey, "198112189876")
	if a != b {
		t.Fatal("BlindIndex must be deterministic for the same input and key")
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex characters (128 bits), got %d: %q", len(a), a)
	}
}

func TestBlindIndex_DifferentInputsDiffer(t *testing.T) {
	ks := testKeySet(t)
	a := BlindIndex(ks.BlindIndexKey, "198112189876")
	b := BlindIndex(ks.BlindIndexKey, "198112189875")
	if a == b {
		t.Fatal("different inputs must produce different blind indexes")
	}
}

func TestBlindIndex_KeySensitive(t *testing.T) {
	ks1, err := DeriveKeySet(testMasterKey())
	if err != nil {
		t.Fatal(err)
	}
	otherMaster := append([]byte(nil), testMasterKey()...)
	otherMaster[0] ^= 0xFF
	ks2, err := DeriveKeySet(otherMaster)
	if err != nil {
		t.Fatal(err)
	}
	a := BlindIndex(ks1.BlindIndexKey, "198112189876")
	b := BlindIndex(ks2.BlindIndexKey, "198112189876")
	if a == b {
		t.Fatal("blind index must be sensitive to the key (resists reversal without the key)")
	}
}
