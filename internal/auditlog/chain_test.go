package auditlog

import (
	"context"
	"testing"
	"time"

	"github.com/halo-intel/halo/internal/model"
)

// memStore is a trivial in-memory Store for tests.
type memStore struct {
	entries []model.AuditEntry
}

func (m *memStore) LastAuditEntry(ctx context.Context) (model.AuditEntry, bool, error) {
	if len(m.entries) == 0 {
		return model.AuditEntry{}, false, nil
	}
	return m.entries[len(m.entries)-1], true, nil
}

func (m *memStore) InsertAuditEntry(ctx context.Context, e model.AuditEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func testChainKey() [32]byte {
	var k [32]byte
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func buildChain(t *testing.T, n int) (*memStore, *Writer) {
	t.Helper()
	key := testChainKey()
	w := NewWriter(key)
	store := &memStore{}
	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, err := w.Append(ctx, store, model.AuditEntry{
			EventType:  "mention.resolved",
			ActorType:  model.ActorSystem,
			ActorID:    "resolver",
			TargetType: "entity",
			TargetID:   "11111111-1111-1111-1111-111111111111",
			EventData:  map[string]any{"index": i},
			Timestamp:  time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	return store, w
}

func TestWriter_Append_GenesisAndSequencing(t *testing.T) {
	store, _ := buildChain(t, 3)
	if len(store.entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(store.entries))
	}
	if store.entries[0].PreviousHash != genesisHash {
		t.Fatalf("first entry previous_hash = %q, want GENESIS", store.entries[0].PreviousHash)
	}
	for i, e := range store.entries {
		if e.SeqID != int64(i+1) {
			t.Fatalf("entry %d has seq_id %d, want %d", i, e.SeqID, i+1)
		}
	}
	if store.entries[1].PreviousHash != store.entries[0].EntryHash {
		t.Fatal("entry 2's previous_hash must equal entry 1's entry_hash")
	}
}

func TestVerifyChain_ValidChainPasses(t *testing.T) {
	store, _ := buildChain(t, 5)
	result := VerifyChain(testChainKey(), store.entries)
	if !result.Valid {
		t.Fatalf("expected valid chain, got invalid: %s", result.Reason)
	}
}

func TestVerifyChain_DetectsTamperedEntry(t *testing.T) {
	store, _ := buildChain(t, 10)
	// Mutate entry at seq_id 5 (index 4) after the fact: verification must
	// report seq_id 5 as the first offender.
	store.entries[4].EventData = map[string]any{"index": "tampered"}

	result := VerifyChain(testChainKey(), store.entries)
	if result.Valid {
		t.Fatal("expected tampering to be detected")
	}
	if result.FirstInvalidSeq != 5 {
		t.Fatalf("first invalid seq = %d, want 5", result.FirstInvalidSeq)
	}
}

func TestVerifyChain_DetectsBrokenLinkage(t *testing.T) {
	store, _ := buildChain(t, 4)
	store.entries[2].PreviousHash = "deadbeef"

	result := VerifyChain(testChainKey(), store.entries)
	if result.Valid {
		t.Fatal("expected broken linkage to be detected")
	}
	if result.FirstInvalidSeq != 3 {
		t.Fatalf("first invalid seq = %d, want 3", result.FirstInvalidSeq)
	}
}

func TestVerifyChain_DetectsSequenceGap(t *testing.T) {
	store, _ := buildChain(t, 4)
	store.entries = append(store.entries[:2], store.entries[3:]...) // drop seq_id 3

	result := VerifyChain(testChainKey(), store.entries)
	if result.Valid {
		t.Fatal("expected sequence gap to be detected")
	}
	if result.FirstInvalidSeq != 3 {
		t.Fatalf("first invalid seq = %d, want 3", result.FirstInvalidSeq)
	}
}

func TestVerifyChain_EmptyChainIsValid(t *testing.T) {
	result := VerifyChain(testChainKey(), nil)
	if !result.Valid {
		t.Fatal("empty chain should be valid")
	}
}
