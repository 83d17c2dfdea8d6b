package auditlog

import (
	"context"
	"fmt"
	"sync"

	"github.com/halo-intel/halo/internal/model"
)

// Store is the persistence boundary the Writer needs: read the tip of the
// chain and append one more link. Implementations are expected to pass a
// transaction-scoped Store when the audit write must be atomic with the
// mutation it describes, since a mutation must never persist without its
// audit entry.
type Store interface {
	// LastAuditEntry returns the highest-seq_id entry, or ok=false if the
	// chain is empty.
	LastAuditEntry(ctx context.Context) (entry model.AuditEntry, ok bool, err error)
	InsertAuditEntry(ctx context.Context, entry model.AuditEntry) error
}

// Writer serializes audit-chain appends behind a single mutex so that
// sequence-id assignment and previous-hash linkage can never race. The mutex
// is process-local; a single Halo process is expected to own the chain for a
// given tenant/store.
type Writer struct {
	mu  sync.Mutex
	key [32]byte
}

// NewWriter constructs an audit Writer bound to the audit-chain domain key
// (cryptoutil.KeySet.AuditChainKey).
func NewWriter(auditChainKey [32]byte) *Writer {
	return &Writer{key: auditChainKey}
}

// Append assigns the next sequence id and previous-hash link to entry,
// computes its hash, and persists it via store. Callers populate every
// AuditEntry field except SeqID, PreviousHash, and EntryHash, which Append
// overwrites unconditionally.
func (w *Writer) Append(ctx context.Context, store Store, entry model.AuditEntry) (model.AuditEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	last, ok, err := store.LastAuditEntry(ctx)
	if err != nil {
		return model.AuditEntry{}, fmt.Errorf("auditlog: read chain tip: %w", err)
	}

	entry.PreviousHash = genesisHash
	entry.SeqID = 1
	if ok {
		entry.PreviousHash = last.EntryHash
		entry.SeqID = last.SeqID + 1
	}

	hash, err := computeEntryHash(w.key, entry.PreviousHash, entry)
	if err != nil {
		return model.AuditEntry{}, fmt.Errorf("auditlog: compute entry hash: %w", err)
	}
	entry.EntryHash = hash

	if err := store.InsertAuditEntry(ctx, entry); err != nil {
		return model.AuditEntry{}, fmt.Errorf("auditlog: persist entry: %w", err)
	}
	return entry, nil
}
