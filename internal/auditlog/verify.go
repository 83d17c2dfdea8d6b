package auditlog

import (
	"crypto/subtle"
	"fmt"

	"github.com/halo-intel/halo/internal/model"
)

// VerificationResult is the outcome of VerifyChain.
type VerificationResult struct {
	Valid          bool
	FirstInvalidSeq int64 // 0 if Valid is true.
	Reason          string
}

// VerifyChain recomputes each entry's hash from its fields and previous-hash
// link and compares it against the stored hash: given entries 1..N
// (ascending, gap-free, seq_id 1 first), it detects the first sequence id at
// which either the stored hash no longer matches the recomputed hash, the
// previous-hash link is broken, or a sequence gap exists.
//
// entries must be supplied in ascending seq_id order; VerifyChain does not
// sort them, since a correct store always yields them that way and
// resorting could mask a storage-layer ordering bug.
func VerifyChain(key [32]byte, entries []model.AuditEntry) VerificationResult {
	return VerifyChainFrom(key, 1, genesisHash, entries)
}

// VerifyChainFrom is VerifyChain generalized to start partway through the
// chain: the caller supplies the seq_id and previous_hash the first entry in
// entries is expected to carry (the entry_hash of seq_id-1, or genesisHash
// when startSeq is 1).
func VerifyChainFrom(key [32]byte, startSeq int64, startPrevHash string, entries []model.AuditEntry) VerificationResult {
	expectedPrev := startPrevHash
	expectedSeq := startSeq

	for _, e := range entries {
		if e.SeqID != expectedSeq {
			return VerificationResult{
				Valid:           false,
				FirstInvalidSeq: expectedSeq,
				Reason:          fmt.Sprintf("sequence gap: expected seq_id %d, found %d", expectedSeq, e.SeqID),
			}
		}
		if e.PreviousHash != expectedPrev {
			return VerificationResult{
				Valid:           false,
				FirstInvalidSeq: e.SeqID,
				Reason:          "previous_hash does not match the prior entry's entry_hash",
			}
		}

		recomputed, err := computeEntryHash(key, e.PreviousHash, e)
		if err != nil {
			return VerificationResult{
				Valid:           false,
				FirstInvalidSeq: e.SeqID,
				Reason:          fmt.Sprintf("recompute hash: %v", err),
			}
		}
		if subtle.ConstantTimeCompare([]byte(recomputed), []byte(e.EntryHash)) != 1 {
			return VerificationResult{
				Valid:           false,
				FirstInvalidSeq: e.SeqID,
				Reason:          "stored entry_hash does not match recomputed hash: entry was modified after being written",
			}
		}

		expectedPrev = e.EntryHash
		expectedSeq++
	}

	return VerificationResult{Valid: true}
}
