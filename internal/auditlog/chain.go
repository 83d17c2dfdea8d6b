// Package auditlog implements the HMAC-SHA256 hash chain over Halo's
// append-only audit log: each entry's hash commits to its own fields and the
// previous entry's hash, so any retroactive edit or deletion breaks the
// chain at the tampered point and everything after it. The chain is linear
// and gap-free rather than tree-shaped, since entries are produced strictly
// in sequence by a single writer.
package auditlog

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/halo-intel/halo/internal/model"
)

// genesisHash is the literal previous-hash value for the first entry in the
// chain (seq_id 1).
const genesisHash = "GENESIS"

// computeEntryHash commits to an entry's fields and the hash of the entry
// that precedes it. Fields are written length-prefixed (4-byte big-endian
// length + content) so that no delimiter-collision can make two distinct
// entries hash equal.
func computeEntryHash(key [32]byte, previousHash string, e model.AuditEntry) (string, error) {
	eventData, err := canonicalJSON(e.EventData)
	if err != nil {
		return "", fmt.Errorf("auditlog: marshal event_data: %w", err)
	}

	mac := hmac.New(sha256.New, key[:])
	writeField := func(s string) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		mac.Write(lenBuf[:])
		mac.Write([]byte(s))
	}

	writeField(previousHash)
	writeField(fmt.Sprintf("%d", e.SeqID))
	writeField(e.EventType)
	writeField(string(e.ActorType))
	writeField(e.ActorID)
	writeField(e.TargetType)
	writeField(e.TargetID)
	writeField(string(eventData))
	writeField(e.RequestID)
	writeField(e.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"))

	return hex.EncodeToString(mac.Sum(nil)), nil
}

// canonicalJSON marshals a map with keys sorted, so the same logical
// event_data always hashes identically regardless of Go map iteration order.
func canonicalJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]byte, 0, 256)
	ordered = append(ordered, '{')
	for i, k := range keys {
		if i > 0 {
			ordered = append(ordered, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m[k])
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, kb...)
		ordered = append(ordered, ':')
		ordered = append(ordered, vb...)
	}
	ordered = append(ordered, '}')
	return ordered, nil
}
