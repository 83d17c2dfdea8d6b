package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/halo-intel/halo/internal/model"
)

// AuditStore adapts a pgx executor (pool or transaction) to the
// auditlog.Store interface, so auditlog.Writer.Append can be called either
// standalone or, more commonly, scoped to the same transaction as the
// mutation it describes — the audit entry must never persist without the
// write it documents, and vice versa. Also reads the chain tip, since audit
// entries are hash-chained rather than unkeyed.
type AuditStore struct {
	exec execer
}

// NewAuditStore wraps db's pool for standalone (non-transactional) audit
// appends — rare in practice, since most appends ride along a mutation's
// transaction via NewAuditStoreTx.
func NewAuditStore(db *DB) AuditStore {
	return AuditStore{exec: db.pool}
}

// NewAuditStoreTx wraps tx so the audit append commits or rolls back with
// the caller's mutation.
func NewAuditStoreTx(tx pgx.Tx) AuditStore {
	return AuditStore{exec: tx}
}

// LastAuditEntry implements auditlog.Store.
func (s AuditStore) LastAuditEntry(ctx context.Context) (model.AuditEntry, bool, error) {
	var e model.AuditEntry
	err := s.exec.QueryRow(ctx,
		`SELECT seq_id, previous_hash, entry_hash, event_type, actor_type, actor_id, target_type,
		 target_id, event_data, request_id, ip, user_agent, "timestamp"
		 FROM audit_log ORDER BY seq_id DESC LIMIT 1`,
	).Scan(&e.SeqID, &e.PreviousHash, &e.EntryHash, &e.EventType, &e.ActorType, &e.ActorID, &e.TargetType,
		&e.TargetID, &e.EventData, &e.RequestID, &e.IP, &e.UserAgent, &e.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AuditEntry{}, false, nil
		}
		return model.AuditEntry{}, false, fmt.Errorf("storage: read audit chain tip: %w", err)
	}
	return e, true, nil
}

// InsertAuditEntry implements auditlog.Store. The migration revokes UPDATE
// and DELETE on audit_log from the halo_app role when that role exists
// (migrations/0001_init.sql), so an application connecting as halo_app
// cannot retroactively edit the chain — only this insert path exists.
func (s AuditStore) InsertAuditEntry(ctx context.Context, e model.AuditEntry) error {
	_, err := s.exec.Exec(ctx,
		`INSERT INTO audit_log (seq_id, previous_hash, entry_hash, event_type, actor_type, actor_id,
		 target_type, target_id, event_data, request_id, ip, user_agent, "timestamp")
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.SeqID, e.PreviousHash, e.EntryHash, e.EventType, e.ActorType, e.ActorID,
		e.TargetType, e.TargetID, e.EventData, e.RequestID, e.IP, e.UserAgent, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("storage: insert audit entry: %w", err)
	}
	return nil
}

// ListAuditChain returns the full chain in ascending seq_id order, for
// full-chain verification with auditlog.VerifyChain.
func (db *DB) ListAuditChain(ctx context.Context) ([]model.AuditEntry, error) {
	return db.ListAuditChainRange(ctx, 0, 0)
}

// ListAuditChainRange returns the chain from fromSeq to toSeq inclusive
// (both ascending seq_id order). fromSeq<=0 means "from the start"; toSeq<=0
// means "to the tip". Verification of a sub-range still needs one entry
// before fromSeq to check its previous-hash link, so callers that want a
// true from/to window rather than a from-genesis prefix should pass
// fromSeq-1 and check the link themselves; Engine.VerifyAuditChain in
// halo.go does this.
func (db *DB) ListAuditChainRange(ctx context.Context, fromSeq, toSeq int64) ([]model.AuditEntry, error) {
	query := `SELECT seq_id, previous_hash, entry_hash, event_type, actor_type, actor_id, target_type,
		 target_id, event_data, request_id, ip, user_agent, "timestamp"
		 FROM audit_log WHERE seq_id >= $1`
	args := []any{int64(1)}
	if fromSeq > 0 {
		args[0] = fromSeq
	}
	if toSeq > 0 {
		query += ` AND seq_id <= $2`
		args = append(args, toSeq)
	}
	query += ` ORDER BY seq_id ASC`

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list audit chain: %w", err)
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.SeqID, &e.PreviousHash, &e.EntryHash, &e.EventType, &e.ActorType, &e.ActorID, &e.TargetType,
			&e.TargetID, &e.EventData, &e.RequestID, &e.IP, &e.UserAgent, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("storage: scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
