package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/halo-intel/halo/internal/model"
)

// CreateIdentifierTx inserts an EntityIdentifier row within tx. The partial
// unique index on live (entity_id, kind, blind_index) rows rejects binding
// the same identifier to an entity twice; exact-identifier blocking is served
// by the separate (kind, blind_index) index. A violation here surfaces as a
// Postgres 23505 that callers detect with IsUniqueViolation.
func CreateIdentifierTx(ctx context.Context, tx pgx.Tx, ident model.EntityIdentifier) (model.EntityIdentifier, error) {
	if ident.ID == uuid.Nil {
		ident.ID = uuid.New()
	}
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = time.Now().UTC()
	}
	if ident.ValidFrom.IsZero() {
		ident.ValidFrom = ident.CreatedAt
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO entity_identifiers (id, entity_id, kind, encrypted_value, blind_index, provenance_id, valid_from, valid_to, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ident.ID, ident.EntityID, ident.Kind, ident.EncryptedValue, ident.BlindIndex,
		ident.ProvenanceID, ident.ValidFrom, ident.ValidTo, ident.Confidence, ident.CreatedAt,
	)
	if err != nil {
		return model.EntityIdentifier{}, fmt.Errorf("storage: create identifier: %w", err)
	}
	return ident, nil
}

// FindEntitiesByBlindIndex returns every live (valid_to IS NULL) entity id
// bound to the given (kind, blind_index) pair — the exact-identifier
// blocking strategy, and the only blocking strategy the resolver treats as a
// high-confidence short circuit.
func (db *DB) FindEntitiesByBlindIndex(ctx context.Context, kind model.IdentifierKind, blindIndex string) ([]uuid.UUID, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT DISTINCT entity_id FROM entity_identifiers
		 WHERE kind = $1 AND blind_index = $2 AND valid_to IS NULL`,
		kind, blindIndex,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: find entities by blind index: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage: scan entity id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListIdentifiers returns every identifier ever bound to an entity,
// including superseded ones, ordered by valid_from.
func (db *DB) ListIdentifiers(ctx context.Context, entityID uuid.UUID) ([]model.EntityIdentifier, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, entity_id, kind, encrypted_value, blind_index, provenance_id, valid_from, valid_to, confidence, created_at
		 FROM entity_identifiers WHERE entity_id = $1 ORDER BY valid_from`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list identifiers: %w", err)
	}
	defer rows.Close()

	var out []model.EntityIdentifier
	for rows.Next() {
		var ident model.EntityIdentifier
		if err := rows.Scan(&ident.ID, &ident.EntityID, &ident.Kind, &ident.EncryptedValue, &ident.BlindIndex,
			&ident.ProvenanceID, &ident.ValidFrom, &ident.ValidTo, &ident.Confidence, &ident.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan identifier: %w", err)
		}
		out = append(out, ident)
	}
	return out, rows.Err()
}
