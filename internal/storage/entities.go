package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/halo-intel/halo/internal/herr"
	"github.com/halo-intel/halo/internal/model"
)

// CreateEntity inserts a new ACTIVE entity, assigning an id and timestamps
// if absent.
func (db *DB) CreateEntity(ctx context.Context, e model.Entity) (model.Entity, error) {
	return createEntity(ctx, db.pool, e)
}

// CreateEntityTx inserts a new entity within an existing transaction, for
// callers that must create the entity atomically with its identifiers,
// attributes, and audit entry.
func CreateEntityTx(ctx context.Context, tx pgx.Tx, e model.Entity) (model.Entity, error) {
	return createEntity(ctx, tx, e)
}

func createEntity(ctx context.Context, exec execer, e model.Entity) (model.Entity, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
	if e.Status == "" {
		e.Status = model.StatusActive
	}

	_, err := exec.Exec(ctx,
		`INSERT INTO entities (id, kind, canonical_name, resolution_confidence, status, merged_into, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Kind, e.CanonicalName, e.ResolutionConfidence, e.Status, e.MergedInto, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return model.Entity{}, fmt.Errorf("storage: create entity: %w", err)
	}
	return e, nil
}

// GetEntity retrieves an entity by id, including MERGED and ANONYMIZED rows
// (callers filter by Status if they only want ACTIVE entities).
func (db *DB) GetEntity(ctx context.Context, id uuid.UUID) (model.Entity, error) {
	var e model.Entity
	err := db.pool.QueryRow(ctx,
		`SELECT id, kind, canonical_name, resolution_confidence, status, merged_into, created_at, updated_at
		 FROM entities WHERE id = $1`, id,
	).Scan(&e.ID, &e.Kind, &e.CanonicalName, &e.ResolutionConfidence, &e.Status, &e.MergedInto, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Entity{}, fmt.Errorf("storage: entity %s: %w", id, herr.ErrNotFound)
		}
		return model.Entity{}, fmt.Errorf("storage: get entity: %w", err)
	}
	return e, nil
}

// UpdateEntityStatus transitions an entity's status (e.g. ACTIVE -> MERGED),
// optionally setting MergedInto. Used by the resolver's merge operation.
func (db *DB) UpdateEntityStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.EntityStatus, mergedInto *uuid.UUID) error {
	tag, err := tx.Exec(ctx,
		`UPDATE entities SET status = $1, merged_into = $2, updated_at = $3 WHERE id = $4`,
		status, mergedInto, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("storage: update entity status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: entity %s: %w", id, herr.ErrNotFound)
	}
	return nil
}

// ListActiveEntitiesByKind returns every ACTIVE entity of the given kind,
// used by the derivation engine to iterate the input set of a rule; rules
// run their entities independently so this listing can be fanned out
// concurrently by the caller.
func (db *DB) ListActiveEntitiesByKind(ctx context.Context, kind model.EntityKind) ([]model.Entity, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, kind, canonical_name, resolution_confidence, status, merged_into, created_at, updated_at
		 FROM entities WHERE kind = $1 AND status = 'ACTIVE'
		 ORDER BY created_at`,
		kind,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list active entities by kind: %w", err)
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var e model.Entity
		if err := rows.Scan(&e.ID, &e.Kind, &e.CanonicalName, &e.ResolutionConfidence, &e.Status, &e.MergedInto, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SearchEntitiesByName performs a case-insensitive prefix search over
// canonical_name, used by the Search façade operation and as a fallback
// blocking strategy when pg_trgm isn't available.
func (db *DB) SearchEntitiesByName(ctx context.Context, kind model.EntityKind, namePrefix string, limit int) ([]model.Entity, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, kind, canonical_name, resolution_confidence, status, merged_into, created_at, updated_at
		 FROM entities
		 WHERE kind = $1 AND status = 'ACTIVE' AND canonical_name ILIKE $2 || '%'
		 ORDER BY canonical_name
		 LIMIT $3`,
		kind, namePrefix, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: search entities by name: %w", err)
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var e model.Entity
		if err := rows.Scan(&e.ID, &e.Kind, &e.CanonicalName, &e.ResolutionConfidence, &e.Status, &e.MergedInto, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SearchEntitiesByTrigram ranks ACTIVE entities of the given kind by
// pg_trgm similarity to query, descending, for the trigram-name blocking
// strategy.
func (db *DB) SearchEntitiesByTrigram(ctx context.Context, kind model.EntityKind, query string, minSimilarity float64, limit int) ([]model.Entity, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, kind, canonical_name, resolution_confidence, status, merged_into, created_at, updated_at
		 FROM entities
		 WHERE kind = $1 AND status = 'ACTIVE' AND similarity(canonical_name, $2) >= $3
		 ORDER BY similarity(canonical_name, $2) DESC
		 LIMIT $4`,
		kind, query, minSimilarity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: search entities by trigram: %w", err)
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var e model.Entity
		if err := rows.Scan(&e.ID, &e.Kind, &e.CanonicalName, &e.ResolutionConfidence, &e.Status, &e.MergedInto, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SearchEntitiesByTrigramAnyKind is SearchEntitiesByTrigram without the
// kind filter, for the search façade operation when no kind is given.
func (db *DB) SearchEntitiesByTrigramAnyKind(ctx context.Context, query string, minSimilarity float64, limit int) ([]model.Entity, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, kind, canonical_name, resolution_confidence, status, merged_into, created_at, updated_at
		 FROM entities
		 WHERE status = 'ACTIVE' AND similarity(canonical_name, $1) >= $2
		 ORDER BY similarity(canonical_name, $1) DESC
		 LIMIT $3`,
		query, minSimilarity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: search entities by trigram (any kind): %w", err)
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var e model.Entity
		if err := rows.Scan(&e.ID, &e.Kind, &e.CanonicalName, &e.ResolutionConfidence, &e.Status, &e.MergedInto, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
