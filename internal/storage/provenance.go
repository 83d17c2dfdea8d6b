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

// CreateProvenanceTx inserts a Provenance row within tx. Every Fact,
// EntityIdentifier, and Mention references exactly one of these rows, which
// are never deleted or mutated.
func CreateProvenanceTx(ctx context.Context, tx pgx.Tx, p model.Provenance) (model.Provenance, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO provenance (id, source_kind, source_id, url, document_hash, extraction_method,
		 extraction_timestamp, extraction_system_version, derived_from, derivation_rule, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.SourceKind, p.SourceID, p.URL, p.DocumentHash, p.ExtractionMethod,
		p.ExtractionTimestamp, p.ExtractionSystemVer, p.DerivedFrom, p.DerivationRule, p.CreatedAt,
	)
	if err != nil {
		return model.Provenance{}, fmt.Errorf("storage: create provenance: %w", err)
	}
	return p, nil
}

// GetProvenance retrieves a provenance row by id.
func (db *DB) GetProvenance(ctx context.Context, id uuid.UUID) (model.Provenance, error) {
	var p model.Provenance
	err := db.pool.QueryRow(ctx,
		`SELECT id, source_kind, source_id, url, document_hash, extraction_method,
		 extraction_timestamp, extraction_system_version, derived_from, derivation_rule, created_at
		 FROM provenance WHERE id = $1`, id,
	).Scan(&p.ID, &p.SourceKind, &p.SourceID, &p.URL, &p.DocumentHash, &p.ExtractionMethod,
		&p.ExtractionTimestamp, &p.ExtractionSystemVer, &p.DerivedFrom, &p.DerivationRule, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Provenance{}, fmt.Errorf("storage: provenance %s: %w", id, herr.ErrNotFound)
		}
		return model.Provenance{}, fmt.Errorf("storage: get provenance: %w", err)
	}
	return p, nil
}
