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

// CreateMentionTx inserts a new PENDING mention within tx.
func CreateMentionTx(ctx context.Context, tx pgx.Tx, m model.Mention) (model.Mention, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.ResolutionStatus == "" {
		m.ResolutionStatus = model.MentionPending
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO mentions (id, kind, surface_form, normalized_form, extracted_personnummer,
		 extracted_orgnummer, extracted_attributes, provenance_id, document_location, resolution_status,
		 resolved_to, resolution_confidence, resolution_method, resolver_identity, resolved_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		m.ID, m.Kind, m.SurfaceForm, m.NormalizedForm, m.ExtractedPersonnummer,
		m.ExtractedOrgnummer, m.ExtractedAttributes, m.ProvenanceID, m.DocumentLocation, m.ResolutionStatus,
		m.ResolvedTo, m.ResolutionConfidence, m.ResolutionMethod, m.ResolverIdentity, m.ResolvedAt, m.CreatedAt,
	)
	if err != nil {
		return model.Mention{}, fmt.Errorf("storage: create mention: %w", err)
	}
	return m, nil
}

// GetMention retrieves a mention by id.
func (db *DB) GetMention(ctx context.Context, id uuid.UUID) (model.Mention, error) {
	var m model.Mention
	err := db.pool.QueryRow(ctx,
		`SELECT id, kind, surface_form, normalized_form, extracted_personnummer, extracted_orgnummer,
		 extracted_attributes, provenance_id, document_location, resolution_status, resolved_to,
		 resolution_confidence, resolution_method, resolver_identity, resolved_at, created_at
		 FROM mentions WHERE id = $1`, id,
	).Scan(&m.ID, &m.Kind, &m.SurfaceForm, &m.NormalizedForm, &m.ExtractedPersonnummer, &m.ExtractedOrgnummer,
		&m.ExtractedAttributes, &m.ProvenanceID, &m.DocumentLocation, &m.ResolutionStatus, &m.ResolvedTo,
		&m.ResolutionConfidence, &m.ResolutionMethod, &m.ResolverIdentity, &m.ResolvedAt, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Mention{}, fmt.Errorf("storage: mention %s: %w", id, herr.ErrNotFound)
		}
		return model.Mention{}, fmt.Errorf("storage: get mention: %w", err)
	}
	return m, nil
}

// ResolveMentionTx transitions a mention to a terminal resolution state
// within tx, atomically with whatever entity/identifier/decision writes the
// resolver performed.
func ResolveMentionTx(ctx context.Context, tx pgx.Tx, mentionID uuid.UUID, status model.ResolutionStatus,
	resolvedTo *uuid.UUID, confidence *float64, method, resolverIdentity string) error {
	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE mentions SET resolution_status = $1, resolved_to = $2, resolution_confidence = $3,
		 resolution_method = $4, resolver_identity = $5, resolved_at = $6 WHERE id = $7`,
		status, resolvedTo, confidence, method, resolverIdentity, now, mentionID,
	)
	if err != nil {
		return fmt.Errorf("storage: resolve mention: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: mention %s: %w", mentionID, herr.ErrNotFound)
	}
	return nil
}

// ListPendingMentions returns mentions awaiting resolution, oldest first,
// for the batch resolver's worker pool to consume.
func (db *DB) ListPendingMentions(ctx context.Context, limit int) ([]model.Mention, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, kind, surface_form, normalized_form, extracted_personnummer, extracted_orgnummer,
		 extracted_attributes, provenance_id, document_location, resolution_status, resolved_to,
		 resolution_confidence, resolution_method, resolver_identity, resolved_at, created_at
		 FROM mentions WHERE resolution_status = 'PENDING' ORDER BY created_at LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list pending mentions: %w", err)
	}
	defer rows.Close()

	var out []model.Mention
	for rows.Next() {
		var m model.Mention
		if err := rows.Scan(&m.ID, &m.Kind, &m.SurfaceForm, &m.NormalizedForm, &m.ExtractedPersonnummer, &m.ExtractedOrgnummer,
			&m.ExtractedAttributes, &m.ProvenanceID, &m.DocumentLocation, &m.ResolutionStatus, &m.ResolvedTo,
			&m.ResolutionConfidence, &m.ResolutionMethod, &m.ResolverIdentity, &m.ResolvedAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan mention: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
