package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/halo-intel/halo/internal/model"
)

// CreateFactTx inserts a Fact row within tx. Callers enforce the
// at-most-one-current-fact invariant by superseding the prior current fact
// (SupersedeFactTx) in the same transaction before inserting the
// replacement.
func CreateFactTx(ctx context.Context, tx pgx.Tx, f model.Fact) (model.Fact, error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if f.ValidFrom.IsZero() {
		f.ValidFrom = f.CreatedAt
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO facts (id, subject, predicate, value_text, value_int, value_float, value_date, value_bool,
		 value_json, object, relationship_attributes, valid_from, valid_to, confidence, provenance_id,
		 superseded_by, superseded_at, is_derived, derivation_rule, derived_from, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		f.ID, f.Subject, f.Predicate, f.ValueText, f.ValueInt, f.ValueFloat, f.ValueDate, f.ValueBool,
		f.ValueJSON, f.Object, f.RelationshipAttributes, f.ValidFrom, f.ValidTo, f.Confidence, f.ProvenanceID,
		f.SupersededBy, f.SupersededAt, f.IsDerived, f.DerivationRule, f.DerivedFrom, f.CreatedAt,
	)
	if err != nil {
		return model.Fact{}, fmt.Errorf("storage: create fact: %w", err)
	}
	return f, nil
}

// SupersedeFactTx marks an existing fact as superseded by newFactID. It is
// idempotent-safe to call within the same transaction that inserts
// newFactID, since the new row's own superseded_by stays nil.
func SupersedeFactTx(ctx context.Context, tx pgx.Tx, factID, newFactID uuid.UUID) error {
	now := time.Now().UTC()
	_, err := tx.Exec(ctx,
		`UPDATE facts SET superseded_by = $1, superseded_at = $2 WHERE id = $3`,
		newFactID, now, factID,
	)
	if err != nil {
		return fmt.Errorf("storage: supersede fact: %w", err)
	}
	return nil
}

// GetCurrentFact returns the live fact for (subject, predicate), or
// herr.ErrNotFound if none exists. For relationship predicates, pass object
// to narrow to a specific (subject, predicate, object) triple; pass
// uuid.Nil to match any object.
func (db *DB) GetCurrentFact(ctx context.Context, subject uuid.UUID, predicate model.Predicate, object uuid.UUID) (model.Fact, bool, error) {
	query := `SELECT id, subject, predicate, value_text, value_int, value_float, value_date, value_bool,
		 value_json, object, relationship_attributes, valid_from, valid_to, confidence, provenance_id,
		 superseded_by, superseded_at, is_derived, derivation_rule, derived_from, created_at
		 FROM facts WHERE subject = $1 AND predicate = $2 AND superseded_by IS NULL AND valid_to IS NULL`
	args := []any{subject, predicate}
	if object != uuid.Nil {
		query += ` AND object = $3`
		args = append(args, object)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return model.Fact{}, false, fmt.Errorf("storage: get current fact: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return model.Fact{}, false, rows.Err()
	}
	var f model.Fact
	if err := rows.Scan(&f.ID, &f.Subject, &f.Predicate, &f.ValueText, &f.ValueInt, &f.ValueFloat, &f.ValueDate, &f.ValueBool,
		&f.ValueJSON, &f.Object, &f.RelationshipAttributes, &f.ValidFrom, &f.ValidTo, &f.Confidence, &f.ProvenanceID,
		&f.SupersededBy, &f.SupersededAt, &f.IsDerived, &f.DerivationRule, &f.DerivedFrom, &f.CreatedAt); err != nil {
		return model.Fact{}, false, fmt.Errorf("storage: scan fact: %w", err)
	}
	return f, true, nil
}

// ListCurrentFacts returns every live fact for an entity, as subject or
// object, used by the Relationships façade operation.
func (db *DB) ListCurrentFacts(ctx context.Context, entityID uuid.UUID) ([]model.Fact, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, subject, predicate, value_text, value_int, value_float, value_date, value_bool,
		 value_json, object, relationship_attributes, valid_from, valid_to, confidence, provenance_id,
		 superseded_by, superseded_at, is_derived, derivation_rule, derived_from, created_at
		 FROM facts
		 WHERE (subject = $1 OR object = $1) AND superseded_by IS NULL AND valid_to IS NULL
		 ORDER BY valid_from`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list current facts: %w", err)
	}
	defer rows.Close()

	var out []model.Fact
	for rows.Next() {
		var f model.Fact
		if err := rows.Scan(&f.ID, &f.Subject, &f.Predicate, &f.ValueText, &f.ValueInt, &f.ValueFloat, &f.ValueDate, &f.ValueBool,
			&f.ValueJSON, &f.Object, &f.RelationshipAttributes, &f.ValidFrom, &f.ValidTo, &f.Confidence, &f.ProvenanceID,
			&f.SupersededBy, &f.SupersededAt, &f.IsDerived, &f.DerivationRule, &f.DerivedFrom, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan fact: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListFactHistory returns every fact (current and superseded) naming id as
// subject or object under predicate, ordered oldest-first. Derivation rules
// that need the full change history rather than just the live fact (e.g.
// director_velocity_v1 counting appointment turnover) use this instead of
// ListCurrentFacts.
func (db *DB) ListFactHistory(ctx context.Context, id uuid.UUID, predicate model.Predicate) ([]model.Fact, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, subject, predicate, value_text, value_int, value_float, value_date, value_bool,
		 value_json, object, relationship_attributes, valid_from, valid_to, confidence, provenance_id,
		 superseded_by, superseded_at, is_derived, derivation_rule, derived_from, created_at
		 FROM facts
		 WHERE (subject = $1 OR object = $1) AND predicate = $2
		 ORDER BY valid_from`,
		id, predicate,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list fact history: %w", err)
	}
	defer rows.Close()

	var out []model.Fact
	for rows.Next() {
		var f model.Fact
		if err := rows.Scan(&f.ID, &f.Subject, &f.Predicate, &f.ValueText, &f.ValueInt, &f.ValueFloat, &f.ValueDate, &f.ValueBool,
			&f.ValueJSON, &f.Object, &f.RelationshipAttributes, &f.ValidFrom, &f.ValidTo, &f.Confidence, &f.ProvenanceID,
			&f.SupersededBy, &f.SupersededAt, &f.IsDerived, &f.DerivationRule, &f.DerivedFrom, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan fact: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountRegisteredAtByKind returns how many live COMPANY and PERSON subjects
// are currently REGISTERED_AT addressID, feeding address_statistics_v1.
func (db *DB) CountRegisteredAtByKind(ctx context.Context, addressID uuid.UUID) (companyCount, personCount int, err error) {
	err = db.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE e.kind = 'COMPANY'),
		   COUNT(*) FILTER (WHERE e.kind = 'PERSON')
		 FROM facts f
		 JOIN entities e ON e.id = f.subject
		 WHERE f.object = $1 AND f.predicate = 'REGISTERED_AT'
		   AND f.superseded_by IS NULL AND f.valid_to IS NULL`,
		addressID,
	).Scan(&companyCount, &personCount)
	if err != nil {
		return 0, 0, fmt.Errorf("storage: count registered-at by kind: %w", err)
	}
	return companyCount, personCount, nil
}

// ListFactsByPredicate returns every live fact with the given predicate,
// used by derivation rules that scan one predicate across all entities
// (e.g. recomputing shell indicators over every COMPANY).
func (db *DB) ListFactsByPredicate(ctx context.Context, predicate model.Predicate) ([]model.Fact, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, subject, predicate, value_text, value_int, value_float, value_date, value_bool,
		 value_json, object, relationship_attributes, valid_from, valid_to, confidence, provenance_id,
		 superseded_by, superseded_at, is_derived, derivation_rule, derived_from, created_at
		 FROM facts WHERE predicate = $1 AND superseded_by IS NULL AND valid_to IS NULL`,
		predicate,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list facts by predicate: %w", err)
	}
	defer rows.Close()

	var out []model.Fact
	for rows.Next() {
		var f model.Fact
		if err := rows.Scan(&f.ID, &f.Subject, &f.Predicate, &f.ValueText, &f.ValueInt, &f.ValueFloat, &f.ValueDate, &f.ValueBool,
			&f.ValueJSON, &f.Object, &f.RelationshipAttributes, &f.ValidFrom, &f.ValidTo, &f.Confidence, &f.ProvenanceID,
			&f.SupersededBy, &f.SupersededAt, &f.IsDerived, &f.DerivationRule, &f.DerivedFrom, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan fact: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
