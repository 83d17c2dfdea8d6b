package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/halo-intel/halo/internal/model"
)

// CreateResolutionDecisionTx inserts a ResolutionDecision row within tx,
// recording one candidate considered during resolution of a mention, for
// audit and accuracy measurement.
func CreateResolutionDecisionTx(ctx context.Context, tx pgx.Tx, d model.ResolutionDecision) (model.ResolutionDecision, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO resolution_decisions (id, mention_id, candidate_entity, overall_score,
		 feature_identifier_match, feature_name_jaro_winkler, feature_name_token_jaccard,
		 feature_birth_year_match, feature_address_similarity, feature_network_overlap,
		 decision, reviewer, created_at, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		d.ID, d.MentionID, d.CandidateEntity, d.OverallScore,
		d.FeatureScores.IdentifierMatch, d.FeatureScores.NameJaroWinkler, d.FeatureScores.NameTokenJaccard,
		d.FeatureScores.BirthYearMatch, d.FeatureScores.AddressSimilarity, d.FeatureScores.NetworkOverlap,
		d.Decision, d.Reviewer, d.CreatedAt, d.DecidedAt,
	)
	if err != nil {
		return model.ResolutionDecision{}, fmt.Errorf("storage: create resolution decision: %w", err)
	}
	return d, nil
}

// ListDecisionsForMention returns every candidate decision recorded for a
// mention, ordered by overall_score descending, for human review.
func (db *DB) ListDecisionsForMention(ctx context.Context, mentionID uuid.UUID) ([]model.ResolutionDecision, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, mention_id, candidate_entity, overall_score,
		 feature_identifier_match, feature_name_jaro_winkler, feature_name_token_jaccard,
		 feature_birth_year_match, feature_address_similarity, feature_network_overlap,
		 decision, reviewer, created_at, decided_at
		 FROM resolution_decisions WHERE mention_id = $1 ORDER BY overall_score DESC`,
		mentionID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list decisions for mention: %w", err)
	}
	defer rows.Close()

	var out []model.ResolutionDecision
	for rows.Next() {
		var d model.ResolutionDecision
		if err := rows.Scan(&d.ID, &d.MentionID, &d.CandidateEntity, &d.OverallScore,
			&d.FeatureScores.IdentifierMatch, &d.FeatureScores.NameJaroWinkler, &d.FeatureScores.NameTokenJaccard,
			&d.FeatureScores.BirthYearMatch, &d.FeatureScores.AddressSimilarity, &d.FeatureScores.NetworkOverlap,
			&d.Decision, &d.Reviewer, &d.CreatedAt, &d.DecidedAt); err != nil {
			return nil, fmt.Errorf("storage: scan resolution decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListReviewQueue returns mentions whose best-scoring decision is
// PENDING_REVIEW, for the human review queue façade operation. kind filters
// to one entity kind when non-empty.
func (db *DB) ListReviewQueue(ctx context.Context, kind model.EntityKind, limit int) ([]model.Mention, error) {
	query := `SELECT DISTINCT m.id, m.kind, m.surface_form, m.normalized_form, m.extracted_personnummer,
		 m.extracted_orgnummer, m.extracted_attributes, m.provenance_id, m.document_location,
		 m.resolution_status, m.resolved_to, m.resolution_confidence, m.resolution_method,
		 m.resolver_identity, m.resolved_at, m.created_at
		 FROM mentions m
		 JOIN resolution_decisions rd ON rd.mention_id = m.id
		 WHERE m.resolution_status = 'PENDING' AND rd.decision = 'PENDING_REVIEW'`
	args := []any{}
	if kind != "" {
		query += ` AND m.kind = $1`
		args = append(args, kind)
	}
	query += fmt.Sprintf(` ORDER BY m.created_at LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list review queue: %w", err)
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
