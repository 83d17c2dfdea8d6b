// Package resolver implements entity resolution: blocking, pairwise feature
// scoring, threshold branching into an auto-match, a review-queue entry, or
// a new entity, plus the human-decision and merge operations that follow
// from a review. Every mutation (mention transition, decision rows,
// entity/identifier/attribute inserts) commits in one transaction together
// with its audit entry. Resolver is a struct holding *storage.DB plus its
// concrete collaborators (blocking index, key set, audit writer),
// constructed with New.
package resolver

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/halo-intel/halo/internal/auditlog"
	"github.com/halo-intel/halo/internal/blocking"
	"github.com/halo-intel/halo/internal/compare"
	"github.com/halo-intel/halo/internal/cryptoutil"
	"github.com/halo-intel/halo/internal/herr"
	"github.com/halo-intel/halo/internal/model"
	"github.com/halo-intel/halo/internal/normalize"
	"github.com/halo-intel/halo/internal/storage"
)

// Thresholds bounds the score ranges that separate auto-match, human
// review, and new-entity creation for one entity kind.
type Thresholds struct {
	AutoMatch      float64
	HumanReviewMin float64
}

// DefaultThresholds are the per-kind thresholds: PERSON and COMPANY at
// (0.95, 0.60), ADDRESS at (0.90, 0.50).
var DefaultThresholds = map[model.EntityKind]Thresholds{
	model.EntityPerson:  {AutoMatch: 0.95, HumanReviewMin: 0.60},
	model.EntityCompany: {AutoMatch: 0.95, HumanReviewMin: 0.60},
	model.EntityAddress: {AutoMatch: 0.90, HumanReviewMin: 0.50},
}

// Resolver orchestrates blocking, comparison, and the threshold decision
// for one mention at a time, plus the operations that follow a human
// review (apply_human_decision, merge) and the batch driver over the
// PENDING queue.
type Resolver struct {
	db         *storage.DB
	blocking   *blocking.Index
	keys       cryptoutil.KeySet
	audit      *auditlog.Writer
	thresholds map[model.EntityKind]Thresholds
}

// New builds a Resolver over db, using idx for candidate generation, keys
// for identifier encryption/blind-indexing, and audit for the hash-chained
// audit trail every mutation must carry.
func New(db *storage.DB, idx *blocking.Index, keys cryptoutil.KeySet, audit *auditlog.Writer) *Resolver {
	return &Resolver{db: db, blocking: idx, keys: keys, audit: audit, thresholds: DefaultThresholds}
}

// WithThresholds overrides the Thresholds used for kind, leaving every
// other kind's thresholds untouched. Returns r for chaining.
//
// r.thresholds starts out aliasing the package-level DefaultThresholds map
// (New does not copy it), so the first override always clones before
// mutating — otherwise it would corrupt DefaultThresholds for every other
// Resolver in the process.
func (r *Resolver) WithThresholds(kind model.EntityKind, t Thresholds) *Resolver {
	cloned := make(map[model.EntityKind]Thresholds, len(r.thresholds)+1)
	for k, v := range r.thresholds {
		cloned[k] = v
	}
	cloned[kind] = t
	r.thresholds = cloned
	return r
}

func (r *Resolver) thresholdsFor(kind model.EntityKind) Thresholds {
	if t, ok := r.thresholds[kind]; ok {
		return t
	}
	return Thresholds{AutoMatch: 0.95, HumanReviewMin: 0.60}
}

// ResolveMention resolves one PENDING mention. A mention already in a
// terminal state is returned unchanged. A concurrent-duplicate race
// (unique_violation on the entity/identifier/fact constraints the store
// enforces) is retried exactly once, re-blocking against the winning row
// created by the losing transaction's competitor.
func (r *Resolver) ResolveMention(ctx context.Context, mentionID uuid.UUID) (model.Mention, error) {
	mention, err := r.db.GetMention(ctx, mentionID)
	if err != nil {
		return model.Mention{}, fmt.Errorf("resolver: load mention: %w", err)
	}
	if mention.ResolutionStatus != model.MentionPending {
		return mention, nil
	}

	resolved, err := r.attemptResolve(ctx, mention)
	if err != nil && storage.IsUniqueViolation(err) {
		mention, ferr := r.db.GetMention(ctx, mentionID)
		if ferr != nil {
			return model.Mention{}, fmt.Errorf("resolver: reload mention after race: %w", ferr)
		}
		if mention.ResolutionStatus != model.MentionPending {
			return mention, nil
		}
		resolved, err = r.attemptResolve(ctx, mention)
		if err != nil && storage.IsUniqueViolation(err) {
			err = fmt.Errorf("resolver: %w: %w", herr.ErrConflict, err)
		}
	}
	if err != nil {
		r.writeFailureAudit(ctx, mention, err)
		return model.Mention{}, err
	}
	return resolved, nil
}

func (r *Resolver) attemptResolve(ctx context.Context, mention model.Mention) (model.Mention, error) {
	in, err := r.mentionInput(mention)
	if err != nil {
		return model.Mention{}, fmt.Errorf("resolver: build blocking input: %w", err)
	}

	block, err := r.blocking.Candidates(ctx, in)
	if err != nil {
		return model.Mention{}, fmt.Errorf("resolver: block mention: %w", err)
	}
	if len(block.Candidates) == 0 {
		return r.createNewEntity(ctx, mention, "new_entity")
	}

	scored, err := r.scoreCandidates(ctx, mention, block)
	if err != nil {
		return model.Mention{}, fmt.Errorf("resolver: score candidates: %w", err)
	}

	best := argmax(scored)
	thresholds := r.thresholdsFor(mention.Kind)

	switch {
	case best.score >= thresholds.AutoMatch:
		return r.finalizeAutoMatch(ctx, mention, best)
	case best.score >= thresholds.HumanReviewMin:
		return r.finalizePendingReview(ctx, mention, scored)
	default:
		return r.createNewEntity(ctx, mention, "new_entity")
	}
}

type scoredCandidate struct {
	entity   model.Entity
	score    float64
	features compare.Features
}

// argmax returns the highest-scoring candidate, breaking ties by the
// smaller entity id: deterministic, though human review can still override.
func argmax(scored []scoredCandidate) scoredCandidate {
	best := scored[0]
	for _, c := range scored[1:] {
		switch {
		case c.score > best.score:
			best = c
		case c.score == best.score && bytes.Compare(c.entity.ID[:], best.entity.ID[:]) < 0:
			best = c
		}
	}
	return best
}

func (r *Resolver) scoreCandidates(ctx context.Context, mention model.Mention, block blocking.Result) ([]scoredCandidate, error) {
	out := make([]scoredCandidate, 0, len(block.Candidates))
	for _, candidate := range block.Candidates {
		input, err := r.compareInput(ctx, mention, candidate, block.ExactIdentifier && len(block.Candidates) == 1)
		if err != nil {
			return nil, err
		}
		features := compare.ComputeFeatures(input)
		score := compare.Score(mention.Kind, features)
		out = append(out, scoredCandidate{entity: candidate, score: score, features: features})
	}
	return out, nil
}

// compareInput assembles the pairwise Input for one mention/candidate pair.
// Network overlap is left inapplicable here: at resolution time the
// mention has no entity of its own yet, so there is no distance-1 neighbor
// set on its side to compare. No other resolver path supplies neighbor
// sets either, so network overlap never contributes to a resolver score.
func (r *Resolver) compareInput(ctx context.Context, mention model.Mention, candidate model.Entity, exactIdentifier bool) (compare.Input, error) {
	in := compare.Input{
		IdentifierMatch: exactIdentifier,
		NameA:           mention.NormalizedForm,
		NameB:           candidate.CanonicalName,
	}

	switch mention.Kind {
	case model.EntityPerson:
		if by := extractBirthYear(mention); by != nil {
			if attrs, err := r.db.GetPersonAttributes(ctx, candidate.ID); err == nil {
				in.BirthYearA = by
				in.BirthYearB = attrs.BirthYear
			}
		}
	case model.EntityAddress:
		if snap := extractAddressSnapshot(mention); snap != nil {
			if attrs, err := r.db.GetAddressAttributes(ctx, candidate.ID); err == nil {
				in.AddressA = snap
				in.AddressB = &compare.AddressSnapshot{
					PostalCode:   attrs.PostalCode,
					Street:       attrs.Street,
					StreetNumber: attrs.StreetNumber,
				}
			}
		}
	}

	return in, nil
}

func (r *Resolver) finalizeAutoMatch(ctx context.Context, mention model.Mention, best scoredCandidate) (model.Mention, error) {
	var resolved model.Mention
	err := r.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := storage.CreateResolutionDecisionTx(ctx, tx, model.ResolutionDecision{
			MentionID:       mention.ID,
			CandidateEntity: &best.entity.ID,
			OverallScore:    best.score,
			FeatureScores:   best.features.FeatureScores,
			Decision:        model.DecisionAutoMatch,
		}); err != nil {
			return err
		}

		confidence := best.score
		if err := storage.ResolveMentionTx(ctx, tx, mention.ID, model.MentionAutoMatched, &best.entity.ID, &confidence, "auto_match", "resolver"); err != nil {
			return err
		}

		if _, err := r.appendAudit(ctx, tx, "mention.auto_matched", mention.ID.String(), best.entity.ID.String(), map[string]any{
			"score": best.score,
		}); err != nil {
			return err
		}

		var getErr error
		resolved, getErr = getMentionTx(ctx, tx, mention.ID)
		return getErr
	})
	if err != nil {
		return model.Mention{}, err
	}
	return resolved, nil
}

func (r *Resolver) finalizePendingReview(ctx context.Context, mention model.Mention, scored []scoredCandidate) (model.Mention, error) {
	var resolved model.Mention
	err := r.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		for _, c := range scored {
			candidateID := c.entity.ID
			if _, err := storage.CreateResolutionDecisionTx(ctx, tx, model.ResolutionDecision{
				MentionID:       mention.ID,
				CandidateEntity: &candidateID,
				OverallScore:    c.score,
				FeatureScores:   c.features.FeatureScores,
				Decision:        model.DecisionPendingReview,
			}); err != nil {
				return err
			}
		}

		if _, err := r.appendAudit(ctx, tx, "mention.pending_review", mention.ID.String(), "", map[string]any{
			"candidate_count": len(scored),
		}); err != nil {
			return err
		}

		var getErr error
		resolved, getErr = getMentionTx(ctx, tx, mention.ID)
		return getErr
	})
	if err != nil {
		return model.Mention{}, err
	}
	return resolved, nil
}

// writeFailureAudit records a resolution failure without blocking the
// caller's error return; audit is best-effort here since the mutating
// transaction that failed never committed, and every mutating error path
// still writes an audit entry describing the failure.
func (r *Resolver) writeFailureAudit(ctx context.Context, mention model.Mention, cause error) {
	store := storage.NewAuditStore(r.db)
	_, _ = r.audit.Append(ctx, store, model.AuditEntry{
		EventType:  "mention.resolution_failed",
		ActorType:  model.ActorSystem,
		ActorID:    "resolver",
		TargetType: "mention",
		TargetID:   mention.ID.String(),
		EventData:  map[string]any{"error": cause.Error()},
	})
}

func (r *Resolver) appendAudit(ctx context.Context, tx pgx.Tx, eventType, targetID, relatedEntity string, data map[string]any) (model.AuditEntry, error) {
	return r.appendAuditTyped(ctx, tx, eventType, "mention", targetID, relatedEntity, data)
}

func (r *Resolver) appendAuditTyped(ctx context.Context, tx pgx.Tx, eventType, targetType, targetID, relatedEntity string, data map[string]any) (model.AuditEntry, error) {
	if relatedEntity != "" {
		data["entity_id"] = relatedEntity
	}
	store := storage.NewAuditStoreTx(tx)
	return r.audit.Append(ctx, store, model.AuditEntry{
		EventType:  eventType,
		ActorType:  model.ActorSystem,
		ActorID:    "resolver",
		TargetType: targetType,
		TargetID:   targetID,
		EventData:  data,
	})
}

func getMentionTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Mention, error) {
	var m model.Mention
	err := tx.QueryRow(ctx,
		`SELECT id, kind, surface_form, normalized_form, extracted_personnummer, extracted_orgnummer,
		 extracted_attributes, provenance_id, document_location, resolution_status, resolved_to,
		 resolution_confidence, resolution_method, resolver_identity, resolved_at, created_at
		 FROM mentions WHERE id = $1`, id,
	).Scan(&m.ID, &m.Kind, &m.SurfaceForm, &m.NormalizedForm, &m.ExtractedPersonnummer, &m.ExtractedOrgnummer,
		&m.ExtractedAttributes, &m.ProvenanceID, &m.DocumentLocation, &m.ResolutionStatus, &m.ResolvedTo,
		&m.ResolutionConfidence, &m.ResolutionMethod, &m.ResolverIdentity, &m.ResolvedAt, &m.CreatedAt)
	if err != nil {
		return model.Mention{}, fmt.Errorf("resolver: reload mention: %w", err)
	}
	return m, nil
}

// mentionInput builds blocking.MentionInput from a mention, computing the
// blind index of any extracted identifier so exact-identifier blocking
// (strategy 1) never needs to decrypt a stored value to find it.
func (r *Resolver) mentionInput(mention model.Mention) (blocking.MentionInput, error) {
	in := blocking.MentionInput{
		Kind:           mention.Kind,
		NormalizedForm: mention.NormalizedForm,
		BirthYear:      extractBirthYear(mention),
	}

	if snap := extractAddressSnapshot(mention); snap != nil {
		in.PostalCode = snap.PostalCode
	}

	kind, normalized, ok, err := identifierForMention(mention)
	if err != nil {
		return blocking.MentionInput{}, err
	}
	if ok {
		in.IdentifierKind = kind
		in.IdentifierBlind = cryptoutil.BlindIndex(r.keys.BlindIndexKey, normalized)
	}
	return in, nil
}

// identifierForMention extracts and normalizes the mention's identifier
// (personnummer/samordningsnummer for persons, organisationsnummer for
// companies), returning ok=false when the mention carries none.
func identifierForMention(mention model.Mention) (kind model.IdentifierKind, normalized string, ok bool, err error) {
	switch mention.Kind {
	case model.EntityPerson:
		if mention.ExtractedPersonnummer == "" {
			return "", "", false, nil
		}
		pnr, err := normalize.ParsePersonnummer(mention.ExtractedPersonnummer)
		if err != nil {
			return "", "", false, fmt.Errorf("%w: %v", herr.ErrValidation, err)
		}
		k := model.IdentifierPersonnummer
		if pnr.IsSamordningsnummer {
			k = model.IdentifierSamordningsnummer
		}
		return k, pnr.Normalized, true, nil
	case model.EntityCompany:
		if mention.ExtractedOrgnummer == "" {
			return "", "", false, nil
		}
		org, err := normalize.ParseOrganisationsnummer(mention.ExtractedOrgnummer)
		if err != nil {
			return "", "", false, fmt.Errorf("%w: %v", herr.ErrValidation, err)
		}
		return model.IdentifierOrganisationsnummer, org.Normalized, true, nil
	default:
		return "", "", false, nil
	}
}
