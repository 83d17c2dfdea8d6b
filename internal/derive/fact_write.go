package derive

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/halo-intel/halo/internal/model"
	"github.com/halo-intel/halo/internal/storage"
)

// supersedeDerivedFact inserts newFact as the live fact for its
// (subject, predicate) and, if a prior derived fact existed, supersedes it
// in the same transaction. Mirrors the append-only supersession
// internal/resolver/merge.go uses for fact rewriting on merge.
func supersedeDerivedFact(ctx context.Context, tx pgx.Tx, prior model.Fact, hasPrior bool, newFact model.Fact) error {
	newFact.IsDerived = true
	created, err := storage.CreateFactTx(ctx, tx, newFact)
	if err != nil {
		return fmt.Errorf("create derived fact: %w", err)
	}
	if hasPrior {
		if err := storage.SupersedeFactTx(ctx, tx, prior.ID, created.ID); err != nil {
			return fmt.Errorf("supersede derived fact: %w", err)
		}
	}
	return nil
}

// factIDs extracts the ids of facts, used to populate a derived
// Provenance's DerivedFrom and a derived Fact's DerivedFrom.
func factIDs(facts []model.Fact) []uuid.UUID {
	ids := make([]uuid.UUID, len(facts))
	for i, f := range facts {
		ids[i] = f.ID
	}
	return ids
}

// derivedProvenance builds the SourceDerived provenance record every
// derivation rule attaches to its output: a DERIVED_COMPUTATION record
// referencing the facts the computation read.
func derivedProvenance(ctx context.Context, tx pgx.Tx, rule string, inputs []uuid.UUID) (model.Provenance, error) {
	return storage.CreateProvenanceTx(ctx, tx, model.Provenance{
		SourceKind:          model.SourceDerived,
		SourceID:            "derive." + rule,
		ExtractionMethod:    rule,
		ExtractionTimestamp: time.Now().UTC(),
		DerivedFrom:         inputs,
		DerivationRule:      rule,
	})
}
