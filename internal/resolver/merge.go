package resolver

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/halo-intel/halo/internal/herr"
	"github.com/halo-intel/halo/internal/model"
	"github.com/halo-intel/halo/internal/storage"
)

// Merge asserts that entityA and entityB denote the same real-world thing.
// The survivor is the smaller of the two ids by byte order (ids are random
// uuid.New() values, so this is not necessarily the older entity); the other
// transitions to MERGED. Every live fact naming the merged entity as
// subject or object is superseded by an equivalent fact naming the
// survivor, and a SAME_AS fact is appended from the merged entity to the
// survivor. Merge is not transitive at read time — callers that need the
// full equivalence class must follow merged_into chains themselves.
func (r *Resolver) Merge(ctx context.Context, entityA, entityB uuid.UUID, reviewer, justification string) (survivor uuid.UUID, err error) {
	if entityA == entityB {
		return uuid.UUID{}, fmt.Errorf("resolver: %w: cannot merge an entity with itself", herr.ErrValidation)
	}

	survivorID, mergedID := entityA, entityB
	if bytes.Compare(entityB[:], entityA[:]) < 0 {
		survivorID, mergedID = entityB, entityA
	}

	err = r.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		mergeProvenance, perr := storage.CreateProvenanceTx(ctx, tx, model.Provenance{
			SourceKind:          model.SourceManualEntry,
			SourceID:            reviewer,
			ExtractionMethod:    "entity_merge",
			ExtractionTimestamp: time.Now().UTC(),
		})
		if perr != nil {
			return fmt.Errorf("create merge provenance: %w", perr)
		}

		facts, ferr := r.db.ListCurrentFacts(ctx, mergedID)
		if ferr != nil {
			return fmt.Errorf("list current facts: %w", ferr)
		}

		for _, f := range facts {
			rewritten := f
			rewritten.ID = uuid.Nil
			rewritten.SupersededBy = nil
			rewritten.SupersededAt = nil
			rewritten.CreatedAt = time.Time{}
			if f.Subject == mergedID {
				rewritten.Subject = survivorID
			}
			if f.Object != nil && *f.Object == mergedID {
				rewritten.Object = &survivorID
			}

			newFact, cerr := storage.CreateFactTx(ctx, tx, rewritten)
			if cerr != nil {
				return fmt.Errorf("rewrite fact %s: %w", f.ID, cerr)
			}
			if err := storage.SupersedeFactTx(ctx, tx, f.ID, newFact.ID); err != nil {
				return fmt.Errorf("supersede fact %s: %w", f.ID, err)
			}
		}

		if _, err := storage.CreateFactTx(ctx, tx, model.Fact{
			Subject:      mergedID,
			Predicate:    model.PredicateSameAs,
			Object:       &survivorID,
			Confidence:   1.0,
			ProvenanceID: mergeProvenance.ID,
		}); err != nil {
			return fmt.Errorf("create SAME_AS fact: %w", err)
		}

		if err := r.db.UpdateEntityStatus(ctx, tx, mergedID, model.StatusMerged, &survivorID); err != nil {
			return fmt.Errorf("update merged entity status: %w", err)
		}

		if _, err := r.appendAuditTyped(ctx, tx, "entity.merge", "entity", mergedID.String(), survivorID.String(), map[string]any{
			"reviewer":      reviewer,
			"justification": justification,
		}); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		return nil
	})
	if err != nil {
		return uuid.UUID{}, err
	}
	return survivorID, nil
}
