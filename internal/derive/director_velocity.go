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

// director_velocity_v1: count of director changes per unit time on a
// company. Every DIRECTOR_OF fact naming the company as object,
// past or present, is one appointment event; velocity is that count within
// a trailing window, expressed per year.

func (e *Engine) runDirectorVelocity(ctx context.Context) (RuleReport, error) {
	companies, err := e.db.ListActiveEntitiesByKind(ctx, model.EntityCompany)
	if err != nil {
		return RuleReport{}, fmt.Errorf("list companies: %w", err)
	}
	return runOverEntities(ctx, "director_velocity_v1", companies, e.config.RuleConcurrency, e.deriveDirectorVelocity), nil
}

func (e *Engine) deriveDirectorVelocity(ctx context.Context, company model.Entity) error {
	history, err := e.db.ListFactHistory(ctx, company.ID, model.PredicateDirectorOf)
	if err != nil {
		return fmt.Errorf("list director history: %w", err)
	}
	now := time.Now().UTC()
	velocity := directorChangeVelocity(history, now, e.config.VelocityWindow)
	currentDirectors := countCurrentFacts(history)

	attrs, err := e.db.GetCompanyAttributes(ctx, company.ID)
	if err != nil {
		return fmt.Errorf("get company attributes: %w", err)
	}
	if attrs.DirectorChangeVelocity == velocity && attrs.DirectorCount == currentDirectors {
		return nil
	}
	attrs.DirectorChangeVelocity = velocity
	attrs.DirectorCount = currentDirectors

	prior, hasPrior, err := e.db.GetCurrentFact(ctx, company.ID, model.PredicateDirectorVelocity, uuid.Nil)
	if err != nil {
		return fmt.Errorf("get current director-velocity fact: %w", err)
	}
	inputs := factIDs(history)

	return e.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		prov, err := derivedProvenance(ctx, tx, "director_velocity_v1", inputs)
		if err != nil {
			return fmt.Errorf("create provenance: %w", err)
		}
		if err := storage.UpsertCompanyAttributesTx(ctx, tx, attrs); err != nil {
			return fmt.Errorf("upsert company attributes: %w", err)
		}
		v := velocity
		return supersedeDerivedFact(ctx, tx, prior, hasPrior, model.Fact{
			Subject:        company.ID,
			Predicate:      model.PredicateDirectorVelocity,
			ValueFloat:     &v,
			Confidence:     1.0,
			ProvenanceID:   prov.ID,
			DerivationRule: "director_velocity_v1",
			DerivedFrom:    inputs,
		})
	})
}

// directorChangeVelocity counts appointment/removal events whose ValidFrom
// falls within the trailing window and expresses it per year, so a company
// with no history at all yields zero rather than a division artifact.
func directorChangeVelocity(history []model.Fact, now time.Time, window time.Duration) float64 {
	if window <= 0 {
		return 0
	}
	windowStart := now.Add(-window)
	count := 0
	for _, f := range history {
		if !f.ValidFrom.Before(windowStart) {
			count++
		}
	}
	years := window.Hours() / 24 / 365
	return float64(count) / years
}

// countCurrentFacts counts the facts in history that are still live.
func countCurrentFacts(history []model.Fact) int {
	n := 0
	for _, f := range history {
		if f.IsCurrent() {
			n++
		}
	}
	return n
}
