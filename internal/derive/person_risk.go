package derive

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/halo-intel/halo/internal/model"
	"github.com/halo-intel/halo/internal/storage"
)

// person_risk_v1: a weighted sum of risk factors, capped at 1.0. Runs after
// company_shell_indicators_v1 and director_velocity_v1,
// both of which it reads off the person's currently-directed companies.

const (
	riskFactorManyDirectorships     = "many_directorships"
	riskFactorShellCompanyDirector  = "shell_company_director"
	riskFactorHighVelocityNetwork   = "high_velocity_network"
	riskFactorVulnerableAreaCompany = "vulnerable_area_companies"
	riskFactorDissolvedHistory      = "dissolved_history"
	riskFactorYoungDirector         = "young_director"
)

// PersonRiskInputs is the input vector person_risk_v1 is a pure function of.
type PersonRiskInputs struct {
	DirectorshipCount         int
	ShellCompanyDirectorCount int
	AvgCompanyVelocity        float64
	VulnerableAreaCompanies   bool
	DissolvedHistoryCount     int
	BirthYear                 *int
}

func (e *Engine) runPersonRisk(ctx context.Context) (RuleReport, error) {
	persons, err := e.db.ListActiveEntitiesByKind(ctx, model.EntityPerson)
	if err != nil {
		return RuleReport{}, fmt.Errorf("list persons: %w", err)
	}
	return runOverEntities(ctx, "person_risk_v1", persons, e.config.RuleConcurrency, e.derivePersonRisk), nil
}

func (e *Engine) derivePersonRisk(ctx context.Context, person model.Entity) error {
	history, err := e.db.ListFactHistory(ctx, person.ID, model.PredicateDirectorOf)
	if err != nil {
		return fmt.Errorf("list directorship history: %w", err)
	}

	current := currentDirectedCompanies(history)
	var shellCount int
	var velocities []float64
	var vulnerableArea bool
	for _, companyID := range current {
		cattrs, err := e.db.GetCompanyAttributes(ctx, companyID)
		if err != nil {
			continue
		}
		if len(cattrs.ShellIndicators) > 0 {
			shellCount++
		}
		velocities = append(velocities, cattrs.DirectorChangeVelocity)

		if vulnerableArea {
			continue
		}
		registeredAt, found, err := e.db.GetCurrentFact(ctx, companyID, model.PredicateRegisteredAt, uuid.Nil)
		if err != nil || !found || registeredAt.Object == nil {
			continue
		}
		addrAttrs, err := e.db.GetAddressAttributes(ctx, *registeredAt.Object)
		if err == nil && addrAttrs.VulnerableArea {
			vulnerableArea = true
		}
	}

	var dissolvedCount int
	for _, companyID := range allDirectedCompanies(history) {
		cattrs, err := e.db.GetCompanyAttributes(ctx, companyID)
		if err == nil && cattrs.Status == model.CompanyStatusDissolved {
			dissolvedCount++
		}
	}

	personAttrs, err := e.db.GetPersonAttributes(ctx, person.ID)
	if err != nil {
		return fmt.Errorf("get person attributes: %w", err)
	}

	in := PersonRiskInputs{
		DirectorshipCount:         len(current),
		ShellCompanyDirectorCount: shellCount,
		AvgCompanyVelocity:        average(velocities),
		VulnerableAreaCompanies:   vulnerableArea,
		DissolvedHistoryCount:     dissolvedCount,
		BirthYear:                 personAttrs.BirthYear,
	}
	score, factors := personRiskV1(in, e.config, time.Now().UTC())

	if personAttrs.RiskScore == score && personAttrs.DirectorshipCount == in.DirectorshipCount && slices.Equal(personAttrs.RiskFactors, factors) {
		return nil
	}
	personAttrs.RiskScore = score
	personAttrs.RiskFactors = factors
	personAttrs.DirectorshipCount = in.DirectorshipCount

	prior, hasPrior, err := e.db.GetCurrentFact(ctx, person.ID, model.PredicateRiskScore, uuid.Nil)
	if err != nil {
		return fmt.Errorf("get current risk-score fact: %w", err)
	}
	inputs := factIDs(history)

	return e.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		prov, err := derivedProvenance(ctx, tx, "person_risk_v1", inputs)
		if err != nil {
			return fmt.Errorf("create provenance: %w", err)
		}
		if err := storage.UpsertPersonAttributesTx(ctx, tx, personAttrs); err != nil {
			return fmt.Errorf("upsert person attributes: %w", err)
		}
		v := score
		return supersedeDerivedFact(ctx, tx, prior, hasPrior, model.Fact{
			Subject:        person.ID,
			Predicate:      model.PredicateRiskScore,
			ValueFloat:     &v,
			Confidence:     1.0,
			ProvenanceID:   prov.ID,
			DerivationRule: "person_risk_v1",
			DerivedFrom:    inputs,
		})
	})
}

// personRiskV1 is the pure weighted-sum risk rule.
func personRiskV1(in PersonRiskInputs, cfg Config, now time.Time) (float64, []string) {
	var score float64
	var factors []string

	if in.DirectorshipCount > cfg.ManyDirectorshipsMin {
		score += 0.2
		factors = append(factors, riskFactorManyDirectorships)
	}
	if in.ShellCompanyDirectorCount > 0 {
		score += 0.3
		factors = append(factors, riskFactorShellCompanyDirector)
	}
	if in.AvgCompanyVelocity > cfg.HighVelocityThreshold {
		score += 0.2
		factors = append(factors, riskFactorHighVelocityNetwork)
	}
	if in.VulnerableAreaCompanies {
		score += 0.15
		factors = append(factors, riskFactorVulnerableAreaCompany)
	}
	if in.DissolvedHistoryCount > cfg.DissolvedHistoryMin {
		score += 0.1
		factors = append(factors, riskFactorDissolvedHistory)
	}
	if in.BirthYear != nil && now.Year()-*in.BirthYear < cfg.YoungDirectorMaxAge {
		score += 0.05
		factors = append(factors, riskFactorYoungDirector)
	}

	return capScore(score), factors
}

func currentDirectedCompanies(history []model.Fact) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, f := range history {
		if f.IsCurrent() && f.Object != nil && !seen[*f.Object] {
			seen[*f.Object] = true
			out = append(out, *f.Object)
		}
	}
	return out
}

func allDirectedCompanies(history []model.Fact) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, f := range history {
		if f.Object != nil && !seen[*f.Object] {
			seen[*f.Object] = true
			out = append(out, *f.Object)
		}
	}
	return out
}

func average(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
