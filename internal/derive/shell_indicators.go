package derive

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/halo-intel/halo/internal/model"
	"github.com/halo-intel/halo/internal/storage"
)

// company_shell_indicators_v1: accumulates tags describing why a company
// looks like a shell — low/zero headcount, low/zero revenue,
// registration at a hub address, an SNI code in the configured
// shell-prone set, and rapid director turnover. Runs after
// address_statistics_v1 (registration_hub) and director_velocity_v1
// (high_velocity), whose outputs it reads.

const (
	shellIndicatorLowHeadcount     = "low_headcount"
	shellIndicatorLowRevenue       = "low_revenue"
	shellIndicatorRegistrationHub  = "registration_hub"
	shellIndicatorShellProneSNI    = "shell_prone_sni"
	shellIndicatorHighVelocity     = "high_velocity"
)

func (e *Engine) runShellIndicators(ctx context.Context) (RuleReport, error) {
	companies, err := e.db.ListActiveEntitiesByKind(ctx, model.EntityCompany)
	if err != nil {
		return RuleReport{}, fmt.Errorf("list companies: %w", err)
	}
	return runOverEntities(ctx, "company_shell_indicators_v1", companies, e.config.RuleConcurrency, e.deriveShellIndicators), nil
}

func (e *Engine) deriveShellIndicators(ctx context.Context, company model.Entity) error {
	attrs, err := e.db.GetCompanyAttributes(ctx, company.ID)
	if err != nil {
		return fmt.Errorf("get company attributes: %w", err)
	}

	var registrationHub bool
	var inputs []uuid.UUID
	registeredAt, found, err := e.db.GetCurrentFact(ctx, company.ID, model.PredicateRegisteredAt, uuid.Nil)
	if err != nil {
		return fmt.Errorf("get registered-at fact: %w", err)
	}
	if found {
		inputs = append(inputs, registeredAt.ID)
		if registeredAt.Object != nil {
			addrAttrs, err := e.db.GetAddressAttributes(ctx, *registeredAt.Object)
			if err != nil {
				return fmt.Errorf("get address attributes: %w", err)
			}
			registrationHub = addrAttrs.RegistrationHub
		}
	}

	indicators := shellIndicatorsFor(attrs, registrationHub, e.config)
	if slices.Equal(attrs.ShellIndicators, indicators) {
		return nil
	}
	attrs.ShellIndicators = indicators

	prior, hasPrior, err := e.db.GetCurrentFact(ctx, company.ID, model.PredicateShellIndicator, uuid.Nil)
	if err != nil {
		return fmt.Errorf("get current shell-indicator fact: %w", err)
	}

	return e.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		prov, err := derivedProvenance(ctx, tx, "company_shell_indicators_v1", inputs)
		if err != nil {
			return fmt.Errorf("create provenance: %w", err)
		}
		if err := storage.UpsertCompanyAttributesTx(ctx, tx, attrs); err != nil {
			return fmt.Errorf("upsert company attributes: %w", err)
		}
		return supersedeDerivedFact(ctx, tx, prior, hasPrior, model.Fact{
			Subject:        company.ID,
			Predicate:      model.PredicateShellIndicator,
			ValueJSON:      map[string]any{"indicators": indicators},
			Confidence:     1.0,
			ProvenanceID:   prov.ID,
			DerivationRule: "company_shell_indicators_v1",
			DerivedFrom:    inputs,
		})
	})
}

// shellIndicatorsFor computes the indicator tag set (in a fixed tag order) for a company,
// a pure function of its attributes and its address's registration_hub
// flag so re-derivation on unchanged inputs is byte-identical.
func shellIndicatorsFor(attrs model.CompanyAttributes, registrationHub bool, cfg Config) []string {
	var tags []string
	if attrs.LatestEmployees != nil && *attrs.LatestEmployees <= cfg.LowHeadcountMax {
		tags = append(tags, shellIndicatorLowHeadcount)
	}
	if attrs.LatestRevenue != nil && *attrs.LatestRevenue <= cfg.LowRevenueMax {
		tags = append(tags, shellIndicatorLowRevenue)
	}
	if registrationHub {
		tags = append(tags, shellIndicatorRegistrationHub)
	}
	if hasShellProneSNI(attrs.SNICodes, cfg.ShellProneSNICodes) {
		tags = append(tags, shellIndicatorShellProneSNI)
	}
	if attrs.DirectorChangeVelocity > cfg.ShellVelocityMin {
		tags = append(tags, shellIndicatorHighVelocity)
	}
	return tags
}

func hasShellProneSNI(companySNI, shellProne []string) bool {
	for _, sni := range companySNI {
		if slices.Contains(shellProne, sni) {
			return true
		}
	}
	return false
}
