package derive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/halo-intel/halo/internal/model"
	"github.com/halo-intel/halo/internal/storage"
)

// address_statistics_v1: company_count, person_count, and a
// registration_hub flag once company_count crosses the configured
// threshold. No Fact predicate is defined for this rule — only
// RISK_SCORE, SHELL_INDICATOR, DIRECTOR_VELOCITY, and NETWORK_CLUSTER are
// derived-fact predicates — so its output lives solely on AddressAttributes,
// which company_shell_indicators_v1 then reads.

func (e *Engine) runAddressStatistics(ctx context.Context) (RuleReport, error) {
	addresses, err := e.db.ListActiveEntitiesByKind(ctx, model.EntityAddress)
	if err != nil {
		return RuleReport{}, fmt.Errorf("list addresses: %w", err)
	}
	return runOverEntities(ctx, "address_statistics_v1", addresses, e.config.RuleConcurrency, e.deriveAddressStatistics), nil
}

func (e *Engine) deriveAddressStatistics(ctx context.Context, address model.Entity) error {
	companyCount, personCount, err := e.db.CountRegisteredAtByKind(ctx, address.ID)
	if err != nil {
		return fmt.Errorf("count registered-at: %w", err)
	}
	registrationHub := companyCount >= e.config.RegistrationHubCompanyCount

	attrs, err := e.db.GetAddressAttributes(ctx, address.ID)
	if err != nil {
		return fmt.Errorf("get address attributes: %w", err)
	}
	if attrs.CompanyCount == companyCount && attrs.PersonCount == personCount && attrs.RegistrationHub == registrationHub {
		return nil
	}
	attrs.CompanyCount = companyCount
	attrs.PersonCount = personCount
	attrs.RegistrationHub = registrationHub

	return e.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		return storage.UpsertAddressAttributesTx(ctx, tx, attrs)
	})
}
