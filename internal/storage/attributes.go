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

// UpsertPersonAttributesTx inserts or replaces the one-per-entity
// PersonAttributes row within tx.
func UpsertPersonAttributesTx(ctx context.Context, tx pgx.Tx, a model.PersonAttributes) error {
	a.UpdatedAt = time.Now().UTC()
	_, err := tx.Exec(ctx,
		`INSERT INTO person_attributes (entity_id, birth_year, birth_date, gender, directorship_count,
		 shareholding_count, risk_score, risk_factors, network_cluster_id, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (entity_id) DO UPDATE SET
		   birth_year = EXCLUDED.birth_year, birth_date = EXCLUDED.birth_date, gender = EXCLUDED.gender,
		   directorship_count = EXCLUDED.directorship_count, shareholding_count = EXCLUDED.shareholding_count,
		   risk_score = EXCLUDED.risk_score, risk_factors = EXCLUDED.risk_factors,
		   network_cluster_id = EXCLUDED.network_cluster_id, updated_at = EXCLUDED.updated_at`,
		a.EntityID, a.BirthYear, a.BirthDate, a.Gender, a.DirectorshipCount,
		a.ShareholdingCount, a.RiskScore, a.RiskFactors, a.NetworkClusterID, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert person attributes: %w", err)
	}
	return nil
}

// GetPersonAttributes retrieves the PersonAttributes row for entityID.
func (db *DB) GetPersonAttributes(ctx context.Context, entityID uuid.UUID) (model.PersonAttributes, error) {
	var a model.PersonAttributes
	err := db.pool.QueryRow(ctx,
		`SELECT entity_id, birth_year, birth_date, gender, directorship_count, shareholding_count,
		 risk_score, risk_factors, network_cluster_id, updated_at
		 FROM person_attributes WHERE entity_id = $1`, entityID,
	).Scan(&a.EntityID, &a.BirthYear, &a.BirthDate, &a.Gender, &a.DirectorshipCount, &a.ShareholdingCount,
		&a.RiskScore, &a.RiskFactors, &a.NetworkClusterID, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PersonAttributes{}, fmt.Errorf("storage: person attributes %s: %w", entityID, herr.ErrNotFound)
		}
		return model.PersonAttributes{}, fmt.Errorf("storage: get person attributes: %w", err)
	}
	return a, nil
}

// UpsertCompanyAttributesTx inserts or replaces the one-per-entity
// CompanyAttributes row within tx.
func UpsertCompanyAttributesTx(ctx context.Context, tx pgx.Tx, a model.CompanyAttributes) error {
	a.UpdatedAt = time.Now().UTC()
	_, err := tx.Exec(ctx,
		`INSERT INTO company_attributes (entity_id, legal_form, status, registration_date, dissolution_date,
		 sni_codes, latest_revenue, latest_employees, director_count, director_change_velocity,
		 shell_indicators, risk_score, network_cluster_id, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (entity_id) DO UPDATE SET
		   legal_form = EXCLUDED.legal_form, status = EXCLUDED.status,
		   registration_date = EXCLUDED.registration_date, dissolution_date = EXCLUDED.dissolution_date,
		   sni_codes = EXCLUDED.sni_codes, latest_revenue = EXCLUDED.latest_revenue,
		   latest_employees = EXCLUDED.latest_employees, director_count = EXCLUDED.director_count,
		   director_change_velocity = EXCLUDED.director_change_velocity, shell_indicators = EXCLUDED.shell_indicators,
		   risk_score = EXCLUDED.risk_score, network_cluster_id = EXCLUDED.network_cluster_id,
		   updated_at = EXCLUDED.updated_at`,
		a.EntityID, a.LegalForm, a.Status, a.RegistrationDate, a.DissolutionDate,
		a.SNICodes, a.LatestRevenue, a.LatestEmployees, a.DirectorCount, a.DirectorChangeVelocity,
		a.ShellIndicators, a.RiskScore, a.NetworkClusterID, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert company attributes: %w", err)
	}
	return nil
}

// GetCompanyAttributes retrieves the CompanyAttributes row for entityID.
func (db *DB) GetCompanyAttributes(ctx context.Context, entityID uuid.UUID) (model.CompanyAttributes, error) {
	var a model.CompanyAttributes
	err := db.pool.QueryRow(ctx,
		`SELECT entity_id, legal_form, status, registration_date, dissolution_date, sni_codes,
		 latest_revenue, latest_employees, director_count, director_change_velocity,
		 shell_indicators, risk_score, network_cluster_id, updated_at
		 FROM company_attributes WHERE entity_id = $1`, entityID,
	).Scan(&a.EntityID, &a.LegalForm, &a.Status, &a.RegistrationDate, &a.DissolutionDate, &a.SNICodes,
		&a.LatestRevenue, &a.LatestEmployees, &a.DirectorCount, &a.DirectorChangeVelocity,
		&a.ShellIndicators, &a.RiskScore, &a.NetworkClusterID, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CompanyAttributes{}, fmt.Errorf("storage: company attributes %s: %w", entityID, herr.ErrNotFound)
		}
		return model.CompanyAttributes{}, fmt.Errorf("storage: get company attributes: %w", err)
	}
	return a, nil
}

// UpsertAddressAttributesTx inserts or replaces the one-per-entity
// AddressAttributes row within tx.
func UpsertAddressAttributesTx(ctx context.Context, tx pgx.Tx, a model.AddressAttributes) error {
	a.UpdatedAt = time.Now().UTC()
	_, err := tx.Exec(ctx,
		`INSERT INTO address_attributes (entity_id, street, street_number, entrance, postal_code, city,
		 latitude, longitude, vulnerable_area, company_count, person_count, registration_hub, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (entity_id) DO UPDATE SET
		   street = EXCLUDED.street, street_number = EXCLUDED.street_number, entrance = EXCLUDED.entrance,
		   postal_code = EXCLUDED.postal_code, city = EXCLUDED.city, latitude = EXCLUDED.latitude,
		   longitude = EXCLUDED.longitude, vulnerable_area = EXCLUDED.vulnerable_area,
		   company_count = EXCLUDED.company_count, person_count = EXCLUDED.person_count,
		   registration_hub = EXCLUDED.registration_hub, updated_at = EXCLUDED.updated_at`,
		a.EntityID, a.Street, a.StreetNumber, a.Entrance, a.PostalCode, a.City,
		a.Latitude, a.Longitude, a.VulnerableArea, a.CompanyCount, a.PersonCount, a.RegistrationHub, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert address attributes: %w", err)
	}
	return nil
}

// GetAddressAttributes retrieves the AddressAttributes row for entityID.
func (db *DB) GetAddressAttributes(ctx context.Context, entityID uuid.UUID) (model.AddressAttributes, error) {
	var a model.AddressAttributes
	err := db.pool.QueryRow(ctx,
		`SELECT entity_id, street, street_number, entrance, postal_code, city, latitude, longitude,
		 vulnerable_area, company_count, person_count, registration_hub, updated_at
		 FROM address_attributes WHERE entity_id = $1`, entityID,
	).Scan(&a.EntityID, &a.Street, &a.StreetNumber, &a.Entrance, &a.PostalCode, &a.City, &a.Latitude, &a.Longitude,
		&a.VulnerableArea, &a.CompanyCount, &a.PersonCount, &a.RegistrationHub, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AddressAttributes{}, fmt.Errorf("storage: address attributes %s: %w", entityID, herr.ErrNotFound)
		}
		return model.AddressAttributes{}, fmt.Errorf("storage: get address attributes: %w", err)
	}
	return a, nil
}
