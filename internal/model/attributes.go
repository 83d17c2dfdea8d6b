package model

import (
	"time"

	"github.com/google/uuid"
)

// PersonAttributes is the one-per-entity attribute row for PERSON entities.
type PersonAttributes struct {
	EntityID               uuid.UUID  `json:"entity_id"`
	BirthYear              *int       `json:"birth_year,omitempty"`
	BirthDate              *time.Time `json:"birth_date,omitempty"`
	Gender                 *string    `json:"gender,omitempty"` // "M" or "F"
	DirectorshipCount      int        `json:"directorship_count"`
	ShareholdingCount      int        `json:"shareholding_count"`
	RiskScore              float64    `json:"risk_score"`
	RiskFactors            []string   `json:"risk_factors"`
	NetworkClusterID       *string    `json:"network_cluster_id,omitempty"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// CompanyStatus mirrors Bolagsverket-style registration status strings.
type CompanyStatus string

const (
	CompanyStatusActive          CompanyStatus = "ACTIVE"
	CompanyStatusLiquidation     CompanyStatus = "LIQUIDATION"
	CompanyStatusBankruptcy      CompanyStatus = "BANKRUPTCY"
	CompanyStatusDissolved       CompanyStatus = "DISSOLVED"
	CompanyStatusReconstruction  CompanyStatus = "RECONSTRUCTION"
)

// CompanyAttributes is the one-per-entity attribute row for COMPANY entities.
type CompanyAttributes struct {
	EntityID                uuid.UUID     `json:"entity_id"`
	LegalForm                string        `json:"legal_form,omitempty"`
	Status                   CompanyStatus `json:"status"`
	RegistrationDate         *time.Time    `json:"registration_date,omitempty"`
	DissolutionDate          *time.Time    `json:"dissolution_date,omitempty"`
	SNICodes                 []string      `json:"sni_codes"`
	LatestRevenue             *float64      `json:"latest_revenue,omitempty"`
	LatestEmployees           *int          `json:"latest_employees,omitempty"`
	DirectorCount             int           `json:"director_count"`
	DirectorChangeVelocity    float64       `json:"director_change_velocity"`
	ShellIndicators           []string      `json:"shell_indicators"`
	RiskScore                 float64       `json:"risk_score"`
	NetworkClusterID          *string       `json:"network_cluster_id,omitempty"`
	UpdatedAt                 time.Time    `json:"updated_at"`
}

// AddressAttributes is the one-per-entity attribute row for ADDRESS entities.
type AddressAttributes struct {
	EntityID          uuid.UUID `json:"entity_id"`
	Street            string    `json:"street"`
	StreetNumber      string    `json:"street_number,omitempty"`
	Entrance          string    `json:"entrance,omitempty"`
	PostalCode        string    `json:"postal_code"`
	City              string    `json:"city"`
	Latitude          *float64  `json:"latitude,omitempty"`
	Longitude         *float64  `json:"longitude,omitempty"`
	VulnerableArea    bool      `json:"vulnerable_area"`
	CompanyCount      int       `json:"company_count"`
	PersonCount       int       `json:"person_count"`
	RegistrationHub   bool      `json:"registration_hub"`
	UpdatedAt         time.Time `json:"updated_at"`
}
