package patterns

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// RegistrationMillParams bounds the registration-mill query: an address
// registering an unusually large number of unusually young companies.
type RegistrationMillParams struct {
	MinCompanyCount int     // addresses with fewer registered companies never qualify
	MaxMedianAgeDays float64 // median company age at the address must fall below this
}

// DefaultRegistrationMillParams flags addresses with 10+ registered
// companies whose median age is under 180 days.
var DefaultRegistrationMillParams = RegistrationMillParams{
	MinCompanyCount:  10,
	MaxMedianAgeDays: 180,
}

// RegistrationMillMatch is one address registering an unusual concentration
// of recently-formed companies.
type RegistrationMillMatch struct {
	AddressID     uuid.UUID
	CompanyCount  int
	MedianAgeDays float64
}

// RegistrationMillResult is the ranked match set.
type RegistrationMillResult struct {
	Matches   []RegistrationMillMatch
	Truncated bool
}

// RegistrationMill returns addresses whose registered-company count meets
// MinCompanyCount and whose companies' median age (registration_date to
// now) is under MaxMedianAgeDays, ordered by company count descending. Both
// figures are computed directly from company_attributes.registration_date
// rather than address_attributes.company_count, since the pattern cares
// about company age, which address_statistics_v1 does not track.
func (d *Detector) RegistrationMill(ctx context.Context, params RegistrationMillParams) (RegistrationMillResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.StatementTimeout)
	defer cancel()

	const query = `
		SELECT f.object AS address_id,
		       COUNT(*) AS company_count,
		       percentile_cont(0.5) WITHIN GROUP (
		           ORDER BY EXTRACT(EPOCH FROM (now() - c.registration_date)) / 86400.0
		       ) AS median_age_days
		FROM facts f
		JOIN company_attributes c ON c.entity_id = f.subject
		WHERE f.predicate = 'REGISTERED_AT'
		  AND f.superseded_by IS NULL AND f.valid_to IS NULL
		  AND c.registration_date IS NOT NULL
		GROUP BY f.object
		HAVING COUNT(*) >= $1
		   AND percentile_cont(0.5) WITHIN GROUP (
		           ORDER BY EXTRACT(EPOCH FROM (now() - c.registration_date)) / 86400.0
		       ) < $2
		ORDER BY COUNT(*) DESC
		LIMIT $3`

	rows, err := d.db.Pool().Query(ctx, query, params.MinCompanyCount, params.MaxMedianAgeDays, d.cfg.MaxResults+1)
	if err != nil {
		return RegistrationMillResult{}, fmt.Errorf("patterns: registration mill query: %w", err)
	}
	defer rows.Close()

	var matches []RegistrationMillMatch
	for rows.Next() {
		var m RegistrationMillMatch
		if err := rows.Scan(&m.AddressID, &m.CompanyCount, &m.MedianAgeDays); err != nil {
			return RegistrationMillResult{}, fmt.Errorf("patterns: scan registration mill row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return RegistrationMillResult{}, fmt.Errorf("patterns: registration mill rows: %w", err)
	}

	if len(matches) > d.cfg.MaxResults {
		return RegistrationMillResult{Matches: matches[:d.cfg.MaxResults], Truncated: true}, nil
	}
	return RegistrationMillResult{Matches: matches}, nil
}
