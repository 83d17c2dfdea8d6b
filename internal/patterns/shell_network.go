package patterns

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ShellNetworkParams bounds the shell-network query.
type ShellNetworkParams struct {
	MinCompanies     int     // default 3
	MaxEmployees     int     // default 2
	MaxRevenue       float64 // default 500_000
	IncludeDissolved bool    // default false
}

// DefaultShellNetworkParams holds the baseline shell-size thresholds.
var DefaultShellNetworkParams = ShellNetworkParams{
	MinCompanies: 3,
	MaxEmployees: 2,
	MaxRevenue:   500_000,
}

// ShellNetworkMatch is one person directing at least MinCompanies
// shell-sized companies.
type ShellNetworkMatch struct {
	PersonID        uuid.UUID
	PersonName      string
	CompanyIDs      []uuid.UUID
	ShellIndicators []string
	RiskScore       float64
}

// ShellNetworkResult is the ranked match set, flagged Truncated when
// MaxResults capped the output before every qualifying person was scanned.
type ShellNetworkResult struct {
	Matches   []ShellNetworkMatch
	Truncated bool
}

// ShellNetwork returns persons who are currently DIRECTOR_OF at least
// params.MinCompanies companies each satisfying the shell-size caps,
// ordered by company count descending then risk score descending. The
// statement runs under cfg.StatementTimeout; exceeding it returns the
// query's error and no partial result, distinct from the MaxResults cap which degrades to
// Truncated=true on a clean, complete-enough result.
func (d *Detector) ShellNetwork(ctx context.Context, params ShellNetworkParams) (ShellNetworkResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.StatementTimeout)
	defer cancel()

	statusFilter := "c.status != 'DISSOLVED'"
	if params.IncludeDissolved {
		statusFilter = "TRUE"
	}

	query := fmt.Sprintf(`
		SELECT p.entity_id, e.canonical_name, p.risk_score,
		       array_agg(DISTINCT c.entity_id) AS company_ids,
		       array_remove(array_agg(DISTINCT ind), NULL) AS indicators
		FROM facts f
		JOIN entities e ON e.id = f.subject
		JOIN person_attributes p ON p.entity_id = f.subject
		JOIN company_attributes c ON c.entity_id = f.object
		LEFT JOIN LATERAL unnest(c.shell_indicators) AS ind ON TRUE
		WHERE f.predicate = 'DIRECTOR_OF'
		  AND f.superseded_by IS NULL AND f.valid_to IS NULL
		  AND COALESCE(c.latest_employees, 0) <= $1
		  AND COALESCE(c.latest_revenue, 0) <= $2
		  AND %s
		GROUP BY p.entity_id, e.canonical_name, p.risk_score
		HAVING COUNT(DISTINCT c.entity_id) >= $3
		ORDER BY COUNT(DISTINCT c.entity_id) DESC, p.risk_score DESC
		LIMIT $4`, statusFilter)

	rows, err := d.db.Pool().Query(ctx, query, params.MaxEmployees, params.MaxRevenue, params.MinCompanies, d.cfg.MaxResults+1)
	if err != nil {
		return ShellNetworkResult{}, fmt.Errorf("patterns: shell network query: %w", err)
	}
	defer rows.Close()

	var matches []ShellNetworkMatch
	for rows.Next() {
		var m ShellNetworkMatch
		if err := rows.Scan(&m.PersonID, &m.PersonName, &m.RiskScore, &m.CompanyIDs, &m.ShellIndicators); err != nil {
			return ShellNetworkResult{}, fmt.Errorf("patterns: scan shell network row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return ShellNetworkResult{}, fmt.Errorf("patterns: shell network rows: %w", err)
	}

	return capShellResult(matches, d.cfg.MaxResults), nil
}

func capShellResult(matches []ShellNetworkMatch, max int) ShellNetworkResult {
	if len(matches) > max {
		return ShellNetworkResult{Matches: matches[:max], Truncated: true}
	}
	return ShellNetworkResult{Matches: matches}
}
