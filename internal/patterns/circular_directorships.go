package patterns

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CircularDirectorshipsParams bounds the cycle search: directed cycles of
// length 2 to 4 through DIRECTOR_OF edges (an entity directs another that
// directs... back to the starting entity; SHAREHOLDER_OF links are not
// followed).
type CircularDirectorshipsParams struct {
	MinLength int // default 2
	MaxLength int // default 4
}

// DefaultCircularDirectorshipsParams is the default cycle-length range.
var DefaultCircularDirectorshipsParams = CircularDirectorshipsParams{
	MinLength: 2,
	MaxLength: 4,
}

// CircularDirectorshipsMatch is one directed cycle through DIRECTOR_OF
// relationships, entity IDs listed in traversal order.
type CircularDirectorshipsMatch struct {
	EntityIDs []uuid.UUID
	Length    int
}

// CircularDirectorshipsResult is the match set.
type CircularDirectorshipsResult struct {
	Matches   []CircularDirectorshipsMatch
	Truncated bool
}

// CircularDirectorships finds directed cycles of length params.MinLength to
// params.MaxLength through live DIRECTOR_OF edges, using a recursive CTE
// bounded by MaxLength to keep the search tractable at graph scale. A cycle
// is reported once, its traversal starting at the lexicographically
// smallest entity ID in the cycle, the same smaller-UUID-wins convention
// internal/derive and internal/resolver use to make output deterministic.
func (d *Detector) CircularDirectorships(ctx context.Context, params CircularDirectorshipsParams) (CircularDirectorshipsResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.StatementTimeout)
	defer cancel()

	const query = `
		WITH RECURSIVE edges AS (
			SELECT subject, object
			FROM facts
			WHERE predicate = 'DIRECTOR_OF'
			  AND superseded_by IS NULL AND valid_to IS NULL
			  AND object IS NOT NULL
		),
		paths AS (
			SELECT subject AS start, object AS current, ARRAY[subject, object] AS path, 1 AS length
			FROM edges
			UNION ALL
			SELECT p.start, e.object, p.path || e.object, p.length + 1
			FROM paths p
			JOIN edges e ON e.subject = p.current
			WHERE p.length < $2
			  AND NOT (e.object = ANY(p.path[2:array_length(p.path, 1)]))
		),
		cycles AS (
			SELECT path[1:length] AS cycle, length
			FROM paths
			WHERE current = start AND length >= $1
		)
		SELECT DISTINCT ON (cycle_key) cycle, length
		FROM (
			SELECT cycle, length,
			       (SELECT array_agg(x ORDER BY x) FROM unnest(cycle) AS x) AS cycle_key
			FROM cycles
		) ranked
		WHERE cycle[1] = (SELECT min(x) FROM unnest(cycle) AS x)
		ORDER BY cycle_key, length
		LIMIT $3`

	rows, err := d.db.Pool().Query(ctx, query, params.MinLength, params.MaxLength, d.cfg.MaxResults+1)
	if err != nil {
		return CircularDirectorshipsResult{}, fmt.Errorf("patterns: circular directorships query: %w", err)
	}
	defer rows.Close()

	var matches []CircularDirectorshipsMatch
	for rows.Next() {
		var m CircularDirectorshipsMatch
		if err := rows.Scan(&m.EntityIDs, &m.Length); err != nil {
			return CircularDirectorshipsResult{}, fmt.Errorf("patterns: scan circular directorships row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return CircularDirectorshipsResult{}, fmt.Errorf("patterns: circular directorships rows: %w", err)
	}

	if len(matches) > d.cfg.MaxResults {
		return CircularDirectorshipsResult{Matches: matches[:d.cfg.MaxResults], Truncated: true}, nil
	}
	return CircularDirectorshipsResult{Matches: matches}, nil
}
