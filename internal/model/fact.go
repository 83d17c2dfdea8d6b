package model

import (
	"time"

	"github.com/google/uuid"
)

// Predicate enumerates the relationship/assertion kinds a Fact can carry.
type Predicate string

const (
	PredicateDirectorOf        Predicate = "DIRECTOR_OF"
	PredicateShareholderOf      Predicate = "SHAREHOLDER_OF"
	PredicateRegisteredAt       Predicate = "REGISTERED_AT"
	PredicateSameAs             Predicate = "SAME_AS"
	PredicateRiskScore          Predicate = "RISK_SCORE"
	PredicateShellIndicator     Predicate = "SHELL_INDICATOR"
	PredicateDirectorVelocity   Predicate = "DIRECTOR_VELOCITY"
	PredicateNetworkCluster     Predicate = "NETWORK_CLUSTER"
)

// Fact is a temporal, provenanced assertion about an entity, or a
// relationship between two entities.
//
// Invariant: for any (subject, predicate, object) there is at most one row
// with SupersededBy == nil && ValidTo == nil (the "current" fact).
// Supersession is append-only: a superseded row is never mutated except to
// set SupersededBy and SupersededAt.
type Fact struct {
	ID        uuid.UUID `json:"id"`
	Subject   uuid.UUID `json:"subject"`
	Predicate Predicate `json:"predicate"`

	// Exactly one of the Value* fields is meaningful, selected by Predicate,
	// OR Object is set for relationship predicates. This is a tagged-variant
	// boundary: one column per value shape, no native polymorphism in the core.
	ValueText  *string          `json:"value_text,omitempty"`
	ValueInt   *int64           `json:"value_int,omitempty"`
	ValueFloat *float64         `json:"value_float,omitempty"`
	ValueDate  *time.Time       `json:"value_date,omitempty"`
	ValueBool  *bool            `json:"value_bool,omitempty"`
	ValueJSON  map[string]any   `json:"value_json,omitempty"`
	Object     *uuid.UUID       `json:"object,omitempty"`

	RelationshipAttributes map[string]any `json:"relationship_attributes,omitempty"`

	ValidFrom time.Time  `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`

	Confidence   float64   `json:"confidence"`
	ProvenanceID uuid.UUID `json:"provenance_id"`

	SupersededBy *uuid.UUID `json:"superseded_by,omitempty"`
	SupersededAt *time.Time `json:"superseded_at,omitempty"`

	IsDerived      bool        `json:"is_derived"`
	DerivationRule string      `json:"derivation_rule,omitempty"`
	DerivedFrom    []uuid.UUID `json:"derived_from,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsCurrent reports whether this fact row is the live, non-superseded fact
// for its (subject, predicate, object) triple.
func (f Fact) IsCurrent() bool {
	return f.SupersededBy == nil && f.ValidTo == nil
}
