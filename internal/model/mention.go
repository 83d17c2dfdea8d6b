package model

import (
	"time"

	"github.com/google/uuid"
)

// ResolutionStatus is the lifecycle state of a Mention.
type ResolutionStatus string

const (
	MentionPending       ResolutionStatus = "PENDING"
	MentionAutoMatched   ResolutionStatus = "AUTO_MATCHED"
	MentionHumanMatched  ResolutionStatus = "HUMAN_MATCHED"
	MentionAutoRejected  ResolutionStatus = "AUTO_REJECTED"
	MentionHumanRejected ResolutionStatus = "HUMAN_REJECTED"
)

// Mention is a raw extraction awaiting resolution against the entity graph.
//
// Lifecycle: created PENDING, then the resolver makes a terminal transition
// to one of the four resolved states, always with an audit entry.
type Mention struct {
	ID          uuid.UUID  `json:"id"`
	Kind        EntityKind `json:"kind"`
	SurfaceForm string     `json:"surface_form"`

	// NormalizedForm is produced by internal/normalize before the mention
	// reaches the resolver — adapters must not write entities directly, but
	// they apply normalization before handing a mention over.
	NormalizedForm string `json:"normalized_form"`

	ExtractedPersonnummer string         `json:"extracted_personnummer,omitempty"`
	ExtractedOrgnummer    string         `json:"extracted_orgnummer,omitempty"`
	ExtractedAttributes   map[string]any `json:"extracted_attributes,omitempty"`

	ProvenanceID     uuid.UUID `json:"provenance_id"`
	DocumentLocation string    `json:"document_location,omitempty"`

	ResolutionStatus     ResolutionStatus `json:"resolution_status"`
	ResolvedTo           *uuid.UUID       `json:"resolved_to,omitempty"`
	ResolutionConfidence *float64         `json:"resolution_confidence,omitempty"`
	ResolutionMethod     string           `json:"resolution_method,omitempty"`
	ResolverIdentity     string           `json:"resolver_identity,omitempty"`
	ResolvedAt           *time.Time       `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Decision enumerates the terminal outcomes of resolving one candidate.
type Decision string

const (
	DecisionAutoMatch     Decision = "AUTO_MATCH"
	DecisionAutoReject    Decision = "AUTO_REJECT"
	DecisionHumanMatch    Decision = "HUMAN_MATCH"
	DecisionHumanReject   Decision = "HUMAN_REJECT"
	DecisionPendingReview Decision = "PENDING_REVIEW"
)

// FeatureScores is the structured per-feature score recorded with a
// ResolutionDecision, mirroring internal/compare.Features.
type FeatureScores struct {
	IdentifierMatch  float64 `json:"identifier_match"`
	NameJaroWinkler  float64 `json:"name_jaro_winkler"`
	NameTokenJaccard float64 `json:"name_token_jaccard"`
	BirthYearMatch   float64 `json:"birth_year_match"`
	AddressSimilarity float64 `json:"address_similarity"`
	NetworkOverlap   float64 `json:"network_overlap"`
}

// ResolutionDecision records one candidate considered during resolution of a
// mention, retained for audit and accuracy measurement.
type ResolutionDecision struct {
	ID              uuid.UUID     `json:"id"`
	MentionID       uuid.UUID     `json:"mention_id"`
	CandidateEntity *uuid.UUID    `json:"candidate_entity,omitempty"`
	OverallScore    float64       `json:"overall_score"`
	FeatureScores   FeatureScores `json:"feature_scores"`
	Decision        Decision      `json:"decision"`
	Reviewer        string        `json:"reviewer,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	DecidedAt       *time.Time    `json:"decided_at,omitempty"`
}
