package halo

import (
	"time"

	"github.com/google/uuid"
)

// EntityKind mirrors internal/model.EntityKind for use at the public
// boundary. No internal package imports — safe to use from outside the
// module.
type EntityKind string

const (
	EntityPerson  EntityKind = "PERSON"
	EntityCompany EntityKind = "COMPANY"
	EntityAddress EntityKind = "ADDRESS"
	EntityEvent   EntityKind = "EVENT"
)

// IdentifierKind mirrors internal/model.IdentifierKind.
type IdentifierKind string

const (
	IdentifierPersonnummer      IdentifierKind = "PERSONNUMMER"
	IdentifierSamordningsnummer IdentifierKind = "SAMORDNINGSNUMMER"
	IdentifierOrganisationsnummer IdentifierKind = "ORGANISATIONSNUMMER"
	IdentifierPostalCode        IdentifierKind = "POSTAL_CODE"
	IdentifierPropertyID        IdentifierKind = "PROPERTY_ID"
)

// SourceKind mirrors internal/model.SourceKind.
type SourceKind string

const (
	SourceBolagsverket SourceKind = "BOLAGSVERKET"
	SourceAllabolag    SourceKind = "ALLABOLAG"
	SourceCourtRecord  SourceKind = "COURT_RECORD"
	SourcePoliceReport SourceKind = "POLICE_REPORT"
	SourceManualEntry  SourceKind = "MANUAL_ENTRY"
)

// ProvenanceInput is the evidentiary basis an adapter attaches to every
// mention and fact it yields.
type ProvenanceInput struct {
	SourceKind          SourceKind
	SourceID            string
	URL                 string
	DocumentHash        string
	ExtractionMethod    string
	ExtractionTimestamp time.Time
	ExtractionSystemVer string
}

// MentionInput is one raw extraction an adapter wants resolved against the
// entity graph. ExtractedAttributes carries kind-specific fields (birth
// year, postal code, SNI code, ...) the resolver's feature comparators read.
type MentionInput struct {
	Kind                  EntityKind
	SurfaceForm           string
	ExtractedPersonnummer string
	ExtractedOrgnummer    string
	ExtractedAttributes   map[string]any
	DocumentLocation      string
}

// FactInput is a relationship or attribute assertion an adapter wants
// recorded directly, bypassing mention resolution — valid only when
// Subject (and Object, for relationship predicates) already name resolved
// entities the adapter obtained from a prior GetEntity/LookupByIdentifier
// call, never a guess.
type FactInput struct {
	Subject   uuid.UUID
	Predicate string
	Object    *uuid.UUID

	ValueText  *string
	ValueInt   *int64
	ValueFloat *float64
	ValueDate  *time.Time
	ValueBool  *bool
	ValueJSON  map[string]any

	RelationshipAttributes map[string]any
	ValidFrom               time.Time
	Confidence              float64
}

// SourceRecord bundles one adapter-yielded unit of ingestion: the evidence
// it rests on, the mentions it wants resolved, and any facts it can assert
// directly.
type SourceRecord struct {
	Provenance ProvenanceInput
	Mentions   []MentionInput
	Facts      []FactInput
}

// MentionResolvedEvent is delivered to EventHook.OnMentionResolved.
type MentionResolvedEvent struct {
	MentionID  uuid.UUID
	EntityID   *uuid.UUID
	Status     string
	Confidence *float64
}

// EntitiesMergedEvent is delivered to EventHook.OnEntitiesMerged.
type EntitiesMergedEvent struct {
	Survivor uuid.UUID
	Merged   uuid.UUID
	Reviewer string
}

// IdentifierView is one decrypted identifier bound to an entity.
type IdentifierView struct {
	Kind       IdentifierKind
	Value      string
	Confidence float64
	ValidFrom  time.Time
	ValidTo    *time.Time
}

// EntityView is the curated, decrypted view GetEntity returns.
type EntityView struct {
	ID                    uuid.UUID
	Kind                  EntityKind
	CanonicalName         string
	ResolutionConfidence  float64
	Status                string
	MergedInto            *uuid.UUID
	Identifiers           []IdentifierView
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// RelationshipNode is one entity reached during a Relationships traversal.
type RelationshipNode struct {
	ID            uuid.UUID
	Kind          EntityKind
	CanonicalName string
	Depth         int
}

// RelationshipEdge is one live fact connecting two nodes in a Relationships
// traversal.
type RelationshipEdge struct {
	Subject   uuid.UUID
	Predicate string
	Object    uuid.UUID
}

// RelationshipGraph is the bounded subgraph Relationships returns, flagged
// Truncated when MaxNodes was reached before the traversal frontier emptied.
type RelationshipGraph struct {
	Nodes     []RelationshipNode
	Edges     []RelationshipEdge
	Truncated bool
}

// SearchMatch is one entity returned by Search, alongside the signal that
// matched it.
type SearchMatch struct {
	Entity       EntityView
	MatchedOn    string // "name_trigram", the only signal Search uses
	Score        float64
}

// ReviewItem is one mention awaiting human review, alongside the candidate
// decisions recorded for it.
type ReviewItem struct {
	Mention   MentionView
	Decisions []ResolutionDecisionView
}

// MentionView is the curated view of a mention surfaced to review-queue and
// decision callers.
type MentionView struct {
	ID                   uuid.UUID
	Kind                  EntityKind
	SurfaceForm           string
	NormalizedForm        string
	ResolutionStatus      string
	ResolvedTo            *uuid.UUID
	ResolutionConfidence  *float64
	CreatedAt             time.Time
}

// ResolutionDecisionView is the curated view of one candidate considered
// during resolution of a mention.
type ResolutionDecisionView struct {
	CandidateEntity *uuid.UUID
	OverallScore    float64
	Decision        string
}

// HumanDecision is the outcome a reviewer records for a pending mention via
// SubmitDecision.
type HumanDecision string

const (
	HumanDecisionMatch  HumanDecision = "MATCH"
	HumanDecisionReject HumanDecision = "REJECT"
	HumanDecisionNew    HumanDecision = "NEW"
)

// AuditVerification is the result of VerifyAuditChain.
type AuditVerification struct {
	OK              bool
	FirstInvalidSeq int64
	Reason          string
}
