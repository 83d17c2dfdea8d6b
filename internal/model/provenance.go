package model

import (
	"time"

	"github.com/google/uuid"
)

// SourceKind enumerates the origin kinds of an ingested record.
type SourceKind string

const (
	SourceBolagsverket  SourceKind = "BOLAGSVERKET"
	SourceAllabolag     SourceKind = "ALLABOLAG"
	SourceCourtRecord   SourceKind = "COURT_RECORD"
	SourcePoliceReport  SourceKind = "POLICE_REPORT"
	SourceManualEntry   SourceKind = "MANUAL_ENTRY"
	SourceDerived       SourceKind = "DERIVED_COMPUTATION"
)

// Provenance records where a fact, identifier, or mention came from.
// Every Fact, EntityIdentifier, and Mention references exactly one
// Provenance row. Provenance rows are never deleted.
type Provenance struct {
	ID                   uuid.UUID  `json:"id"`
	SourceKind           SourceKind `json:"source_kind"`
	SourceID             string     `json:"source_id"`
	URL                  string     `json:"url,omitempty"`
	DocumentHash         string     `json:"document_hash,omitempty"`
	ExtractionMethod     string     `json:"extraction_method"`
	ExtractionTimestamp  time.Time  `json:"extraction_timestamp"`
	ExtractionSystemVer  string     `json:"extraction_system_version"`

	// DerivedFrom and DerivationRule are set only for SourceDerived provenance
	// (derivation engine output), referencing the input fact ids.
	DerivedFrom    []uuid.UUID `json:"derived_from,omitempty"`
	DerivationRule string      `json:"derivation_rule,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
