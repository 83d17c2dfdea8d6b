// Package model holds the canonical data types of the Halo entity graph:
// entities, identifiers, attribute records, facts, mentions, resolution
// decisions, provenance, and audit entries. Types here are plain structs;
// storage and business logic live in other packages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// EntityKind enumerates the kinds of canonical entity Halo resolves.
type EntityKind string

const (
	EntityPerson  EntityKind = "PERSON"
	EntityCompany EntityKind = "COMPANY"
	EntityAddress EntityKind = "ADDRESS"
	EntityEvent   EntityKind = "EVENT"
)

// EntityStatus is the lifecycle state of an Entity row.
type EntityStatus string

const (
	StatusActive     EntityStatus = "ACTIVE"
	StatusMerged     EntityStatus = "MERGED"
	StatusSplit      EntityStatus = "SPLIT"
	StatusAnonymized EntityStatus = "ANONYMIZED"
)

// Entity is a canonical thing in the world: a person, company, address, or event.
//
// Invariants: exactly one ACTIVE row exists per canonical identity at any
// time; MERGED rows are preserved and point to their surviving entity via
// MergedInto; ANONYMIZED rows retain ID and Kind but strip PII-bearing
// attributes and drop identifier rows (enforced by storage, not this type).
type Entity struct {
	ID                   uuid.UUID    `json:"id"`
	Kind                 EntityKind   `json:"kind"`
	CanonicalName        string       `json:"canonical_name"`
	ResolutionConfidence float64      `json:"resolution_confidence"`
	Status               EntityStatus `json:"status"`
	MergedInto           *uuid.UUID   `json:"merged_into,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// IdentifierKind enumerates the recognized identifier kinds bound to entities.
type IdentifierKind string

const (
	IdentifierPersonnummer       IdentifierKind = "PERSONNUMMER"
	IdentifierSamordningsnummer  IdentifierKind = "SAMORDNINGSNUMMER"
	IdentifierOrganisationsnummer IdentifierKind = "ORGANISATIONSNUMMER"
	IdentifierPostalCode         IdentifierKind = "POSTAL_CODE"
	IdentifierPropertyID         IdentifierKind = "PROPERTY_ID"
)

// EntityIdentifier binds a (kind, value) pair to an entity with provenance,
// a validity window, and a confidence score.
//
// Invariant: (entity, kind, blind_index) is unique — enforced by a unique
// constraint in storage, the fastest lookup path used by blocking.
// EncryptedValue holds the enc2:-prefixed ciphertext (cryptoutil.EncryptPII);
// BlindIndex holds the deterministic HMAC lookup key
// (cryptoutil.BlindIndex) computed over the normalized plaintext, so an
// exact-identifier blocking query never needs to decrypt a row to find it.
type EntityIdentifier struct {
	ID             uuid.UUID      `json:"id"`
	EntityID       uuid.UUID      `json:"entity_id"`
	Kind           IdentifierKind `json:"kind"`
	EncryptedValue string         `json:"encrypted_value"`
	BlindIndex     string         `json:"blind_index"`
	ProvenanceID   uuid.UUID      `json:"provenance_id"`
	ValidFrom      time.Time      `json:"valid_from"`
	ValidTo        *time.Time     `json:"valid_to,omitempty"`
	Confidence     float64        `json:"confidence"`
	CreatedAt      time.Time      `json:"created_at"`
}
