// Package compare implements the pairwise feature comparator between a
// mention and a candidate entity: Jaro-Winkler and token Jaccard name
// similarity, identifier/birth-year equality, address similarity, and
// network overlap, plus the kind-specific weighted scorer. Every function
// here is pure — no storage or I/O — so the resolver precomputes candidate
// attributes and neighbor sets before calling in.
package compare

import (
	"strings"

	"github.com/google/uuid"

	"github.com/halo-intel/halo/internal/model"
)

// AddressSnapshot is the subset of address fields features.go compares.
type AddressSnapshot struct {
	PostalCode   string
	Street       string
	StreetNumber string
}

// Input holds everything ComputeFeatures needs about one mention/candidate
// pair. Fields left zero-valued are simply excluded from the applicable
// feature set by Score.
type Input struct {
	IdentifierMatch bool

	NameA, NameB string

	BirthYearA, BirthYearB *int

	AddressA, AddressB *AddressSnapshot

	// NeighborsA/NeighborsB are each side's set of entities at network
	// distance 1 (companies for a person, directors for a company).
	NeighborsA, NeighborsB map[uuid.UUID]struct{}
}

// Features is a comparison's feature scores plus, per feature group,
// whether the underlying inputs were present at all. Score uses the
// applicability flags rather than the weight table alone to decide which
// features enter the weighted average — a candidate with no known address
// on either side must not have address_similarity=0 silently dragging its
// score down.
type Features struct {
	model.FeatureScores
	NameApplicable      bool
	BirthYearApplicable bool
	AddressApplicable   bool
	NetworkApplicable   bool
}

// ComputeFeatures evaluates all six pairwise features.
func ComputeFeatures(in Input) Features {
	var f Features

	if in.IdentifierMatch {
		f.IdentifierMatch = 1
	}

	if in.NameA != "" && in.NameB != "" {
		f.NameJaroWinkler = JaroWinkler(in.NameA, in.NameB)
		f.NameTokenJaccard = tokenJaccard(in.NameA, in.NameB)
		f.NameApplicable = true
	}

	if in.BirthYearA != nil && in.BirthYearB != nil {
		f.BirthYearApplicable = true
		if *in.BirthYearA == *in.BirthYearB {
			f.BirthYearMatch = 1
		}
	}

	if in.AddressA != nil && in.AddressB != nil {
		f.AddressSimilarity = addressSimilarity(*in.AddressA, *in.AddressB)
		f.AddressApplicable = true
	}

	if in.NeighborsA != nil && in.NeighborsB != nil {
		f.NetworkOverlap = setJaccard(in.NeighborsA, in.NeighborsB)
		f.NetworkApplicable = true
	}

	return f
}

// tokenJaccard is the Jaccard index over whitespace-tokenized, lowercased
// names.
func tokenJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		out[tok] = struct{}{}
	}
	return out
}

// addressSimilarity is 0.3*(postal code exact) + 0.5*JaroWinkler(streets) +
// 0.2*(number exact).
func addressSimilarity(a, b AddressSnapshot) float64 {
	var score float64
	if a.PostalCode != "" && a.PostalCode == b.PostalCode {
		score += 0.3
	}
	score += 0.5 * JaroWinkler(a.Street, b.Street)
	if a.StreetNumber != "" && a.StreetNumber == b.StreetNumber {
		score += 0.2
	}
	return score
}

func setJaccard(a, b map[uuid.UUID]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for id := range a {
		if _, ok := b[id]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
