package compare

import "github.com/halo-intel/halo/internal/model"

// weight is one feature's contribution to the weighted-average score for a
// given entity kind. A zero weight means the feature is not in that kind's
// applicable set at all, so it is excluded from both numerator and
// denominator rather than scored at zero.
type weight struct {
	identifierMatch  float64
	nameJaroWinkler  float64
	nameTokenJaccard float64
	birthYearMatch   float64
	addressSimilarity float64
	networkOverlap   float64
}

// weights holds the fixed, code-defined per-kind weight tables. No
// learned-weight extension point is built — machine-learned resolution is
// out of scope; see DESIGN.md for the tradeoff.
var weights = map[model.EntityKind]weight{
	model.EntityPerson: {
		identifierMatch:  10,
		nameJaroWinkler:  2,
		nameTokenJaccard: 1.5,
		birthYearMatch:   1.5,
		addressSimilarity: 1,
		networkOverlap:   2.5,
	},
	model.EntityCompany: {
		identifierMatch:  10,
		nameJaroWinkler:  3,
		addressSimilarity: 1.5,
		networkOverlap:   2,
	},
	model.EntityAddress: {
		identifierMatch:  10,
		nameJaroWinkler:  2,
		addressSimilarity: 3,
	},
}

// Score returns the overall [0, 1] score for a candidate of the given kind,
// short-circuiting to 0.99 on an identifier match and otherwise computing
// the kind-specific weighted average over the applicable feature set. A
// feature only enters the average when both its kind weight is nonzero AND
// Features marks it applicable — inputs that were never available (no
// address on either side, no known neighbor sets) are excluded rather than
// scored as a mismatch.
func Score(kind model.EntityKind, f Features) float64 {
	if f.IdentifierMatch == 1 {
		return 0.99
	}

	w, ok := weights[kind]
	if !ok {
		w = weights[model.EntityPerson]
	}

	var num, den float64
	add := func(wt, val float64, applicable bool) {
		if wt == 0 || !applicable {
			return
		}
		num += wt * val
		den += wt
	}
	add(w.nameJaroWinkler, f.NameJaroWinkler, f.NameApplicable)
	add(w.nameTokenJaccard, f.NameTokenJaccard, f.NameApplicable)
	add(w.birthYearMatch, f.BirthYearMatch, f.BirthYearApplicable)
	add(w.addressSimilarity, f.AddressSimilarity, f.AddressApplicable)
	add(w.networkOverlap, f.NetworkOverlap, f.NetworkApplicable)

	if den == 0 {
		return 0
	}
	return num / den
}
