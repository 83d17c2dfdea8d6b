package blocking

import (
	"strings"

	"github.com/halo-intel/halo/internal/compare"
)

// PhoneticCode returns the Double-Metaphone-style code (falling back to the
// first four uppercased characters) used to seed the trigram search,
// sharing the phonetic reduction with internal/compare.
func PhoneticCode(name string) string {
	return compare.PhoneticOrPrefix(name)
}

// TrigramSimilarity is a pure-Go fallback for Postgres's pg_trgm
// similarity(), used only by unit tests that exercise the trigram-search
// selection logic without a database. Production always ranks by
// pg_trgm's similarity() run in Postgres.
func TrigramSimilarity(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	intersection := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func trigrams(s string) map[string]struct{} {
	s = strings.ToLower(strings.TrimSpace(s))
	padded := "  " + s + "  "
	out := map[string]struct{}{}
	runes := []rune(padded)
	for i := 0; i+3 <= len(runes); i++ {
		out[string(runes[i:i+3])] = struct{}{}
	}
	return out
}
