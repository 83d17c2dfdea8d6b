package normalize

import (
	"regexp"
	"strings"
)

// legalFormEquivalences maps full Swedish legal-form tokens (after
// uppercasing) to their abbreviated canonical form. Longer tokens are
// matched first so e.g. "AKTIEBOLAGET" isn't shadowed by a shorter
// unrelated prefix.
var legalFormEquivalences = []struct {
	token string
	abbr  string
}{
	{"AKTIEBOLAGET", "AB"},
	{"AKTIEBOLAG", "AB"},
	{"HANDELSBOLAGET", "HB"},
	{"HANDELSBOLAG", "HB"},
	{"KOMMANDITBOLAGET", "KB"},
	{"KOMMANDITBOLAG", "KB"},
	{"ENSKILD FIRMA", "EF"},
	{"EKONOMISK FÖRENING", "EK FÖR"},
	{"IDEELL FÖRENING", "IDEELL FÖR"},
	{"STIFTELSE", "STIFTELSE"},
}

// statusIndicators are status suffixes/markers stripped before the legal
// form is detected.
var statusIndicators = []string{
	"I LIKVIDATION",
	"I KONKURS",
	"UNDER REKONSTRUKTION",
	"UNDER AVVECKLING",
	"(PUBL)",
	"PUBL",
}

var punctuationExceptAmpersand = regexp.MustCompile(`[^\p{L}\p{N}\s&]`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeCompanyName uppercases, strips trailing legal-form tokens (folded
// to their canonical abbreviation), strips status indicators, drops
// punctuation other than "&", and collapses whitespace. It returns the
// normalized name and the detected legal form, if any.
func NormalizeCompanyName(input string) (normalized string, legalForm string) {
	s := strings.ToUpper(strings.TrimSpace(input))

	for _, status := range statusIndicators {
		s = strings.ReplaceAll(s, status, "")
	}

	for _, eq := range legalFormEquivalences {
		if strings.HasSuffix(strings.TrimSpace(s), eq.token) {
			s = strings.TrimSuffix(strings.TrimSpace(s), eq.token)
			legalForm = eq.abbr
			break
		}
		// Also match an already-abbreviated trailing form (e.g. "FOO AB").
		if strings.HasSuffix(strings.TrimSpace(s), " "+eq.abbr) {
			s = strings.TrimSuffix(strings.TrimSpace(s), eq.abbr)
			legalForm = eq.abbr
			break
		}
	}

	s = punctuationExceptAmpersand.ReplaceAllString(s, " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if legalForm != "" {
		s = strings.TrimSpace(s) + " " + legalForm
	}

	return s, legalForm
}
