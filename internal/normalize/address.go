package normalize

import (
	"regexp"
	"strings"
)

// Address is the parsed result of a raw Swedish address string.
type Address struct {
	Street       string
	StreetNumber string
	Entrance     string // Optional uppercase entrance letter, e.g. "B" in "12B".
	PostalCode   string // "NNN NN" canonical form.
	City         string
	Normalized   string
}

var postalCodeRe = regexp.MustCompile(`(\d{3})\s?(\d{2})(?:\s+([^\d,]+))?\s*$`)
var streetNumberRe = regexp.MustCompile(`^(.*?)\s*(\d+)\s*([A-ZÅÄÖ]?)\s*$`)

// streetSuffixAbbreviations maps common Swedish street-name suffixes to
// their abbreviated form.
var streetSuffixAbbreviations = []struct {
	suffix string
	abbr   string
}{
	{"GATAN", "G"},
	{"VÄGEN", "V"},
	{"ALLÉN", "A"},
	{"STIGEN", "ST"},
	{"GRÄND", "GR"},
	{"PLATSEN", "PL"},
	{"PLATS", "PL"},
	{"PLAN", "PL"},
	{"TORG", "T"},
	{"BACKE", "B"},
}

// ParseAddress splits a raw address string into street, street number,
// optional entrance letter, postal code, and city. Extraction runs postal
// code first (splitting off a trailing city), then street number (with
// optional entrance letter), with the remainder treated as the street.
func ParseAddress(input string) Address {
	s := strings.ToUpper(strings.TrimSpace(input))
	// Normalize internal whitespace early so the postal-code regex tolerates
	// either "123 45" or "12345".
	s = whitespaceRun.ReplaceAllString(s, " ")

	var postalCode, city string
	if loc := postalCodeRe.FindStringSubmatchIndex(s); loc != nil {
		postalCode = s[loc[2]:loc[3]] + " " + s[loc[4]:loc[5]]
		if loc[6] >= 0 {
			city = strings.TrimSpace(s[loc[6]:loc[7]])
		}
		before := strings.TrimSpace(s[:loc[0]])
		// The remainder before the postal code may contain "STREET NUM, CITY"
		// separated by a comma; if so, and no city trails the postal code, the
		// city is whatever follows the comma.
		if idx := strings.LastIndex(before, ","); idx >= 0 {
			if city == "" {
				city = strings.TrimSpace(before[idx+1:])
			}
			s = strings.TrimSpace(before[:idx])
		} else {
			s = before
		}
	}

	var streetNumber, entrance string
	street := s
	if m := streetNumberRe.FindStringSubmatch(s); m != nil {
		street = strings.TrimSpace(m[1])
		streetNumber = m[2]
		entrance = m[3]
	}

	street = abbreviateStreetSuffix(street)

	normalized := street
	if streetNumber != "" {
		normalized += " " + streetNumber + entrance
	}
	if postalCode != "" {
		normalized += ", " + postalCode
	}
	if city != "" {
		normalized += " " + city
	}

	return Address{
		Street:       street,
		StreetNumber: streetNumber,
		Entrance:     entrance,
		PostalCode:   postalCode,
		City:         city,
		Normalized:   strings.TrimSpace(normalized),
	}
}

func abbreviateStreetSuffix(street string) string {
	for _, sa := range streetSuffixAbbreviations {
		if strings.HasSuffix(street, sa.suffix) {
			return strings.TrimSuffix(street, sa.suffix) + sa.abbr
		}
	}
	return street
}
