// Package normalize implements the pure, deterministic Swedish identifier,
// name, and address parsers the resolution pipeline depends on. Nothing in
// this package performs I/O; every function is a value-in, value-out
// transform, matched to the "pure, no-I/O" normalizer style observed across
// the example corpus's own domain-parsing packages (e.g.
// quantumlife-canon-core's pkg/domain/obligation/dueparse.go).
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Gender is the sex encoded in a personnummer's ninth digit.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// Personnummer is the parsed, validated result of a Swedish personal
// identity number in any of the accepted input shapes.
type Personnummer struct {
	Valid              bool
	Normalized         string // 12-digit canonical form, no separator.
	BirthDate          time.Time
	Gender             Gender
	IsSamordningsnummer bool
}

// ParsePersonnummer validates and normalizes a Swedish personal identity
// number supplied in any of: YYYYMMDD-XXXX, YYYYMMDDXXXX, YYMMDD-XXXX,
// YYMMDDXXXX, optionally with a leading-century "+" separator meaning the
// bearer is >=100 years old.
func ParsePersonnummer(input string) (Personnummer, error) {
	return parseSwedishID(input)
}

// ParseOrganisationsnummer validates and normalizes a Swedish organization
// number: ten digits after normalization, Luhn-checked, with the third
// digit required to be >= 2 (the convention that disambiguates it from a
// personnummer).
func ParseOrganisationsnummer(input string) (Organisationsnummer, error) {
	digits, err := stripSeparators(input)
	if err != nil {
		return Organisationsnummer{}, err
	}
	if len(digits) != 10 {
		return Organisationsnummer{}, fmt.Errorf("normalize: organisationsnummer must be 10 digits, got %d", len(digits))
	}
	if digits[2] < '2' {
		return Organisationsnummer{}, fmt.Errorf("normalize: organisationsnummer third digit must be >= 2, got %q", digits[2])
	}
	if !luhnValid(digits) {
		return Organisationsnummer{}, fmt.Errorf("normalize: organisationsnummer %q fails Luhn checksum", input)
	}
	return Organisationsnummer{Valid: true, Normalized: digits}, nil
}

// Organisationsnummer is the parsed, validated result of a Swedish
// organization number.
type Organisationsnummer struct {
	Valid      bool
	Normalized string // 10-digit canonical form.
}

// stripSeparatorsPlus removes dashes, spaces, and a leading "+" marker, failing
// on any other non-digit character. It reports whether a "+" was present.
func stripSeparatorsPlus(input string) (digits string, plus bool, err error) {
	var b strings.Builder
	for _, r := range input {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-':
			// separator, ignore
		case r == '+':
			plus = true
		case r == ' ':
			// tolerate stray whitespace
		default:
			return "", false, fmt.Errorf("normalize: invalid character %q in identifier %q", r, input)
		}
	}
	return b.String(), plus, nil
}

func stripSeparators(input string) (string, error) {
	digits, _, err := stripSeparatorsPlus(input)
	return digits, err
}

// parseSwedishID implements the shared personnummer/samordningsnummer
// parsing algorithm.
func parseSwedishID(input string) (Personnummer, error) {
	digits, plus, err := stripSeparatorsPlus(input)
	if err != nil {
		return Personnummer{}, err
	}

	var twelve string
	switch len(digits) {
	case 12:
		twelve = digits
	case 10:
		century, err := expandCentury(digits[0:2], plus)
		if err != nil {
			return Personnummer{}, err
		}
		twelve = century + digits
	default:
		return Personnummer{}, fmt.Errorf("normalize: personnummer must be 10 or 12 digits, got %d", len(digits))
	}

	yearStr := twelve[0:4]
	monthStr := twelve[4:6]
	dayStr := twelve[6:8]
	tail := twelve[8:12] // last 4 digits: birth-number + checksum

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return Personnummer{}, fmt.Errorf("normalize: invalid year in %q", input)
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil {
		return Personnummer{}, fmt.Errorf("normalize: invalid month in %q", input)
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return Personnummer{}, fmt.Errorf("normalize: invalid day in %q", input)
	}

	isSamordning := false
	if day > 60 {
		isSamordning = true
		day -= 60
	}

	birthDate, err := constructDate(year, month, day)
	if err != nil {
		return Personnummer{}, fmt.Errorf("normalize: invalid date in %q: %w", input, err)
	}

	// Luhn is computed over the 10-digit portion: 2-digit year + month + day + tail.
	tenDigitPortion := twelve[2:12]
	if !luhnValid(tenDigitPortion) {
		return Personnummer{}, fmt.Errorf("normalize: personnummer %q fails Luhn checksum", input)
	}

	ninthDigit := tail[2] - '0'
	gender := GenderFemale
	if ninthDigit%2 == 1 {
		gender = GenderMale
	}

	return Personnummer{
		Valid:               true,
		Normalized:          twelve,
		BirthDate:           birthDate,
		Gender:              gender,
		IsSamordningsnummer: isSamordning,
	}, nil
}

// expandCentury resolves a 2-digit year to its century prefix. Presence of
// a "+" separator flips to the prior century regardless of the current
// year comparison.
func expandCentury(yy string, plus bool) (string, error) {
	yyNum, err := strconv.Atoi(yy)
	if err != nil {
		return "", fmt.Errorf("normalize: invalid 2-digit year %q", yy)
	}
	currentYY := time.Now().UTC().Year() % 100
	currentCentury := (time.Now().UTC().Year() / 100) * 100

	century := currentCentury
	if yyNum > currentYY {
		century -= 100
	}
	if plus {
		century -= 100
	}
	return fmt.Sprintf("%02d", century/100), nil
}

func constructDate(year, month, day int) (time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month %d out of range", month)
	}
	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("day %d out of range", day)
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflowing days (e.g. Feb 30 -> Mar 2); reject that.
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, fmt.Errorf("day %d is not valid for %04d-%02d", day, year, month)
	}
	return d, nil
}

// luhnValid applies the Luhn algorithm over a 10-digit numeric string with
// alternating weights 2,1,2,1,2,1,2,1,2,1 (the tenth digit is the
// checksum): weights 2,1,2,1,2,1,2,1,2 over the first nine digits,
// expected checksum = (10 - sum mod 10) mod 10.
func luhnValid(tenDigits string) bool {
	if len(tenDigits) != 10 {
		return false
	}
	sum := 0
	weights := [9]int{2, 1, 2, 1, 2, 1, 2, 1, 2}
	for i := 0; i < 9; i++ {
		d := int(tenDigits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		product := d * weights[i]
		sum += product/10 + product%10
	}
	checkDigit := int(tenDigits[9] - '0')
	if checkDigit < 0 || checkDigit > 9 {
		return false
	}
	expected := (10 - sum%10) % 10
	return expected == checkDigit
}

// FormatWithDash renders the 12-digit normalized form as the canonical
// round-trip shape YYYYMMDD-XXXX.
func (p Personnummer) FormatWithDash() string {
	if !p.Valid || len(p.Normalized) != 12 {
		return ""
	}
	return p.Normalized[0:8] + "-" + p.Normalized[8:12]
}
