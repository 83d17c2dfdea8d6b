package resolver

import (
	"github.com/halo-intel/halo/internal/compare"
	"github.com/halo-intel/halo/internal/model"
	"github.com/halo-intel/halo/internal/normalize"
)

// extracted_attributes arrives as a map[string]any decoded from JSON (or
// built directly by an in-process adapter), so numeric fields surface as
// float64 even when the logical value is an integer. These helpers centralize
// that coercion rather than repeating type switches at every call site.

func attrString(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func attrInt(m map[string]any, key string) (int, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// extractBirthYear reads a PERSON mention's birth year, preferring the
// extracted personnummer (authoritative) over a free-form extracted
// attribute.
func extractBirthYear(mention model.Mention) *int {
	if mention.Kind != model.EntityPerson {
		return nil
	}
	if mention.ExtractedPersonnummer != "" {
		if pnr, err := normalize.ParsePersonnummer(mention.ExtractedPersonnummer); err == nil {
			year := pnr.BirthDate.Year()
			return &year
		}
	}
	if y, ok := attrInt(mention.ExtractedAttributes, "birth_year"); ok {
		return &y
	}
	return nil
}

// extractAddressSnapshot reads an ADDRESS mention's comparable fields from
// its extracted_attributes, populated by the ingestion adapter after it
// ran internal/normalize.ParseAddress over the raw string.
func extractAddressSnapshot(mention model.Mention) *compare.AddressSnapshot {
	if mention.Kind != model.EntityAddress {
		return nil
	}
	postal, hasPostal := attrString(mention.ExtractedAttributes, "postal_code")
	street, hasStreet := attrString(mention.ExtractedAttributes, "street")
	number, _ := attrString(mention.ExtractedAttributes, "street_number")
	if !hasPostal && !hasStreet {
		return nil
	}
	return &compare.AddressSnapshot{PostalCode: postal, Street: street, StreetNumber: number}
}
