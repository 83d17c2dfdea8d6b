package normalize

import "testing"

func TestParseAddress_StreetNumberAndPostalCode(t *testing.T) {
	a := ParseAddress("Kungsgatan 12B, 111 22")
	if a.Street != "KUNGSG" {
		t.Fatalf("street = %q, want KUNGSG", a.Street)
	}
	if a.StreetNumber != "12" {
		t.Fatalf("street number = %q, want 12", a.StreetNumber)
	}
	if a.Entrance != "B" {
		t.Fatalf("entrance = %q, want B", a.Entrance)
	}
	if a.PostalCode != "111 22" {
		t.Fatalf("postal code = %q, want '111 22'", a.PostalCode)
	}
}

func TestParseAddress_PostalCodeWithoutInternalSpace(t *testing.T) {
	withSpace := ParseAddress("Storgatan 5, 111 22")
	withoutSpace := ParseAddress("Storgatan 5, 11122")
	if withSpace.PostalCode != withoutSpace.PostalCode {
		t.Fatalf("postal codes should normalize identically: %q vs %q", withSpace.PostalCode, withoutSpace.PostalCode)
	}
	if withSpace.PostalCode != "111 22" {
		t.Fatalf("got %q", withSpace.PostalCode)
	}
}

func TestParseAddress_StreetSuffixAbbreviated(t *testing.T) {
	a := ParseAddress("Drottninggatan 1")
	if a.Street != "DROTTNINGG" {
		t.Fatalf("street = %q, want DROTTNINGG", a.Street)
	}
}

func TestParseAddress_NoEntrance(t *testing.T) {
	a := ParseAddress("Vasavägen 7")
	if a.StreetNumber != "7" {
		t.Fatalf("street number = %q, want 7", a.StreetNumber)
	}
	if a.Entrance != "" {
		t.Fatalf("entrance = %q, want empty", a.Entrance)
	}
}
