package blocking

import "testing"

func TestNamePrefix_TruncatesAfterNormalization(t *testing.T) {
	// Truncates the already-fully-normalized name to four characters, not
	// the raw input (see DESIGN.md for the tradeoff).
	// mention.NormalizedForm is the fully normalized value by the time it
	// reaches blocking, so namePrefix just takes the first four characters.
	got := namePrefix("JOHAN ANDERSSON", 4)
	if got != "JOHA" {
		t.Fatalf("got %q, want %q", got, "JOHA")
	}
}

func TestNamePrefix_ShorterThanCap(t *testing.T) {
	got := namePrefix("ANA", 4)
	if got != "ANA" {
		t.Fatalf("got %q, want %q", got, "ANA")
	}
}

func TestPhoneticCode_FallsBackToFirstFour(t *testing.T) {
	got := PhoneticCode("123")
	if got != "123" {
		t.Fatalf("got %q, want %q", got, "123")
	}
}

func TestTrigramSimilarity_IdenticalIsOne(t *testing.T) {
	if got := TrigramSimilarity("ANNA SVENSSON", "ANNA SVENSSON"); got != 1.0 {
		t.Fatalf("got %v, want 1.0", got)
	}
}

func TestTrigramSimilarity_DisjointIsZero(t *testing.T) {
	if got := TrigramSimilarity("ABC", "XYZ"); got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}

func TestTrigramSimilarity_PartialOverlap(t *testing.T) {
	got := TrigramSimilarity("TEST AB", "TEST ABC")
	if got <= 0 || got >= 1 {
		t.Fatalf("got %v, want strictly between 0 and 1", got)
	}
}

func TestDefaultCaps_MatchSpec(t *testing.T) {
	if DefaultCaps.PhoneticTrigramLimit != 50 {
		t.Fatalf("got %d, want 50", DefaultCaps.PhoneticTrigramLimit)
	}
	if DefaultCaps.NamePrefixBirthYearLimit != 50 {
		t.Fatalf("got %d, want 50", DefaultCaps.NamePrefixBirthYearLimit)
	}
	if DefaultCaps.PostalCodePrefixLimit != 100 {
		t.Fatalf("got %d, want 100", DefaultCaps.PostalCodePrefixLimit)
	}
	if DefaultCaps.TrigramMinSimilarity != 0.3 {
		t.Fatalf("got %v, want 0.3", DefaultCaps.TrigramMinSimilarity)
	}
}
