package compare

import "strings"

// Phonetic computes a simplified Double Metaphone-style code for a
// normalized Swedish name, returning a primary and secondary code: it
// collapses phonetically similar consonant clusters while dropping vowels,
// tuned to Swedish digraphs (e.g. "SJ"/"SK"/"STJ" sh-sound, "TJ"/"KJ"
// ch-sound). It is deliberately approximate: blocking treats it as a coarse
// prefilter, and falls back to the first four uppercased characters when
// both codes are empty.
func Phonetic(name string) (primary, secondary string) {
	s := strings.ToUpper(strings.TrimSpace(name))
	s = stripNonLetters(s)
	if s == "" {
		return "", ""
	}

	var primaryB, secondaryB strings.Builder
	i := 0
	for i < len(s) {
		switch {
		case hasPrefix(s, i, "SJ"), hasPrefix(s, i, "STJ"), hasPrefix(s, i, "SKJ"):
			primaryB.WriteByte('X')
			secondaryB.WriteByte('S')
			i += prefixLen(s, i, "STJ", "SKJ", "SJ")
		case hasPrefix(s, i, "TJ"), hasPrefix(s, i, "KJ"):
			primaryB.WriteByte('C')
			secondaryB.WriteByte('K')
			i += 2
		case hasPrefix(s, i, "CK"):
			primaryB.WriteByte('K')
			secondaryB.WriteByte('K')
			i += 2
		case s[i] == 'Å' || s[i] == 'Ä' || s[i] == 'Ö':
			primaryB.WriteByte('A')
			secondaryB.WriteByte('A')
			i++
		case isVowel(s[i]):
			if i == 0 {
				primaryB.WriteByte('A')
				secondaryB.WriteByte('A')
			}
			i++
		case s[i] == 'C':
			primaryB.WriteByte('K')
			secondaryB.WriteByte('S')
			i++
		case s[i] == 'Q':
			primaryB.WriteByte('K')
			secondaryB.WriteByte('K')
			i++
		case s[i] == 'V', s[i] == 'W':
			primaryB.WriteByte('F')
			secondaryB.WriteByte('F')
			i++
		case s[i] == 'Z':
			primaryB.WriteByte('S')
			secondaryB.WriteByte('S')
			i++
		default:
			primaryB.WriteByte(s[i])
			secondaryB.WriteByte(s[i])
			i++
		}
		if primaryB.Len() >= 4 && secondaryB.Len() >= 4 {
			break
		}
	}

	primary = capAt(primaryB.String(), 4)
	secondary = capAt(secondaryB.String(), 4)
	if primary == secondary {
		secondary = ""
	}
	return primary, secondary
}

// PhoneticOrPrefix returns the Double-Metaphone-style primary code, falling
// back to the secondary and then to the first four uppercased characters of
// name.
func PhoneticOrPrefix(name string) string {
	primary, secondary := Phonetic(name)
	if primary != "" {
		return primary
	}
	if secondary != "" {
		return secondary
	}
	return capAt(strings.ToUpper(strings.TrimSpace(name)), 4)
}

func isVowel(b byte) bool {
	switch b {
	case 'A', 'E', 'I', 'O', 'U', 'Y':
		return true
	}
	return false
}

func stripNonLetters(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || r == 'Å' || r == 'Ä' || r == 'Ö' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func hasPrefix(s string, i int, prefix string) bool {
	return i+len(prefix) <= len(s) && s[i:i+len(prefix)] == prefix
}

func prefixLen(s string, i int, prefixes ...string) int {
	for _, p := range prefixes {
		if hasPrefix(s, i, p) {
			return len(p)
		}
	}
	return 1
}

func capAt(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
