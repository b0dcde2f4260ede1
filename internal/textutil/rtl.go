package textutil

import "unicode"

func isArabic(r rune) bool {
	return (r >= 0x0600 && r <= 0x06FF) ||
		(r >= 0x0750 && r <= 0x077F) ||
		(r >= 0x08A0 && r <= 0x08FF) ||
		(r >= 0xFB50 && r <= 0xFDFF) ||
		(r >= 0xFE70 && r <= 0xFEFF)
}

// IsRTL reports whether s is dominated by Arabic script and should be laid
// out right-to-left. Only letters participate in the count.
//
// Boundary case: a string with no letters at all (whitespace, digits,
// punctuation) reports true because the comparison of two zero counts holds.
// This mirrors long-standing behavior that downstream formatting depends on;
// do not flip the tie-break.
func IsRTL(s string) bool {
	arabic, other := 0, 0
	for _, r := range s {
		switch {
		case isArabic(r):
			arabic++
		case unicode.IsLetter(r):
			other++
		}
	}
	return arabic >= other
}
