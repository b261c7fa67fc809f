package enumstore

import "strings"

// Fold case-normalizes a string the way an uncased string attribute
// compares values: exact and prefix matches are case-insensitive by
// default, and only compare case-sensitively when the attribute itself
// is configured cased.
func Fold(s string) string { return strings.ToLower(s) }

// FoldedLess orders two strings by their folded form, falling back to
// the raw bytes to keep a total order among values that fold equal
// (e.g. "A" and "a").
func FoldedLess(a, b string) bool {
	fa, fb := Fold(a), Fold(b)
	if fa != fb {
		return fa < fb
	}
	return a < b
}

// CasedLess orders two strings by their raw byte value, for attributes
// configured `cased`.
func CasedLess(a, b string) bool { return a < b }

// FoldedPrefixUpperBound returns the exclusive upper bound to pass to
// CountInRange/AscendIDsInRange for a case-folded prefix scan: every
// folded string starting with prefix sorts into [prefix, upperBound).
func FoldedPrefixUpperBound(prefix string) string {
	folded := Fold(prefix)
	b := []byte(folded)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	// prefix is all 0xff bytes: there is no finite upper bound short of
	// "everything", so the caller should treat this as unbounded.
	return "￿￿￿￿"
}
