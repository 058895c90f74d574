// Package normalize maps text to the form used for comparison: Unicode
// default case folding followed by canonical composition (NFC). The corpus
// builder and the query parser must both go through String so that the
// search buffer and the query agree.
package normalize

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// String returns the case-folded, NFC-composed form of text.
func String(text string) string {
	// cases.Caser keeps per-call state and is not safe for concurrent use.
	return norm.NFC.String(cases.Fold().String(text))
}

// Runes is String split into characters, the unit the matcher compares.
func Runes(text string) []rune {
	return []rune(String(text))
}
