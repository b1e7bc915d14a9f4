package evaluate

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds a free-text answer into its comparison form: lower-case,
// diacritics stripped, punctuation replaced by spaces, whitespace collapsed.
func Normalize(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark left over from NFD, drop it
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Compact is Normalize with internal spaces removed entirely, so that
// "ice-cream", "ice cream" and "icecream" all compare equal.
func Compact(s string) string {
	return strings.ReplaceAll(Normalize(s), " ", "")
}
