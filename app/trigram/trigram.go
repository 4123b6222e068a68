// Package trigram computes trigram similarity with the same word splitting,
// padding and set semantics as PostgreSQL's pg_trgm extension. It backs the
// similarity() SQL function on database dialects that do not ship pg_trgm.
package trigram

import (
	"strings"
	"unicode"
)

// Set returns the distinct trigrams of s. Words are runs of letters and
// digits, lower-cased and padded with two leading blanks and one trailing
// blank before being cut into three-rune windows.
func Set(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, word := range strings.FieldsFunc(strings.ToLower(s), isSeparator) {
		padded := []rune("  " + word + " ")
		for i := 0; i+3 <= len(padded); i++ {
			out[string(padded[i:i+3])] = struct{}{}
		}
	}
	return out
}

// Similarity returns |A∩B| / |A∪B| over the trigram sets of a and b, in [0, 1].
func Similarity(a, b string) float64 {
	left, right := Set(a), Set(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}
	shared := 0
	for g := range left {
		if _, ok := right[g]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(left)+len(right)-shared)
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
