// Package textnorm canonicalizes user supplied search text so that visually
// equivalent Latin and Arabic spellings compare equal.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	alef       = '\u0627'
	maddaAbove = '\u0653'
	hamzaAbove = '\u0654'
	hamzaBelow = '\u0655'
	taMarbuta  = '\u0629'
	heh        = '\u0647'
)

// Normalize applies compatibility decomposition followed by the fixed Arabic
// letter folding table: أ إ آ become ا and ة becomes ه. Case is left alone;
// the store's case-insensitive operators take care of that.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	decomposed := norm.NFKD.String(text)

	var b strings.Builder
	b.Grow(len(decomposed))
	// NFKD turns أ إ آ into a bare alef followed by a combining hamza or
	// madda. Every such mark attached to an alef is dropped, however many
	// marks are stacked on it.
	var base rune
	for _, r := range decomposed {
		if !unicode.Is(unicode.Mn, r) {
			base = r
		}
		switch {
		case base == alef && (r == maddaAbove || r == hamzaAbove || r == hamzaBelow):
			continue
		case r == taMarbuta:
			b.WriteRune(heh)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
