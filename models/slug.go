package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugBaseLen = 100
	fallbackSlug   = "category"
)

var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify turns a display name into a URL-safe identifier: accents are
// stripped, letters are lower-cased, anything that is not a letter, digit,
// underscore or hyphen is dropped and runs of blanks or hyphens collapse to a
// single hyphen. Non-Latin letters are kept. The result is never empty.
func Slugify(name string) string {
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		}
	}

	slug := strings.Trim(b.String(), "-_")
	if r := []rune(slug); len(r) > maxSlugBaseLen {
		slug = strings.Trim(string(r[:maxSlugBaseLen]), "-_")
	}
	if slug == "" {
		return fallbackSlug
	}
	return slug
}
