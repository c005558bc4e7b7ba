package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lowerTurkish = cases.Lower(language.Turkish)

// Turkish letters without an ASCII code point and their slug replacements.
// Lowercasing happens with Turkish casing rules first, so dotless ı and
// dotted İ both normalise correctly.
var turkishReplacer = strings.NewReplacer(
	"ç", "c",
	"ğ", "g",
	"ı", "i",
	"ö", "o",
	"ş", "s",
	"ü", "u",
)

// Slugify converts a Turkish display name into a lowercase ASCII URL slug.
// Runs of non-alphanumeric characters collapse into single hyphens.
func Slugify(name string) string {
	lowered := lowerTurkish.String(strings.TrimSpace(name))
	ascii := turkishReplacer.Replace(lowered)

	var b strings.Builder
	b.Grow(len(ascii))
	lastHyphen := true
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			// Remaining non-ASCII letters are dropped rather than guessed at.
			continue
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.Trim(b.String(), "-")
}
