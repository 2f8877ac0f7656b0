package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug turns a human ticket label into the deterministic catalog id used for
// CRM product upserts. Diacritics are folded, everything outside [a-z0-9]
// collapses to single hyphens. Repeated syncs of the same label therefore hit
// the same product resource.
func Slug(label string) string {
	folded, _, err := transform.String(deaccent, label)
	if err != nil {
		folded = label
	}

	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
