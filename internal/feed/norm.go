package feed

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	deaccent = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	reSpaces = regexp.MustCompile(`\s+`)
)

// StripAccents removes combining marks: "vídeo" -> "video".
func StripAccents(s string) string {
	out, _, err := transform.String(deaccent, s)
	if err != nil {
		return s
	}
	return out
}

// NormKey lower-cases, de-accents and collapses whitespace; used for
// header-synonym and column lookups on feeds of uneven quality.
func NormKey(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ToLower(StripAccents(s))
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}
