// Package names normalizes team display names into stable lookup keys.
// League directories disagree on accents and spacing ("Montréal Canadiens"
// vs "Montreal Canadiens"), so snapshot keys and scraper dedupe both go
// through Key.
package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldAccents = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Fold strips diacritics from s. On transform failure the input is returned
// unchanged rather than erroring; a raw accent in a key is still a usable key.
func Fold(s string) string {
	out, _, err := transform.String(foldAccents, s)
	if err != nil {
		return s
	}
	return out
}

// Key returns the canonical lookup key for a team name: accent-folded,
// lower-cased, inner whitespace collapsed.
func Key(name string) string {
	folded := Fold(strings.TrimSpace(name))
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
