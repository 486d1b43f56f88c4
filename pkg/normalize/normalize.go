// Package normalize derives comparison and search keys from display strings.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold strips diacritics and lowercases, e.g. "Émile" -> "emile".
//
// Every key the uniqueness policy and the sort order depend on goes through
// this function, so it must stay pure and deterministic. Folding an already
// folded string is a no-op.
func Fold(s string) string {
	folded, _, err := transform.String(stripAccents, s)
	if err != nil {
		// Malformed UTF-8 cannot be decomposed; lowercase what we got.
		return strings.ToLower(s)
	}
	return strings.ToLower(folded)
}
