package articlemedia

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ExcerptLength is the rune count of listing/search content excerpts.
const ExcerptLength = 200

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldText is the normalization policy for title matching: lowercase with
// diacritics stripped. The in-memory repository applies it directly; the
// postgres repository mirrors it with lower(unaccent(...)).
func FoldText(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Excerpt truncates content to ExcerptLength runes, appending an ellipsis
// when truncated.
func Excerpt(content string) string {
	r := []rune(content)
	if len(r) <= ExcerptLength {
		return content
	}
	return string(r[:ExcerptLength]) + "..."
}
