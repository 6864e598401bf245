package rankingdomain

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/width"
)

var printableASCII = runes.Predicate(func(r rune) bool {
	return r >= ' ' && r <= '~'
})

// widenASCII converts U+0020 to U+3000 and U+0021..U+007E to U+FF01..U+FF5E.
// Half-width katakana and other narrow symbols are left alone. The returned
// transformer is stateful and must not be shared between goroutines.
func widenASCII() runes.Transformer {
	return runes.If(printableASCII, width.Widen, nil)
}

// NormalizeKeyword trims a search keyword and, when widen is set, converts
// printable ASCII and space to their full-width forms. Player names are stored
// full-width, so "Taco 1" must be searched as "Ｔａｃｏ　１".
func NormalizeKeyword(keyword string, widen bool) string {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" || !widen {
		return keyword
	}
	return widenASCII().String(keyword)
}

// EscapeLike escapes LIKE metacharacters in s using escape as the escape
// character, so the keyword matches literally inside a %...% pattern.
func EscapeLike(s string, escape rune) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == escape {
			b.WriteRune(escape)
		}
		b.WriteRune(r)
	}
	return b.String()
}
