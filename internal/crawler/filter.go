package crawler

import (
	"strings"
)

// Domain prepended to site-relative article paths
const wikiDomain = "http://en.wikipedia.org"

// Substrings that disqualify a link target wherever they appear
// (citations, non-article namespaces, edit links, other wikis)
var excludedPatterns = []string{
	"#cite",
	"wikt:",
	"wiktionary",
	"redlink=",
	"File:",
	"Help:",
	"Special:",
	"Category:",
	"Template:",
	"Portal:",
	"Wikipedia:",
	"File talk:",
	"Help talk:",
	"Special talk:",
	"Category talk:",
	"Template talk:",
	"Portal talk:",
	"Wikipedia talk:",
	"wikimedia",
}

// RemoveParens drops parenthesized text that sits outside of markup tags.
// Characters inside an open tag are copied verbatim, parentheses included.
// Tag boundaries are only tracked while no parenthesis is open, and
// unbalanced parentheses drop the rest of the non-tag text.
func RemoveParens(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	parenDepth := 0
	tagDepth := 0
	for _, r := range text {
		if parenDepth == 0 {
			switch r {
			case '<':
				tagDepth++
			case '>':
				tagDepth--
			}
		}

		if tagDepth != 0 {
			b.WriteRune(r)
			continue
		}

		if r == '(' {
			parenDepth++
		}
		if parenDepth == 0 {
			b.WriteRune(r)
		}
		if r == ')' {
			parenDepth--
		}
	}

	return b.String()
}

// IsExcluded checks if a link target contains any excluded pattern
func IsExcluded(target string) bool {
	for _, pattern := range excludedPatterns {
		if strings.Contains(target, pattern) {
			return true
		}
	}
	return false
}

// ClassifyURL validates a raw anchor target and returns its canonical
// form http://en.wikipedia.org/wiki/<Article>. The boolean is false for
// targets that are excluded or leave the wiki.
func ClassifyURL(target string) (string, bool) {
	if IsExcluded(target) {
		return "", false
	}

	// Drop the section anchor
	if idx := strings.Index(target, "#"); idx != -1 {
		target = target[:idx]
	}

	switch {
	case strings.HasPrefix(target, "https") && strings.Contains(target, "wiki"):
		return "http" + target[len("https"):], true
	case strings.HasPrefix(target, "/wiki/"):
		return wikiDomain + target, true
	case strings.Contains(target, "wiki"):
		return target, true
	default:
		return "", false
	}
}

// CanonicalURL returns the classified form of a URL when it has one and
// the URL unchanged otherwise. Used to compare fetched URLs against the
// target regardless of scheme.
func CanonicalURL(u string) string {
	if canonical, ok := ClassifyURL(u); ok {
		return canonical
	}
	return u
}
