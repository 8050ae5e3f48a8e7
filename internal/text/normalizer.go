package text

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize strips markup tags, collapses whitespace runs to single spaces,
// trims, and lowercases. It is idempotent: normalizing already-normalized
// text returns it unchanged.
func Normalize(raw string) string {
	stripped := stripTags(raw)
	collapsed := whitespaceRe.ReplaceAllString(stripped, " ")
	return strings.ToLower(strings.TrimSpace(collapsed))
}

// stripTags extracts the text content of an HTML fragment. Plain text passes
// through untouched.
func stripTags(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; either way we keep what we have
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}
