// Package normalize prepares raw note content for indexing.
//
// Note bodies arrive as markdown or pasted rich text and frequently carry
// HTML fragments (spans from clipboard paste, embedded iframes, style tags).
// The index tokenizer must never see that markup, so both title and body are
// stripped down to plain text before a document is handed to the index.
// Tags are removed literally; markdown syntax is left alone.
package normalize

import (
	"html"
	"regexp"
	"strings"
)

// tagRe matches any HTML/XML tag, including closing tags and self-closing
// forms. Attribute values may contain ">" inside quotes, which this pattern
// tolerates for the common cases seen in pasted content.
var tagRe = regexp.MustCompile(`<[^>]*>`)

// containerRe matches script/style elements whole, so their text content is
// dropped too rather than leaking into the body text.
var containerRe = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)>`)

// Document is the write-side projection of a node handed to the index:
// identity plus markup-free title and body.
type Document struct {
	NID   string
	Title string
	Body  string
}

// Normalize builds an index document from raw note fields. Pure function:
// empty input passes through as empty output.
func Normalize(nid, title, body string) Document {
	return Document{
		NID:   nid,
		Title: StripTags(title),
		Body:  StripTags(body),
	}
}

// StripTags removes HTML tags and decodes entities, collapsing the runs of
// whitespace that tag removal leaves behind.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsRune(s, '<') && !strings.ContainsRune(s, '&') {
		return s
	}
	s = containerRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return collapseSpaces(s)
}

// collapseSpaces squeezes consecutive spaces and tabs introduced by tag
// removal. Newlines are preserved so snippet extraction keeps line shape.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if lastSpace {
				continue
			}
			lastSpace = true
			b.WriteRune(' ')
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
