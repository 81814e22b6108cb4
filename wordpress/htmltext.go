package wordpress

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML returns the visible text of an HTML fragment with entities
// decoded and whitespace collapsed.
func StripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			if isInvisible(string(name)) {
				skip++
			}
			if !isInline(string(name)) {
				sb.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if isInvisible(string(name)) && skip > 0 {
				skip--
			}
			if !isInline(string(name)) {
				sb.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			sb.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

func isInvisible(tag string) bool {
	return tag == "script" || tag == "style" || tag == "noscript"
}

var inlineTags = map[string]struct{}{
	"a": {}, "abbr": {}, "b": {}, "code": {}, "em": {}, "i": {}, "mark": {},
	"small": {}, "span": {}, "strong": {}, "sub": {}, "sup": {}, "u": {},
}

func isInline(tag string) bool {
	_, ok := inlineTags[tag]
	return ok
}

// Truncate cuts s to at most limit runes and marks the cut with "...".
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
