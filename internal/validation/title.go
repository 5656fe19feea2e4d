package validation

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const maxTitleRunes = 60

// plainText strips markup from a card field and collapses whitespace.
func plainText(field string) string {
	z := html.NewTokenizer(strings.NewReader(field))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "div", "p", "li":
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "div", "p", "li":
				b.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// shortTitle makes a display title out of a card field.
func shortTitle(field string) string {
	t := plainText(field)
	if utf8.RuneCountInString(t) <= maxTitleRunes {
		return t
	}
	r := []rune(t)
	return strings.TrimSpace(string(r[:maxTitleRunes-3])) + "..."
}

// shortID keeps the last six characters of an id.
func shortID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}
