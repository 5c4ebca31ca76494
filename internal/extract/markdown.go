package extract

import (
	"strings"

	"gitlab.com/golang-commonmark/markdown"
)

// markdownUnits tokenizes Markdown and yields one unit per block, each
// carrying the heading path in effect where the block appears. A heading of
// level L truncates the path at depth L-1 before pushing itself, so sibling
// and shallower headings never nest under each other.
func markdownUnits(content []byte) []unit {
	md := markdown.New()
	tokens := md.Parse(content)

	var units []unit
	var stack []string
	inHeading := false

	snapshot := func() []string {
		return append([]string(nil), stack...)
	}

	for _, tok := range tokens {
		switch t := tok.(type) {
		case *markdown.HeadingOpen:
			level := t.HLevel
			for len(stack) >= level {
				stack = stack[:len(stack)-1]
			}
			inHeading = true
		case *markdown.HeadingClose:
			inHeading = false
		case *markdown.Inline:
			text := inlineText(t)
			if inHeading {
				stack = append(stack, text)
				units = append(units, unit{text: text, headingPath: snapshot()})
			} else if text != "" {
				units = append(units, unit{text: text, headingPath: snapshot()})
			}
		case *markdown.Fence:
			if text := strings.TrimSpace(t.Content); text != "" {
				units = append(units, unit{text: text, headingPath: snapshot()})
			}
		case *markdown.CodeBlock:
			if text := strings.TrimSpace(t.Content); text != "" {
				units = append(units, unit{text: text, headingPath: snapshot()})
			}
		}
	}
	return units
}

// inlineText flattens an inline token to plain text, dropping markup.
func inlineText(t *markdown.Inline) string {
	if len(t.Children) == 0 {
		return strings.TrimSpace(t.Content)
	}
	var b strings.Builder
	for _, child := range t.Children {
		switch c := child.(type) {
		case *markdown.Text:
			b.WriteString(c.Content)
		case *markdown.CodeInline:
			b.WriteString(c.Content)
		case *markdown.Softbreak:
			b.WriteByte(' ')
		case *markdown.Hardbreak:
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String())
}
