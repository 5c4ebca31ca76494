package extract

import (
	"strings"
	"unicode/utf8"
)

// plainUnits splits UTF-8 text into paragraph units on blank lines.
// Invalid UTF-8 bytes are dropped.
func plainUnits(content []byte) []unit {
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	var units []unit
	for _, para := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(para) != "" {
			units = append(units, unit{text: para})
		}
	}
	return units
}
