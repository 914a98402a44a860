package tui

import (
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// wrapText breaks s at spaces so no line exceeds width cells. Words wider than
// width are split.
func wrapText(s string, width int) string {
	if width <= 0 {
		return s
	}
	var out strings.Builder
	lineWidth := 0
	for _, word := range strings.Fields(s) {
		w := runewidth.StringWidth(word)
		switch {
		case lineWidth == 0:
		case lineWidth+1+w <= width:
			out.WriteByte(' ')
			lineWidth++
		default:
			out.WriteByte('\n')
			lineWidth = 0
		}
		for lineWidth+w > width {
			head := runewidth.Truncate(word, width, "")
			if head == "" {
				_, size := utf8.DecodeRuneInString(word)
				head = word[:size]
			}
			out.WriteString(head)
			out.WriteByte('\n')
			word = word[len(head):]
			w = runewidth.StringWidth(word)
		}
		out.WriteString(word)
		lineWidth += w
	}
	return out.String()
}
