package render

import (
	"strings"
	"unicode"
)

// Ellipsis marks truncated text.
const Ellipsis = "…"

// TextFitFactor is the usable text width inside a node, as a multiple of
// its radius.
const TextFitFactor = 1.6

// FitText shortens text until its measured width is at most maxWidth. Runes
// are trimmed from the end and an ellipsis appended; if not even the
// ellipsis fits the result is empty. Text that already fits is returned
// unchanged, so FitText(m, FitText(m, s, w), w) == FitText(m, s, w).
func FitText(m Measurer, text string, maxWidth float64) string {
	if m.MeasureText(text) <= maxWidth {
		return text
	}
	runes := []rune(text)
	for n := len(runes) - 1; n >= 0; n-- {
		head := strings.TrimRightFunc(string(runes[:n]), unicode.IsSpace)
		candidate := head + Ellipsis
		if m.MeasureText(candidate) <= maxWidth {
			return candidate
		}
	}
	return ""
}
