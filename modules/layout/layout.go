package layout

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MeasureFunc - rendered width of a string in the caller's font
type MeasureFunc func(s string) float64

var upper = cases.Upper(language.BrazilianPortuguese)

// Upper - pt-BR aware upper-casing applied before wrapping overlay text
func Upper(s string) string {
	return upper.String(s)
}

// Wrap - greedy word wrap. A line is committed as soon as the next word would
// push it past maxWidth; the first word of a line is always placed, so a single
// word wider than maxWidth ends up alone on its own line. Blank input yields [""].
func Wrap(text string, measure MeasureFunc, maxWidth float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	lines := make([]string, 0, 4)
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if measure(candidate) > maxWidth {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	return append(lines, current)
}
