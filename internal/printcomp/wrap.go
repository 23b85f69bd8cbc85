package printcomp

import "strings"

// wrapText word-wraps text greedily against maxWidth using the supplied
// glyph measurer. Explicit newlines force line breaks; a single word wider
// than the line stands alone rather than being split mid-glyph.
func wrapText(measure func(string) float64, text string, maxWidth float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		words := strings.Fields(para)
		line := ""
		for _, word := range words {
			candidate := word
			if line != "" {
				candidate = line + " " + word
			}
			if measure(candidate) <= maxWidth || line == "" {
				line = candidate
				continue
			}
			lines = append(lines, line)
			line = word
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
