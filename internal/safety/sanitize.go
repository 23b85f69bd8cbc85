package safety

import (
	"regexp"
	"strings"
)

// MaxPromptLen is the hard cap on sanitized prompt fragments.
const MaxPromptLen = 500

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	doubleColonRe = regexp.MustCompile(`:{2,}`)
	strippedChars = "[]{}<>|\\"
)

// SanitizeForPrompt normalizes free text before it is embedded into a
// generation prompt: newlines and repeated whitespace collapse to single
// spaces, bracket/brace/pipe/backslash characters are stripped, doubled
// colons collapse (anti role-marker), and the result is truncated to
// MaxPromptLen characters.
//
// This is a best-effort normalizer, not a security boundary. Run
// DetectInjection on the original text first; sanitizing can mask a pattern.
func SanitizeForPrompt(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(strippedChars, r) {
			continue
		}
		b.WriteRune(r)
	}

	s := whitespaceRe.ReplaceAllString(b.String(), " ")
	s = doubleColonRe.ReplaceAllString(s, ":")
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > MaxPromptLen {
		s = strings.TrimSpace(string(runes[:MaxPromptLen]))
	}
	return s
}
