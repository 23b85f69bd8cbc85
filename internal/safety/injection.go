package safety

import (
	"regexp"
	"strings"
)

// InjectionReport lists every prompt-manipulation pattern that matched.
type InjectionReport struct {
	Detected        bool     `json:"detected"`
	MatchedPatterns []string `json:"matched_patterns,omitempty"`
}

type injectionPattern struct {
	name string
	re   *regexp.Regexp
}

// Callers treat any hit here as severity high, independent of Classify.
// These must run on the ORIGINAL text: SanitizeForPrompt strips the very
// characters some of these patterns key on.
var injectionPatterns = []injectionPattern{
	{"instruction override", regexp.MustCompile(`(?i)\b(ignore|disregard|forget|override)\b[^.]{0,40}\b(previous|prior|above|earlier|all)\b[^.]{0,40}\b(instructions?|prompts?|rules|guidelines)\b`)},
	{"fake role marker", regexp.MustCompile(`(?im)^\s*(system|assistant|developer)\s*:|\[\s*(system|assistant|inst)\s*\]|<\s*/?\s*(system|sys|instructions?)\s*>`)},
	{"jailbreak keyword", regexp.MustCompile(`(?i)\b(jailbreak|jailbroken|dan mode|developer mode|do anything now|unfiltered mode)\b`)},
	{"role-play escape", regexp.MustCompile(`(?i)\b(pretend|act as if|imagine)\b[^.]{0,40}\b(no (rules|restrictions|filters?|limits)|you are not an? (ai|assistant))\b`)},
	{"system prompt disclosure", regexp.MustCompile(`(?i)\b(reveal|show|print|repeat|output)\b[^.]{0,30}\b(system prompt|your (instructions|prompt|rules))\b`)},
	{"bracket flood", regexp.MustCompile(`[\[\]{}<>]{4,}`)},
	{"escaped newline", regexp.MustCompile(`\\n`)},
}

// DetectInjection tests text against the fixed prompt-manipulation pattern
// set and returns every pattern that matched, not just the first.
func DetectInjection(text string) InjectionReport {
	report := InjectionReport{}
	if strings.TrimSpace(text) == "" {
		return report
	}

	for _, p := range injectionPatterns {
		if p.re.MatchString(text) {
			report.Detected = true
			report.MatchedPatterns = append(report.MatchedPatterns, p.name)
		}
	}
	return report
}
