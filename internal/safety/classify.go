package safety

import (
	"fmt"
	"regexp"
	"strings"
)

// Topic keywords that always block. Matched case-insensitively on word
// boundaries so "skill" never trips on "kill".
var denylistTopics = map[string][]string{
	"violence":      {"kill", "murder", "blood", "gun", "knife", "weapon", "shoot", "stab", "violence", "violent", "torture", "war"},
	"adult content": {"naked", "nude", "sexy", "erotic", "seduce"},
	"hate speech":   {"racist", "racism", "nazi", "slur", "bigot"},
	"substances":    {"drugs", "cocaine", "heroin", "meth", "alcohol", "vodka", "whiskey", "cigarette", "vape"},
	"horror":        {"demon", "devil", "satan", "zombie", "undead", "corpse", "haunted", "possessed"},
	"profanity":     {"damn", "bastard", "crap", "piss"},
}

// Themes recognized by the story wizard. An unknown theme is suspicious but
// not independently blocking.
var allowedThemes = map[string]bool{
	"adventure": true, "friendship": true, "family": true, "animals": true,
	"nature": true, "bedtime": true, "seasons": true, "holidays": true,
	"school": true, "imagination": true, "kindness": true, "courage": true,
	"ocean": true, "space": true, "dinosaurs": true, "fairy tale": true,
	"sports": true, "music": true, "travel": true, "magic": true,
}

type structuralPattern struct {
	name string
	re   *regexp.Regexp
}

// Patterns that leak personal data or smuggle markup into prompts. A hit
// raises severity to at least low.
var structuralPatterns = []structuralPattern{
	{"phone number", regexp.MustCompile(`\b\d{3}[-.\s]?\d{3,4}[-.\s]?\d{4}\b`)},
	{"email address", regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)},
	{"url", regexp.MustCompile(`(?i)\bhttps?://\S+|\bwww\.\S+`)},
	{"sensitive info", regexp.MustCompile(`(?i)\b(password|credit card|social security|ssn|bank account|home address)\b`)},
	{"markup injection", regexp.MustCompile(`<[a-zA-Z/][^>]*>`)},
}

var denylistRe = compileDenylist()

func compileDenylist() map[string]*regexp.Regexp {
	res := make(map[string]*regexp.Regexp, len(denylistTopics))
	for topic, words := range denylistTopics {
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = regexp.QuoteMeta(w)
		}
		res[topic] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return res
}

// Classify scans text for denylisted topics and structural leak patterns.
// Any denylist hit forces severity high; structural hits raise severity to
// at least low. Malformed input is treated as empty text.
func Classify(text string) Verdict {
	v := Verdict{Severity: SeverityNone}
	if strings.TrimSpace(text) == "" {
		return v
	}

	for topic, re := range denylistRe {
		if m := re.FindString(text); m != "" {
			v.Flags = append(v.Flags, fmt.Sprintf("denylisted topic: %s", topic))
			v.raise(SeverityHigh)
		}
	}

	for _, p := range structuralPatterns {
		if p.re.MatchString(text) {
			v.Flags = append(v.Flags, fmt.Sprintf("structural pattern: %s", p.name))
			v.raise(SeverityLow)
		}
	}

	return v
}

// ClassifyWithTheme classifies text and additionally checks the supplied
// theme against the allow-list. An unrecognized theme raises severity to at
// least low.
func ClassifyWithTheme(text, theme string) Verdict {
	v := Classify(text)
	theme = strings.ToLower(strings.TrimSpace(theme))
	if theme != "" && !allowedThemes[theme] {
		v.Flags = append(v.Flags, "unrecognized theme")
		v.raise(SeverityLow)
	}
	return v
}
