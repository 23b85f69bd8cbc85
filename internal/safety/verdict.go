// Package safety gates user- and AI-supplied text before it reaches a
// generation provider or a printed page. All checks are pure functions over
// the input text; nothing here performs I/O.
package safety

// Severity is an ordered moderation outcome.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

// String returns the severity label.
func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Verdict is the result of classifying a piece of text.
type Verdict struct {
	Severity Severity `json:"severity"`
	Flags    []string `json:"flags,omitempty"`
}

// Approved reports whether the text may proceed without review.
func (v Verdict) Approved() bool {
	return v.Severity <= SeverityLow
}

// RequiresReview reports whether a human should look at the text before it
// is used.
func (v Verdict) RequiresReview() bool {
	return v.Severity >= SeverityMedium || len(v.Flags) > 3
}

// raise lifts the verdict severity to at least s.
func (v *Verdict) raise(s Severity) {
	if s > v.Severity {
		v.Severity = s
	}
}
