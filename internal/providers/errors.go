package providers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fableforge/fableforge/internal/safety"
)

// ValidationError indicates malformed provider output. It is never retried
// and surfaced as-is.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation: %s: %v", e.Msg, e.Err)
	}
	return "validation: " + e.Msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// InjectionError indicates prompt-manipulation patterns were found in
// user-supplied text, which is rejected before any provider call. The
// message carries pattern names only, never the offending text itself.
type InjectionError struct {
	Field    string
	Patterns []string
}

func (e *InjectionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("prompt injection detected in %s: %s", e.Field, strings.Join(e.Patterns, "; "))
	}
	return "prompt injection detected: " + strings.Join(e.Patterns, "; ")
}

// ModerationError indicates content was blocked by the safety gate. The
// message carries only categories and pattern names, never the offending
// text itself.
type ModerationError struct {
	Severity safety.Severity
	Flags    []string
}

func (e *ModerationError) Error() string {
	if len(e.Flags) == 0 {
		return fmt.Sprintf("content blocked (severity %s)", e.Severity)
	}
	return fmt.Sprintf("content blocked (severity %s): %s", e.Severity, strings.Join(e.Flags, "; "))
}

// ProviderError indicates a transient external-service failure. It is the
// only error class the retry combinator retries.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether err should be retried by the Retry combinator.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
