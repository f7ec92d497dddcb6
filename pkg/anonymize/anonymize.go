// Package anonymize strips or buckets PHI from clinical data before any
// external model invocation (C6). Pure string/number transforms; no
// pack library covers domain-specific PHI scrubbing, so this is built on
// the standard library alone, same justification as pkg/analytics.
package anonymize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// AgeBand replaces an exact age with a five-year band "lo-hi", e.g. age 42
// becomes "40-44". A nil or negative age becomes "unknown" (spec.md §4.6).
func AgeBand(age *int) string {
	if age == nil || *age < 0 {
		return "unknown"
	}
	lo := (*age / 5) * 5
	return fmt.Sprintf("%d-%d", lo, lo+4)
}

// SessionID generates a fresh identifier to stand in for any caller-facing
// identifier that must not leave the system (spec.md §4.6).
func SessionID() string {
	return uuid.New().String()
}

var (
	salutationPattern = regexp.MustCompile(`(?i)\b(mr|mrs|ms|dr|patient|name)\b\.?`)
	capitalizedName   = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
	phonePattern      = regexp.MustCompile(`(\+?\d[\d\-. ]{7,}\d)`)
	emailPattern      = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	tokenCasePattern  = regexp.MustCompile(`\[(email|phone|redacted)\]`)
)

// ScrubText normalizes a free-text symptom string: removes salutations and
// labels, redacts runs of two or more consecutive capitalized words (so a
// leading salutation like "Patient John Smith" is redacted whole, not just
// its first two words), phone numbers, and email addresses, lowercases,
// and collapses whitespace (spec.md §4.6). Name detection runs before
// lowercasing, since capitalization is the only signal for it; the three
// bracket tokens are restored to uppercase afterward so they read the same
// as the email/phone literals.
func ScrubText(s string) string {
	s = emailPattern.ReplaceAllString(s, "[EMAIL]")
	s = phonePattern.ReplaceAllString(s, "[PHONE]")
	s = capitalizedName.ReplaceAllString(s, "[REDACTED]")
	s = strings.ToLower(s)
	s = tokenCasePattern.ReplaceAllStringFunc(s, strings.ToUpper)
	s = salutationPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
