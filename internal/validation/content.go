// Package validation normalizes and checks user-supplied text.
package validation

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	MaxCommentLength   = 2000
	MaxTitleLength     = 300
	MaxSummaryLength   = 10000
	MaxTagNameLength   = 120
	MaxNoteLength      = 2000
	MaxStudentIDLength = 64
	MaxEntityIDLength  = 191
)

var strict = bluemonday.StrictPolicy()

// refServiceRegex names the owning module of a post reference, e.g. "jobs".
var refServiceRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// SanitizeText strips every HTML element, decodes entities back to plain
// text, and trims surrounding whitespace.
func SanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// ValidateLength checks that s holds between minLen and maxLen characters.
func ValidateLength(field, s string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(s)
	if n < minLen {
		if minLen == 1 {
			return fmt.Errorf("%s is required", field)
		}
		return fmt.Errorf("%s must be at least %d characters", field, minLen)
	}
	if n > maxLen {
		return fmt.Errorf("%s must be at most %d characters", field, maxLen)
	}
	return nil
}

// ValidateRefService checks the service name of a post reference.
func ValidateRefService(service string) error {
	if !refServiceRegex.MatchString(service) {
		return fmt.Errorf("ref.service must start with a letter and contain only lowercase letters, numbers, '-' and '_'")
	}
	return nil
}
