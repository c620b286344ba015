// Package phone extracts and normalizes phone numbers to the canonical
// +7XXXXXXXXXX form used as the lifecycle key.
package phone

import (
	"regexp"
	"strings"
)

// The prefix/body separator is tied to the prefix: a candidate must start
// on the trunk digit itself, never on surrounding whitespace, or an
// 8-prefixed number embedded in text loses its trunk digit to the body.
var phonePattern = regexp.MustCompile(`(?:(?:\+7|7|8)[\s\-]?)?\(?[0-9]{3}\)?[\s\-]?[0-9]{3}[\s\-]?[0-9]{2}[\s\-]?[0-9]{2}`)

// Extract finds the first phone number in free text and returns it in
// canonical international form, or "" when the text carries none.
// Normalization: separators stripped, the national trunk prefix 8 replaced
// by +7, bare 10-digit local numbers assumed to be +7.
func Extract(text string) string {
	for _, match := range phonePattern.FindAllString(text, -1) {
		if number := Normalize(match); number != "" {
			return number
		}
	}
	return ""
}

// Normalize canonicalizes one already-isolated number. Returns "" when the
// input cannot be a valid number.
func Normalize(raw string) string {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(raw)

	switch {
	case strings.HasPrefix(cleaned, "+7"):
		if len(cleaned) != 12 {
			return ""
		}
		return cleaned
	case strings.HasPrefix(cleaned, "7"), strings.HasPrefix(cleaned, "8"):
		if len(cleaned) != 11 {
			return ""
		}
		return "+7" + cleaned[1:]
	case len(cleaned) == 10:
		return "+7" + cleaned
	default:
		return ""
	}
}
