package textutil

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var plainTextPolicy = bluemonday.StrictPolicy()

// StripTags removes markup from user supplied text and collapses surrounding whitespace. Entities
// escaped by the sanitizer are decoded so names like O'Brien survive unchanged.
func StripTags(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	sanitized := html.UnescapeString(plainTextPolicy.Sanitize(trimmed))
	return strings.Join(strings.Fields(sanitized), " ")
}
