package observability

import (
	"strings"
	"unicode"
)

// clean drops control characters and truncates to limit runes so request data cannot forge log
// lines.
func clean(value string, limit int) string {
	value = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	if runes := []rune(value); len(runes) > limit {
		value = string(runes[:limit])
	}
	return value
}
