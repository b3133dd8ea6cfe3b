package textutil

import "strings"

// Payment providers cap metadata keys at 40 and values at 500 characters.
const (
	maxMetadataKey   = 40
	maxMetadataValue = 500
)

// Metadata builds a provider metadata map from key/value pairs. Pairs with a blank key or value
// are skipped, oversized entries are clipped and a trailing odd argument is ignored. The result is
// nil when nothing survives.
func Metadata(pairs ...string) map[string]string {
	var out map[string]string
	for i := 0; i+1 < len(pairs); i += 2 {
		key := clip(strings.TrimSpace(pairs[i]), maxMetadataKey)
		value := clip(StripTags(pairs[i+1]), maxMetadataValue)
		if key == "" || value == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[key] = value
	}
	return out
}

func clip(value string, limit int) string {
	if runes := []rune(value); len(runes) > limit {
		return string(runes[:limit])
	}
	return value
}
