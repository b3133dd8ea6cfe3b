package handlers

import (
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	errEmptyTimestamp   = errors.New("timestamp is empty")
	errBadTimestamp     = errors.New("must be RFC3339 timestamp")
	errNotPositiveCount = errors.New("must be a positive integer")
)

// formatTime renders UTC RFC3339 with sub-second precision; the zero time renders empty.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePointer(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// parseFilterValues flattens repeated and comma separated query values into lower-case
// distinct entries, keeping first-seen order.
func parseFilterValues(values []string) []string {
	var filters []string
	for _, raw := range values {
		for part := range strings.SplitSeq(raw, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" && !slices.Contains(filters, part) {
				filters = append(filters, part)
			}
		}
	}
	return filters
}

// parseTimeParam accepts RFC3339 with or without fractional seconds.
func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errEmptyTimestamp
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, errBadTimestamp
	}
	return ts.UTC(), nil
}

// parseBoundedInt reads a positive integer, returning def for an empty value and clamping to
// limit when limit is positive.
func parseBoundedInt(raw string, def, limit int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, errNotPositiveCount
	}
	if limit > 0 {
		value = min(value, limit)
	}
	return value, nil
}
