package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// source is a stack of key/value layers consulted from the highest priority down.
type source struct {
	layers []map[string]string
}

func newSource(options loaderOptions, dotenv map[string]string) source {
	var layers []map[string]string
	if options.envMap != nil {
		layers = append(layers, options.envMap)
	}
	if options.useSystemEnv {
		layers = append(layers, systemEnv())
	}
	if dotenv != nil {
		layers = append(layers, dotenv)
	}
	return source{layers: layers}
}

func systemEnv() map[string]string {
	out := make(map[string]string)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// flatten returns the effective view with higher layers winning.
func (s source) flatten() map[string]string {
	out := make(map[string]string)
	for i := len(s.layers) - 1; i >= 0; i-- {
		for key, value := range s.layers[i] {
			out[key] = value
		}
	}
	return out
}

// raw returns the first non-empty value for key.
func (s source) raw(key string) (string, bool) {
	for _, layer := range s.layers {
		if value, ok := layer[key]; ok {
			if value == "" {
				return "", false
			}
			return value, true
		}
	}
	return "", false
}

func (s source) str(key, fallback string) string {
	if value, ok := s.raw(key); ok {
		return value
	}
	return fallback
}

func (s source) lower(key, fallback string) string {
	return strings.ToLower(s.str(key, fallback))
}

func (s source) duration(key string, fallback time.Duration) time.Duration {
	value, ok := s.raw(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) integer(key string, fallback int) int {
	value, ok := s.raw(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) flag(key string, fallback bool) bool {
	value, ok := s.raw(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// list splits a comma separated value, dropping blanks.
func (s source) list(key string) []string {
	value, _ := s.raw(key)
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// pairs parses "name=value,name=value". Names are lower-cased; entries with an empty side are skipped.
func (s source) pairs(key string) map[string]string {
	out := make(map[string]string)
	for _, entry := range s.list(key) {
		name, value, ok := strings.Cut(entry, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if !ok || name == "" || value == "" {
			continue
		}
		out[name] = value
	}
	return out
}

func upperAll(values []string) []string {
	for i := range values {
		values[i] = strings.ToUpper(values[i])
	}
	return values
}
