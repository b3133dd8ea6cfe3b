package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// fallbackFile serves secrets from a local "secret://name[?version=N]=value" file when Secret
// Manager cannot be reached. It is read once on first use.
type fallbackFile struct {
	path string

	once   sync.Once
	values map[string]string
	err    error
}

func (f *fallbackFile) lookup(ref reference, version string) (string, bool, error) {
	f.once.Do(f.load)
	if f.err != nil {
		return "", false, f.err
	}
	if value, ok := f.values[versionKey(ref.canonical, version)]; ok {
		return value, true, nil
	}
	value, ok := f.values[ref.canonical]
	return value, ok, nil
}

func (f *fallbackFile) load() {
	f.values = map[string]string{}
	if strings.TrimSpace(f.path) == "" {
		return
	}
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		f.err = fmt.Errorf("secrets: open fallback file: %w", err)
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if q := strings.Index(line, "?"); q >= 0 && q < idx {
			// secret://name?version=N=value: the reference ends after its single query parameter.
			next := strings.Index(line[idx+1:], "=")
			if next < 0 {
				continue
			}
			idx += next + 1
		}
		if idx <= 0 {
			continue
		}
		key, value := strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:])
		ref, err := parseReference(key)
		if err != nil {
			continue
		}
		if ref.version == "" {
			f.values[ref.canonical] = value
		}
		f.values[versionKey(ref.canonical, versionOr(ref.version, latestVersion))] = value
	}
	if err := scanner.Err(); err != nil {
		f.err = fmt.Errorf("secrets: read fallback file: %w", err)
	}
}

func versionKey(canonical, version string) string {
	return canonical + "#" + version
}

func versionOr(version, fallback string) string {
	if version == "" {
		return fallback
	}
	return version
}
