package source

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strings"
)

// IgnoreFile is the name of the per-root file listing extra ignore patterns,
// one glob per line.
const IgnoreFile = ".snapsyncignore"

// IgnoreMatcher decides which archive names a source skips when listing.
// Patterns are path.Match globs tested against the archive file name
// ("nightly.tar"), never against a directory.
type IgnoreMatcher struct {
	patterns []string
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines, lines starting with '#' and malformed globs are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []string
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		if _, err := path.Match(raw, ""); err != nil {
			continue
		}
		patterns = append(patterns, raw)
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the archive with the given file name is ignored.
func (m *IgnoreMatcher) Match(name string) bool {
	if m == nil || name == "" {
		return false
	}
	for _, p := range m.patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// With returns a matcher holding the patterns of m followed by extra.
func (m *IgnoreMatcher) With(extra []string) *IgnoreMatcher {
	merged := NewIgnoreMatcher(extra)
	if m != nil {
		merged.patterns = append(append([]string{}, m.patterns...), merged.patterns...)
	}
	return merged
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
