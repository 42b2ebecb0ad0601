// Package filtering selects color rules by name pattern.
package filtering

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadPatterns reads name patterns from a file, one per line. Blank lines and
// lines starting with # are ignored.
func LoadPatterns(path string) ([]string, error) {
	// #nosec G304 -- Path is supplied by the operator
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pattern file: %w", err)
	}
	return patterns, nil
}

// MatchGlob reports whether name matches pattern, ignoring case. Each * in
// the pattern matches any run of characters; a pattern without * must equal
// the name.
func MatchGlob(pattern, name string) bool {
	pattern = strings.ToLower(pattern)
	name = strings.ToLower(name)

	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == name
	}

	// The first part anchors at the start, the last at the end
	first, last := parts[0], parts[len(parts)-1]
	if !strings.HasPrefix(name, first) {
		return false
	}
	rest := name[len(first):]
	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	return len(rest) >= len(last) && strings.HasSuffix(rest, last)
}

// Matcher matches names against a set of glob patterns
type Matcher struct {
	exact    map[string]struct{}
	wildcard []string
}

// NewMatcher builds a matcher; names matching any pattern are selected
func NewMatcher(patterns []string) *Matcher {
	m := &Matcher{exact: make(map[string]struct{})}
	for _, p := range patterns {
		if strings.Contains(p, "*") {
			m.wildcard = append(m.wildcard, p)
			continue
		}
		m.exact[strings.ToLower(p)] = struct{}{}
	}
	return m
}

// Empty reports whether the matcher has no patterns
func (m *Matcher) Empty() bool {
	return len(m.exact) == 0 && len(m.wildcard) == 0
}

// Match reports whether name matches any pattern
func (m *Matcher) Match(name string) bool {
	if _, ok := m.exact[strings.ToLower(name)]; ok {
		return true
	}
	for _, p := range m.wildcard {
		if MatchGlob(p, name) {
			return true
		}
	}
	return false
}
