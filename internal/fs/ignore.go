package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is read from the root of every directory being imported.
const IgnoreFileName = ".pvignore"

// defaultIgnorePatterns are always applied regardless of config or .pvignore.
// They cover the sidecar files cameras and desktop systems leave next to photos.
var defaultIgnorePatterns = []string{
	IgnoreFileName,
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	"._*",
	".thumbnails/",
	"@eaDir/",
}

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // match the relative path rather than the basename
	dirOnly   bool // a trailing '/' restricts the pattern to directories
}

// IgnoreMatcher decides which discovered entries are not import candidates.
// Patterns without '/' match a basename; patterns containing '/' match the
// path relative to the directory being imported. A trailing '/' makes a
// pattern apply to directories only, pruning everything beneath them.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	m.add(rawPatterns)
	return m
}

// With returns a matcher holding m's patterns plus extra.
func (m *IgnoreMatcher) With(extra []string) *IgnoreMatcher {
	out := &IgnoreMatcher{patterns: append([]ignorePattern(nil), m.patterns...)}
	out.add(extra)
	return out
}

func (m *IgnoreMatcher) add(rawPatterns []string) {
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		p := ignorePattern{}
		if strings.HasSuffix(raw, "/") {
			p.dirOnly = true
			raw = strings.TrimRight(raw, "/")
		}
		p.pattern = raw
		p.matchPath = strings.Contains(raw, "/")
		m.patterns = append(m.patterns, p)
	}
}

// Match reports whether the file at relativePath should be skipped.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	return m.match(relativePath, false)
}

// MatchDir reports whether the directory at relativePath should be pruned.
func (m *IgnoreMatcher) MatchDir(relativePath string) bool {
	return m.match(relativePath, true)
}

func (m *IgnoreMatcher) match(relativePath string, isDir bool) bool {
	if relativePath == "" || len(m.patterns) == 0 {
		return false
	}

	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)

	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		target := basename
		if p.matchPath {
			target = normalized
		}
		matched, err := filepath.Match(p.pattern, target)
		if err != nil {
			// Malformed patterns never match.
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
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
