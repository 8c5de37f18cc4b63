// Package ignore reads gitignore-style exclude files and matches relative
// paths against them. It decides which files of an external directory are
// imported as context.
package ignore

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultIgnoreFiles are looked up in the root of an imported directory.
var DefaultIgnoreFiles = []string{".ergonignore", ".gitignore"}

// DefaultPatterns apply when a directory has no ignore file.
var DefaultPatterns = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
}

// Parser reads and parses gitignore-style files.
type Parser struct {
	// IgnoreFiles is the list of ignore file names to look for.
	IgnoreFiles []string

	// FallbackPatterns are returned when no ignore files are found.
	FallbackPatterns []string
}

// NewParser creates a new ignore file parser with the given configuration.
func NewParser(ignoreFiles, fallbackPatterns []string) *Parser {
	return &Parser{
		IgnoreFiles:      ignoreFiles,
		FallbackPatterns: fallbackPatterns,
	}
}

// ParseDir reads every ignore file present in root and returns the combined
// patterns. If none is found the fallback patterns are returned.
func (p *Parser) ParseDir(root string) ([]string, error) {
	var patterns []string
	foundAny := false

	for _, name := range p.IgnoreFiles {
		filePatterns, err := parseFile(filepath.Join(root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		patterns = append(patterns, filePatterns...)
		foundAny = true
	}

	if !foundAny {
		return p.FallbackPatterns, nil
	}
	return deduplicate(patterns), nil
}

func parseFile(name string) ([]string, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pattern := parseLine(scanner.Text()); pattern != "" {
			patterns = append(patterns, pattern)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

// parseLine converts one gitignore line into a glob. Comments, blank lines
// and negations yield "".
func parseLine(line string) string {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return ""
	}
	return toGlobPattern(line)
}

// toGlobPattern turns a gitignore pattern into a slash-separated glob where
// "**" spans any number of path segments.
func toGlobPattern(pattern string) string {
	anchored := strings.HasPrefix(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")

	dirOnly := strings.HasSuffix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")

	if !anchored && !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern
	}

	// Bare names without an extension are treated as directories.
	if dirOnly || (!strings.HasSuffix(pattern, "/**") && !strings.Contains(path.Base(pattern), ".")) {
		pattern += "/**"
	}
	return pattern
}

func deduplicate(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}
	return result
}

// Matcher reports whether relative paths are excluded by a set of globs.
type Matcher struct {
	patterns [][]string
}

// NewMatcher compiles patterns produced by a Parser. Malformed globs never
// match.
func NewMatcher(patterns []string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		m.patterns = append(m.patterns, strings.Split(p, "/"))
	}
	return m
}

// Match reports whether rel, a slash-separated path relative to the
// directory the patterns were read from, is excluded.
func (m *Matcher) Match(rel string) bool {
	if m == nil {
		return false
	}
	segments := strings.Split(path.Clean(filepath.ToSlash(rel)), "/")
	for _, pattern := range m.patterns {
		if matchSegments(pattern, segments) {
			return true
		}
	}
	return false
}

func matchSegments(pattern, name []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchSegments(pattern[1:], name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if ok, err := path.Match(pattern[0], name[0]); err != nil || !ok {
			return false
		}
		pattern, name = pattern[1:], name[1:]
	}
	return len(name) == 0
}
