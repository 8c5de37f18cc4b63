package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
	}{
		{"empty line", "", ""},
		{"whitespace only", "   ", ""},
		{"comment", "# this is a comment", ""},
		{"negation skipped", "!important.md", ""},
		{"simple file glob", "*.log", "**/*.log"},
		{"simple directory", "node_modules", "**/node_modules/**"},
		{"directory with slash", "node_modules/", "**/node_modules/**"},
		{"nested path", "vendor/cache", "vendor/cache/**"},
		{"anchored directory", "/dist", "dist/**"},
		{"anchored file", "/CHANGELOG.md", "CHANGELOG.md"},
		{"double star pattern", "**/build", "**/build/**"},
		{"file with extension", "draft.md", "**/draft.md"},
		{"nested glob", "drafts/*.md", "drafts/*.md"},
		{"already recursive", "docs/**", "docs/**"},
		{"crlf line", "tmp\r", "**/tmp/**"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseLine(tt.line)
			if result != tt.expected {
				t.Errorf("parseLine(%q) = %q, want %q", tt.line, result, tt.expected)
			}
		})
	}
}

func TestParseDir(t *testing.T) {
	tmpDir := t.TempDir()

	gitignore := "# Build outputs\ndist/\n\n*.log\n"
	ergonignore := "drafts/\n*.log\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".gitignore"), []byte(gitignore), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".ergonignore"), []byte(ergonignore), 0600))

	parser := NewParser(DefaultIgnoreFiles, DefaultPatterns)
	patterns, err := parser.ParseDir(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, []string{"**/drafts/**", "**/*.log", "**/dist/**"}, patterns)
}

func TestParseDir_Fallback(t *testing.T) {
	parser := NewParser(DefaultIgnoreFiles, DefaultPatterns)
	patterns, err := parser.ParseDir(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultPatterns, patterns)
}

func TestMatcher(t *testing.T) {
	m := NewMatcher([]string{"**/node_modules/**", "**/*.log", "drafts/**", "docs/private/*.md"})

	tests := []struct {
		path string
		want bool
	}{
		{"node_modules", true},
		{"node_modules/pkg/readme.md", true},
		{"web/node_modules/readme.md", true},
		{"debug.log", true},
		{"logs/deep/app.log", true},
		{"drafts/idea.md", true},
		{"notes/drafts/idea.md", false},
		{"docs/private/secret.md", true},
		{"docs/private/nested/secret.md", false},
		{"docs/public.md", false},
		{"readme.md", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.path))
		})
	}
}

func TestMatcher_Nil(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Match("anything.md"))
	assert.False(t, NewMatcher(nil).Match("anything.md"))
}
