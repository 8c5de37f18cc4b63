package sanitize

import (
	"strings"
	"testing"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple lowercase",
			input:    "roadmap",
			expected: "roadmap",
		},
		{
			name:     "spaces and punctuation",
			input:    "My Cool Project!",
			expected: "my-cool-project",
		},
		{
			name:     "leading and trailing separators",
			input:    "  --Hello--  ",
			expected: "hello",
		},
		{
			name:     "repeated hyphens collapsed",
			input:    "a---b",
			expected: "a-b",
		},
		{
			name:     "whitespace around hyphen",
			input:    "Q3 - Planning",
			expected: "q3-planning",
		},
		{
			name:     "underscores become hyphens",
			input:    "snake_case_name",
			expected: "snake-case-name",
		},
		{
			name:     "removed characters do not split words",
			input:    "don't stop",
			expected: "dont-stop",
		},
		{
			name:     "non-ascii letters dropped",
			input:    "Café Menü",
			expected: "caf-men",
		},
		{
			name:     "tabs and newlines",
			input:    "one\ttwo\nthree",
			expected: "one-two-three",
		},
		{
			name:     "only punctuation",
			input:    "!!!",
			expected: "",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
		{
			name:     "path characters",
			input:    "../etc/passwd",
			expected: "etcpasswd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slug(tt.input)
			if got != tt.expected {
				t.Errorf("Slug(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSlug_Properties(t *testing.T) {
	inputs := []string{
		"My Cool Project!",
		"--x--",
		"  A  B  C  ",
		"__init__",
		"Ünïcödé",
		"v1.2.3 release",
		" nbsp ",
		"-",
		"a_-_b",
	}

	for _, in := range inputs {
		got := Slug(in)

		if Slug(got) != got {
			t.Errorf("Slug not idempotent for %q: %q -> %q", in, got, Slug(got))
		}
		for _, r := range got {
			if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
				t.Errorf("Slug(%q) = %q contains %q", in, got, r)
			}
		}
		if strings.HasPrefix(got, "-") || strings.HasSuffix(got, "-") {
			t.Errorf("Slug(%q) = %q has leading or trailing hyphen", in, got)
		}
		if strings.Contains(got, "--") {
			t.Errorf("Slug(%q) = %q contains repeated hyphens", in, got)
		}
	}
}

func TestPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain relative", "guides/setup.md", "guides/setup.md"},
		{"parent traversal", "../../etc/passwd", "etc/passwd"},
		{"embedded traversal", "a/../b.md", "a//b.md"},
		{"leading slashes", "///abs/file.md", "abs/file.md"},
		{"leading backslash", `\win\file.md`, `win\file.md`},
		{"four dots", "....", ""},
		{"five dots", ".....md", ".md"},
		{"dot segments kept", "./notes.md", "./notes.md"},
		{"empty", "", ""},
		{"only slash", "/", ""},
		{"slash then dots", "/../x", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Path(tt.input)
			if got != tt.expected {
				t.Errorf("Path(%q) = %q, want %q", tt.input, got, tt.expected)
			}
			if strings.Contains(got, "..") {
				t.Errorf("Path(%q) = %q still contains '..'", tt.input, got)
			}
		})
	}
}

func TestHasExtension(t *testing.T) {
	tests := []struct {
		name string
		exts []string
		want bool
	}{
		{"notes.md", []string{".md"}, true},
		{"notes.txt", []string{".md"}, false},
		{"notes.txt", []string{".md", ".txt"}, true},
		{"notes", []string{".md"}, false},
		{"notes.MD", []string{".md"}, false},
		{"notes.md", nil, false},
	}

	for _, tt := range tests {
		if got := HasExtension(tt.name, tt.exts...); got != tt.want {
			t.Errorf("HasExtension(%q, %v) = %v, want %v", tt.name, tt.exts, got, tt.want)
		}
	}
}
