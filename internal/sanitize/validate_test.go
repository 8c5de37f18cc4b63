package sanitize

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name string
		rel  string
		want string
	}{
		{"file", "notes.md", filepath.Join(root, "notes.md")},
		{"nested", "guides/setup.md", filepath.Join(root, "guides", "setup.md")},
		{"traversal stripped", "../../outside.md", filepath.Join(root, "outside.md")},
		{"absolute made relative", "/etc/passwd", filepath.Join(root, "etc", "passwd")},
		{"empty is root", "", root},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Join(root, tt.rel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, Within(root, got))
		})
	}
}

func TestJoin_EmptyRoot(t *testing.T) {
	_, err := Join("", "x.md")
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestWithin(t *testing.T) {
	root := t.TempDir()

	assert.NoError(t, Within(root, root))
	assert.NoError(t, Within(root, filepath.Join(root, "a", "b")))
	assert.NoError(t, Within(root, filepath.Join(root, "..data")))

	assert.ErrorIs(t, Within(root, filepath.Dir(root)), ErrPathTraversal)
	assert.ErrorIs(t, Within(root, filepath.Join(root, "..", "sibling")), ErrPathTraversal)
	assert.ErrorIs(t, Within(root, ""), ErrEmptyPath)
}
