// Package storage owns the on-disk layout of the data directory and the
// primitives the stores share: path resolution with containment checks,
// atomic writes and the error taxonomy.
//
// Directory structure:
//
//	<root>/
//	└── projects/
//	    └── {slug}/
//	        ├── project.json        ← project descriptor
//	        ├── context/            ← markdown context tree (any depth)
//	        │   └── guides/setup.md
//	        └── generated/          ← generated documents (flat)
//	            └── 2024-01-02T03-04-05-678Z-prd.md
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Buooy/ergon-pm/internal/sanitize"
)

// Names of the fixed entries inside the data directory.
const (
	ProjectsDirName  = "projects"
	DescriptorName   = "project.json"
	ContextDirName   = "context"
	GeneratedDirName = "generated"

	// MarkdownExt is the only extension recognised for context files and
	// generated documents.
	MarkdownExt = ".md"
)

// Permissions for everything created under the data directory.
const (
	DirPerm  os.FileMode = 0700
	FilePerm os.FileMode = 0600
)

// Layout resolves locations under a data directory. It holds no open
// handles and is safe for concurrent use.
type Layout struct {
	root string
}

// NewLayout returns a Layout rooted at root. The directory does not need to
// exist yet.
func NewLayout(root string) (*Layout, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: data directory is required", ErrInvalidInput)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}
	return &Layout{root: abs}, nil
}

// Root returns the absolute data directory.
func (l *Layout) Root() string {
	return l.root
}

// ProjectsDir returns the directory holding one subdirectory per project.
func (l *Layout) ProjectsDir() string {
	return filepath.Join(l.root, ProjectsDirName)
}

// EnsureProjectsDir creates the projects directory and its parents.
func (l *Layout) EnsureProjectsDir() error {
	if err := os.MkdirAll(l.ProjectsDir(), DirPerm); err != nil {
		return Failure("create projects directory", err)
	}
	return nil
}

// ProjectDir resolves the directory of the project addressed by slug. The
// slug is sanitized first; a slug that sanitizes to nothing or still names
// a nested path is rejected with ErrInvalidInput.
func (l *Layout) ProjectDir(slug string) (string, error) {
	clean := sanitize.Path(slug)
	if clean == "" || clean == "." || strings.ContainsAny(clean, `/\`) {
		return "", fmt.Errorf("%w: project slug %q", ErrInvalidInput, slug)
	}

	dir := filepath.Join(l.ProjectsDir(), clean)
	if err := sanitize.Within(l.ProjectsDir(), dir); err != nil || dir == l.ProjectsDir() {
		return "", fmt.Errorf("%w: project slug %q", ErrInvalidInput, slug)
	}
	return dir, nil
}

// ResolveSlug returns the directory name a slug addresses, so "/demo" and
// "demo" resolve to the same project.
func (l *Layout) ResolveSlug(slug string) (string, error) {
	dir, err := l.ProjectDir(slug)
	if err != nil {
		return "", err
	}
	return filepath.Base(dir), nil
}

// DescriptorPath resolves the project.json of the project addressed by slug.
func (l *Layout) DescriptorPath(slug string) (string, error) {
	dir, err := l.ProjectDir(slug)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DescriptorName), nil
}

// ContextDir resolves the root of a project's context tree.
func (l *Layout) ContextDir(slug string) (string, error) {
	dir, err := l.ProjectDir(slug)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ContextDirName), nil
}

// ContextPath resolves rel inside a project's context tree. rel is
// sanitized; an empty rel resolves to the context root itself.
func (l *Layout) ContextPath(slug, rel string) (string, error) {
	root, err := l.ContextDir(slug)
	if err != nil {
		return "", err
	}
	p, err := sanitize.Join(root, rel)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return p, nil
}

// GeneratedDir resolves the directory holding a project's generated documents.
func (l *Layout) GeneratedDir(slug string) (string, error) {
	dir, err := l.ProjectDir(slug)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, GeneratedDirName), nil
}

// ProjectExists reports whether the directory for slug is present.
func (l *Layout) ProjectExists(slug string) (bool, error) {
	dir, err := l.ProjectDir(slug)
	if err != nil {
		return false, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, Failure("stat project directory", err)
	}
	return info.IsDir(), nil
}
