package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validation errors for containment checks.
var (
	// ErrPathTraversal indicates a path resolves outside its allowed root.
	ErrPathTraversal = errors.New("path escapes allowed root")

	// ErrEmptyPath indicates an empty root was provided.
	ErrEmptyPath = errors.New("path cannot be empty")
)

// Join sanitizes rel with Path and joins it onto root. The returned path is
// absolute and guaranteed to be root itself or a descendant of it.
func Join(root, rel string) (string, error) {
	if root == "" {
		return "", ErrEmptyPath
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root: %w", err)
	}

	joined := filepath.Join(absRoot, filepath.FromSlash(Path(rel)))
	if err := Within(absRoot, joined); err != nil {
		return "", err
	}
	return joined, nil
}

// Within checks that target is allowedRoot or lies beneath it. Both paths
// are cleaned and made absolute before comparison. Symlinks are not
// resolved.
func Within(allowedRoot, target string) error {
	if allowedRoot == "" || target == "" {
		return ErrEmptyPath
	}

	absRoot, err := filepath.Abs(allowedRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve allowed root: %w", err)
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	rel, err := filepath.Rel(absRoot, absTarget)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPathTraversal, target)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrPathTraversal, target)
	}
	return nil
}
