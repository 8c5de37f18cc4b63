package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers see either the old content or the new content
// and never a partial write.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmpPath, err := writeTemp(path, data, perm)
	if err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteFileExclusive is WriteFileAtomic that refuses to replace an existing
// file. When path already exists the returned error matches os.ErrExist.
func WriteFileExclusive(path string, data []byte, perm os.FileMode) error {
	tmpPath, err := writeTemp(path, data, perm)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	// Link fails with EEXIST instead of overwriting.
	if err := os.Link(tmpPath, path); err != nil {
		return fmt.Errorf("failed to link %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeTemp(path string, data []byte, perm os.FileMode) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to chmod %s: %w", filepath.Base(path), err)
	}
	return tmpPath, nil
}
