package storage

import (
	"errors"
	"fmt"
)

// Error kinds shared by every store. Callers classify failures with
// errors.Is; the boundary layers map each kind to a status code.
var (
	// ErrNotFound indicates the addressed project, file or document does not exist
	// or could not be read.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a project with the derived slug already exists.
	ErrConflict = errors.New("already exists")

	// ErrInvalidInput indicates a caller-supplied value is unusable, such as an
	// empty slug or a path without the markdown extension.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorage indicates an underlying filesystem failure.
	ErrStorage = errors.New("storage failure")
)

// Failure wraps an I/O error so it matches ErrStorage while the original
// error stays reachable through errors.Is and errors.As.
func Failure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// Kind returns a short label for the class of err, suitable for metric
// attributes and log fields.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
