// Package sanitize cleans caller-supplied names and relative paths before
// they are turned into locations on disk.
//
// Two transformations are provided:
//
//	Slug("My Cool Project!") -> "my-cool-project"
//	Path("../../etc/passwd") -> "etc/passwd"
//
// Neither function returns an error. An empty result means nothing usable
// was left and the caller decides whether that is acceptable.
package sanitize

import (
	"strings"
	"unicode"
)

// Slug derives a URL- and filesystem-safe identifier from a display name.
//
// Rules applied:
//   - Converts ASCII letters to lowercase
//   - Drops everything that is not a letter, digit, underscore, hyphen or whitespace
//   - Turns runs of whitespace, underscores and hyphens into a single hyphen
//   - Trims leading/trailing hyphens
//
// The result only contains [a-z0-9-] and applying Slug to it again is a no-op.
func Slug(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingHyphen := false
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			r += 'a' - 'A'
			fallthrough
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '-' || r == '_' || unicode.IsSpace(r):
			pendingHyphen = true
		}
	}

	return b.String()
}

// Path strips every ".." sequence and all leading path separators from a
// caller-supplied relative path. The result never contains ".." and never
// starts with a separator, but it may be empty.
func Path(raw string) string {
	cleaned := raw
	for strings.Contains(cleaned, "..") {
		cleaned = strings.ReplaceAll(cleaned, "..", "")
	}
	return strings.TrimLeft(cleaned, `/\`)
}

// HasExtension reports whether name ends with one of exts.
func HasExtension(name string, exts ...string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
