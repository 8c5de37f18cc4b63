// Package frontmatter reads and writes markdown documents that carry a YAML
// header between "---" delimiter lines:
//
//	---
//	title: Setup
//	tags:
//	  - onboarding
//	---
//	# Body starts here
//
// A document without a leading delimiter has an empty header and its whole
// text is the body.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// ErrMalformed indicates the header block exists but is not valid YAML, or
// is not a mapping.
var ErrMalformed = errors.New("malformed front matter")

// Encode renders meta as a YAML header followed by body. meta may be a map
// or a struct with yaml tags. A nil meta produces an empty header.
func Encode(body string, meta any) (string, error) {
	var b strings.Builder
	b.WriteString(delimiter)
	b.WriteByte('\n')

	if meta != nil {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(keepFloats(meta)); err != nil {
			return "", fmt.Errorf("encode front matter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("encode front matter: %w", err)
		}
		if header := buf.String(); header != "{}\n" {
			b.WriteString(header)
		}
	}

	b.WriteString(delimiter)
	b.WriteByte('\n')
	b.WriteString(body)
	return b.String(), nil
}

// keepFloats rewrites whole-valued floats inside maps and slices so they are
// written as 1.0 instead of 1 and decode back as float64.
func keepFloats(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = keepFloats(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = keepFloats(e)
		}
		return out
	case float64:
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if strings.ContainsAny(s, ".eEIN") {
			return x
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: s + ".0"}
	}
	return v
}

// Decode splits raw into its header mapping and body. The returned map is
// never nil.
func Decode(raw string) (map[string]any, string, error) {
	meta := map[string]any{}
	body, err := DecodeInto(raw, &meta)
	if err != nil {
		return nil, "", err
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return meta, body, nil
}

// DecodeInto unmarshals the header of raw into out and returns the body.
// When raw has no header, out is left untouched.
func DecodeInto(raw string, out any) (string, error) {
	header, body, ok := split(raw)
	if !ok {
		return raw, nil
	}
	if strings.TrimSpace(header) == "" {
		return body, nil
	}
	if err := yaml.Unmarshal([]byte(header), out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return body, nil
}

// split locates the header block. It reports false when raw does not open
// with a delimiter line or the closing delimiter is missing.
func split(raw string) (header, body string, ok bool) {
	first, rest, found := cutLine(raw)
	if !found || first != delimiter {
		return "", "", false
	}

	offset := 0
	for {
		line, remainder, more := cutLine(rest[offset:])
		if line == delimiter {
			header = rest[:offset]
			if more {
				body = remainder
			}
			return header, body, true
		}
		if !more {
			return "", "", false
		}
		offset = len(rest) - len(remainder)
	}
}

// cutLine returns the first line of s without its terminator, tolerating
// CRLF, and whether a newline was found.
func cutLine(s string) (line, rest string, found bool) {
	line, rest, found = strings.Cut(s, "\n")
	return strings.TrimSuffix(line, "\r"), rest, found
}
