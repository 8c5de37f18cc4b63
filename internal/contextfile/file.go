// Package contextfile stores a project's markdown context tree. Each file
// carries a YAML header with its title, type, tags and timestamps; the
// remainder of the file is the content.
package contextfile

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/Buooy/ergon-pm/internal/storage"
)

// DefaultType is assigned to files whose header has no type.
const DefaultType = "general"

// File is a context file as returned to callers. Content is the body with
// the header removed.
type File struct {
	// Path is relative to the project's context root and uses forward slashes.
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Content   string    `json:"content"`
}

// Fields are the caller-controlled parts of an upsert. Empty Title and
// Type fall back to defaults; a nil CreatedAt keeps the existing value.
type Fields struct {
	Title     string     `json:"title"`
	Type      string     `json:"type"`
	Tags      []string   `json:"tags"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	Content   string     `json:"content"`
}

// header is the YAML block written at the top of every file.
type header struct {
	Title     string   `yaml:"title"`
	Type      string   `yaml:"type"`
	Tags      []string `yaml:"tags"`
	CreatedAt string   `yaml:"createdAt"`
	UpdatedAt string   `yaml:"updatedAt"`
}

// TitleFromPath derives the default title: the file name without its
// markdown extension.
func TitleFromPath(rel string) string {
	return strings.TrimSuffix(path.Base(rel), storage.MarkdownExt)
}

// fromHeader fills a File from decoded header values, applying defaults for
// anything missing. now stands in for absent timestamps.
func fromHeader(rel string, meta map[string]any, body string, now time.Time) *File {
	f := &File{
		Path:      rel,
		Title:     stringValue(meta, "title"),
		Type:      stringValue(meta, "type"),
		Tags:      stringSlice(meta, "tags"),
		CreatedAt: timeValue(meta, "createdAt", now),
		UpdatedAt: timeValue(meta, "updatedAt", now),
		Content:   body,
	}
	if f.Title == "" {
		f.Title = TitleFromPath(rel)
	}
	if f.Type == "" {
		f.Type = DefaultType
	}
	return f
}

func stringValue(meta map[string]any, key string) string {
	switch v := meta[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func stringSlice(meta map[string]any, key string) []string {
	out := []string{}
	switch v := meta[key].(type) {
	case []any:
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
	case []string:
		out = append(out, v...)
	case string:
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func timeValue(meta map[string]any, key string, fallback time.Time) time.Time {
	switch v := meta[key].(type) {
	case time.Time:
		return v.UTC()
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC()
			}
		}
	}
	return fallback
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
