// Package generated stores documents produced from a template and a
// project's context, such as PRDs. Documents are append-only: each one is
// written once under a timestamped file name and never modified.
package generated

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UnknownTemplate is reported for documents whose header names no template.
const UnknownTemplate = "unknown"

// idNamespace scopes document ids derived from project slug and file name.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/Buooy/ergon-pm/generated"))

// Document is a generated document. Content is the full file text,
// including the header, so it can be saved or re-imported as-is.
type Document struct {
	// ID is stable for a given project and file name.
	ID          string    `json:"id"`
	ProjectSlug string    `json:"projectSlug"`
	TemplateID  string    `json:"templateId"`
	Filename    string    `json:"filename"`
	Content     string    `json:"content"`
	GeneratedAt time.Time `json:"generatedAt"`
	ContextUsed []string  `json:"contextUsed"`
}

type header struct {
	TemplateID  string   `yaml:"templateId"`
	GeneratedAt string   `yaml:"generatedAt"`
	ContextUsed []string `yaml:"contextUsed"`
}

// DocumentID returns the id of the document stored as filename in project.
func DocumentID(projectSlug, filename string) string {
	return uuid.NewSHA1(idNamespace, []byte(projectSlug+"/"+filename)).String()
}

// Filename builds the base file name for a document generated at t from
// template templateSlug: the UTC timestamp with ':' and '.' replaced by
// '-', then the template slug, e.g. 2024-01-02T03-04-05-678Z-prd.md.
func Filename(t time.Time, templateSlug string) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return stamp + "-" + templateSlug + ".md"
}
