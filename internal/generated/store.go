package generated

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Buooy/ergon-pm/internal/frontmatter"
	"github.com/Buooy/ergon-pm/internal/sanitize"
	"github.com/Buooy/ergon-pm/internal/storage"
)

// maxNameAttempts bounds the suffixes tried when two documents are
// generated in the same millisecond for the same template.
const maxNameAttempts = 100

// Store appends and lists generated documents.
type Store struct {
	layout *storage.Layout
	logger *zap.Logger
	inst   *storage.Instrumentation
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps and file names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a generated document store over layout.
func NewStore(layout *storage.Layout, logger *zap.Logger, opts ...Option) (*Store, error) {
	if layout == nil {
		return nil, errors.New("layout is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		layout: layout,
		logger: logger,
		inst:   storage.NewInstrumentation("generated", logger),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// List returns the project's generated documents, newest first. A project
// without documents, or one that does not exist, yields an empty slice.
func (s *Store) List(ctx context.Context, projectSlug string) (docs []*Document, err error) {
	ctx, end := s.inst.Start(ctx, "list", attribute.String("project.slug", projectSlug))
	defer end(&err)

	docs = make([]*Document, 0)

	slug, err := s.layout.ResolveSlug(projectSlug)
	if err != nil {
		return docs, nil
	}
	dir, err := s.layout.GeneratedDir(slug)
	if err != nil {
		return docs, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return docs, nil
		}
		return nil, storage.Failure("read generated directory", err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() || !sanitize.HasExtension(entry.Name(), storage.MarkdownExt) {
			continue
		}

		doc, err := s.read(slug, dir, entry.Name())
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			s.logger.Warn("skipping unreadable generated document",
				zap.String("project", projectSlug),
				zap.String("filename", entry.Name()),
				zap.Error(err),
			)
			continue
		}
		docs = append(docs, doc)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].GeneratedAt.Equal(docs[j].GeneratedAt) {
			return docs[i].GeneratedAt.After(docs[j].GeneratedAt)
		}
		return docs[i].Filename > docs[j].Filename
	})

	return docs, nil
}

// Get returns the document stored as filename. Any failure to locate, read
// or parse it is reported as storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, projectSlug, filename string) (doc *Document, err error) {
	_, end := s.inst.Start(ctx, "get",
		attribute.String("project.slug", projectSlug),
		attribute.String("generated.filename", filename),
	)
	defer end(&err)

	name := sanitize.Path(filename)
	if name == "" || strings.ContainsAny(name, `/\`) || !sanitize.HasExtension(name, storage.MarkdownExt) {
		return nil, fmt.Errorf("%w: generated document %q", storage.ErrNotFound, filename)
	}
	slug, err := s.layout.ResolveSlug(projectSlug)
	if err != nil {
		return nil, fmt.Errorf("%w: generated document %q", storage.ErrNotFound, filename)
	}
	dir, err := s.layout.GeneratedDir(slug)
	if err != nil {
		return nil, fmt.Errorf("%w: generated document %q", storage.ErrNotFound, filename)
	}

	doc, err = s.read(slug, dir, name)
	if err != nil {
		return nil, fmt.Errorf("%w: generated document %q", storage.ErrNotFound, filename)
	}
	return doc, nil
}

// Append writes a new document for templateID. The file name is derived
// from the current time and the template; an existing document is never
// overwritten. The returned Content is the full stored text. The project
// must already exist.
func (s *Store) Append(ctx context.Context, projectSlug, templateID, content string, contextUsed []string) (doc *Document, err error) {
	_, end := s.inst.Start(ctx, "append",
		attribute.String("project.slug", projectSlug),
		attribute.String("generated.template", templateID),
	)
	defer end(&err)

	templateSlug := sanitize.Slug(templateID)
	if strings.TrimSpace(templateID) == "" || templateSlug == "" {
		return nil, fmt.Errorf("%w: template id %q", storage.ErrInvalidInput, templateID)
	}

	slug, err := s.layout.ResolveSlug(projectSlug)
	if err != nil {
		return nil, err
	}
	exists, err := s.layout.ProjectExists(slug)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: project %q", storage.ErrNotFound, projectSlug)
	}

	dir, err := s.layout.GeneratedDir(slug)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, storage.DirPerm); err != nil {
		return nil, storage.Failure("create generated directory", err)
	}

	if contextUsed == nil {
		contextUsed = []string{}
	}
	now := s.now().UTC()

	raw, err := frontmatter.Encode(content, header{
		TemplateID:  templateID,
		GeneratedAt: now.Format(time.RFC3339Nano),
		ContextUsed: contextUsed,
	})
	if err != nil {
		return nil, err
	}

	base := Filename(now, templateSlug)
	for attempt := 1; attempt <= maxNameAttempts; attempt++ {
		name := base
		if attempt > 1 {
			name = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(base, storage.MarkdownExt), attempt, storage.MarkdownExt)
		}

		err := storage.WriteFileExclusive(filepath.Join(dir, name), []byte(raw), storage.FilePerm)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, storage.Failure("write generated document", err)
		}

		s.logger.Info("generated document saved",
			zap.String("project", slug),
			zap.String("filename", name),
			zap.String("template", templateID),
		)
		return &Document{
			ID:          DocumentID(slug, name),
			ProjectSlug: slug,
			TemplateID:  templateID,
			Filename:    name,
			Content:     raw,
			GeneratedAt: now,
			ContextUsed: contextUsed,
		}, nil
	}

	return nil, storage.Failure("write generated document",
		fmt.Errorf("no free file name for %s after %d attempts", base, maxNameAttempts))
}

// read parses one document. projectSlug must already be resolved.
func (s *Store) read(projectSlug, dir, name string) (*Document, error) {
	full := filepath.Join(dir, name)
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}

	meta, _, err := frontmatter.Decode(string(data))
	if err != nil {
		return nil, err
	}

	doc := &Document{
		ID:          DocumentID(projectSlug, name),
		ProjectSlug: projectSlug,
		TemplateID:  UnknownTemplate,
		Filename:    name,
		Content:     string(data),
		ContextUsed: []string{},
	}
	if v, ok := meta["templateId"].(string); ok && v != "" {
		doc.TemplateID = v
	}
	if items, ok := meta["contextUsed"].([]any); ok {
		for _, item := range items {
			if str, ok := item.(string); ok {
				doc.ContextUsed = append(doc.ContextUsed, str)
			}
		}
	}

	switch v := meta["generatedAt"].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			doc.GeneratedAt = t.UTC()
		}
	case time.Time:
		doc.GeneratedAt = v.UTC()
	}
	if doc.GeneratedAt.IsZero() {
		info, err := os.Stat(full)
		if err != nil {
			return nil, err
		}
		doc.GeneratedAt = info.ModTime().UTC()
	}

	return doc, nil
}
