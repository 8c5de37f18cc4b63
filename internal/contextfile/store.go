package contextfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Buooy/ergon-pm/internal/frontmatter"
	"github.com/Buooy/ergon-pm/internal/sanitize"
	"github.com/Buooy/ergon-pm/internal/storage"
)

// Store reads and writes context files under each project's context root.
type Store struct {
	layout *storage.Layout
	logger *zap.Logger
	inst   *storage.Instrumentation
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a context file store over layout.
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
		inst:   storage.NewInstrumentation("context", logger),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// List walks the context tree of project, starting at subdir ("" for the
// whole tree), and returns every markdown file found. A missing project or
// subtree yields an empty slice. Files that vanish or fail to parse during
// the walk are skipped. Symlinks are not followed.
func (s *Store) List(ctx context.Context, projectSlug, subdir string) (files []*File, err error) {
	ctx, end := s.inst.Start(ctx, "list",
		attribute.String("project.slug", projectSlug),
		attribute.String("context.dir", subdir),
	)
	defer end(&err)

	files = make([]*File, 0)

	root, err := s.layout.ContextDir(projectSlug)
	if err != nil {
		return files, nil
	}
	start, err := s.layout.ContextPath(projectSlug, subdir)
	if err != nil {
		return files, nil
	}

	walkErr := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				if p == start {
					return fs.SkipAll
				}
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !d.Type().IsRegular() || !sanitize.HasExtension(d.Name(), storage.MarkdownExt) {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		f, err := s.read(p, rel)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.logger.Debug("context file vanished during listing", zap.String("path", rel))
				return nil
			}
			s.logger.Warn("skipping unreadable context file",
				zap.String("project", projectSlug),
				zap.String("path", rel),
				zap.Error(err),
			)
			return nil
		}
		files = append(files, f)
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return nil, walkErr
		}
		return nil, storage.Failure("walk context tree", walkErr)
	}

	return files, nil
}

// Get returns the context file at filePath. Any failure to locate, read or
// parse the file is reported as storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, projectSlug, filePath string) (f *File, err error) {
	_, end := s.inst.Start(ctx, "get",
		attribute.String("project.slug", projectSlug),
		attribute.String("context.path", filePath),
	)
	defer end(&err)

	rel := cleanRel(filePath)
	if rel == "" {
		return nil, fmt.Errorf("%w: context file %q", storage.ErrNotFound, filePath)
	}
	full, err := s.layout.ContextPath(projectSlug, rel)
	if err != nil {
		return nil, fmt.Errorf("%w: context file %q", storage.ErrNotFound, filePath)
	}

	f, err = s.read(full, rel)
	if err != nil {
		s.logger.Debug("context file lookup failed",
			zap.String("project", projectSlug),
			zap.String("path", rel),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: context file %q", storage.ErrNotFound, filePath)
	}
	return f, nil
}

// Upsert creates or replaces the context file at filePath. Missing parent
// directories are created. CreatedAt is taken from fields, then from the
// file being replaced, then from the clock; UpdatedAt is always the clock.
// The project must already exist.
func (s *Store) Upsert(ctx context.Context, projectSlug, filePath string, fields Fields) (f *File, err error) {
	_, end := s.inst.Start(ctx, "upsert",
		attribute.String("project.slug", projectSlug),
		attribute.String("context.path", filePath),
	)
	defer end(&err)

	rel := cleanRel(filePath)
	if rel == "" {
		return nil, fmt.Errorf("%w: context file path is required", storage.ErrInvalidInput)
	}
	if !sanitize.HasExtension(rel, storage.MarkdownExt) {
		return nil, fmt.Errorf("%w: context file %q must have extension %s", storage.ErrInvalidInput, filePath, storage.MarkdownExt)
	}

	exists, err := s.layout.ProjectExists(projectSlug)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: project %q", storage.ErrNotFound, projectSlug)
	}

	full, err := s.layout.ContextPath(projectSlug, rel)
	if err != nil {
		return nil, err
	}
	if info, statErr := os.Stat(full); statErr == nil && info.IsDir() {
		return nil, fmt.Errorf("%w: %q is a directory", storage.ErrInvalidInput, rel)
	}

	now := s.now().UTC()
	f = &File{
		Path:      rel,
		Title:     fields.Title,
		Type:      fields.Type,
		Tags:      fields.Tags,
		CreatedAt: now,
		UpdatedAt: now,
		Content:   fields.Content,
	}
	if f.Title == "" {
		f.Title = TitleFromPath(rel)
	}
	if f.Type == "" {
		f.Type = DefaultType
	}
	if f.Tags == nil {
		f.Tags = []string{}
	}
	switch {
	case fields.CreatedAt != nil:
		f.CreatedAt = fields.CreatedAt.UTC()
	default:
		if existing, err := s.read(full, rel); err == nil {
			f.CreatedAt = existing.CreatedAt
		}
	}

	raw, err := frontmatter.Encode(f.Content, header{
		Title:     f.Title,
		Type:      f.Type,
		Tags:      f.Tags,
		CreatedAt: formatTime(f.CreatedAt),
		UpdatedAt: formatTime(f.UpdatedAt),
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(full), storage.DirPerm); err != nil {
		return nil, storage.Failure("create context directory", err)
	}
	if err := storage.WriteFileAtomic(full, []byte(raw), storage.FilePerm); err != nil {
		return nil, storage.Failure("write context file", err)
	}

	s.logger.Debug("context file saved",
		zap.String("project", projectSlug),
		zap.String("path", rel),
	)
	return f, nil
}

// Delete removes the context file at filePath. Removing a file that does
// not exist succeeds.
func (s *Store) Delete(ctx context.Context, projectSlug, filePath string) (err error) {
	_, end := s.inst.Start(ctx, "delete",
		attribute.String("project.slug", projectSlug),
		attribute.String("context.path", filePath),
	)
	defer end(&err)

	rel := cleanRel(filePath)
	if rel == "" {
		return fmt.Errorf("%w: context file path is required", storage.ErrInvalidInput)
	}
	full, err := s.layout.ContextPath(projectSlug, rel)
	if err != nil {
		return err
	}

	info, err := os.Lstat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return storage.Failure("stat context file", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %q is a directory", storage.ErrInvalidInput, rel)
	}

	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storage.Failure("remove context file", err)
	}
	return nil
}

func (s *Store) read(full, rel string) (*File, error) {
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	meta, body, err := frontmatter.Decode(string(data))
	if err != nil {
		return nil, err
	}
	return fromHeader(rel, meta, body, s.now().UTC()), nil
}

// cleanRel sanitizes a caller path into the canonical forward-slash form
// used as a file's identity. It returns "" when nothing usable is left.
func cleanRel(raw string) string {
	rel := sanitize.Path(filepath.ToSlash(raw))
	if rel == "" {
		return ""
	}
	rel = path.Clean(rel)
	if rel == "." || rel == "/" {
		return ""
	}
	return rel
}
