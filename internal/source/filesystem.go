package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Buooy/ergon-pm/internal/contextfile"
	"github.com/Buooy/ergon-pm/internal/frontmatter"
	"github.com/Buooy/ergon-pm/internal/ignore"
	"github.com/Buooy/ergon-pm/internal/project"
	"github.com/Buooy/ergon-pm/internal/sanitize"
	"github.com/Buooy/ergon-pm/internal/storage"
)

// DefaultImportDir is where items from an external directory land inside
// the context tree when no target is configured.
const DefaultImportDir = "imported"

// Filesystem serves the "filesystem" source type. With no config it exposes
// the project's own context tree. With a "path" it imports markdown files
// from that external directory, honouring its ignore files.
type Filesystem struct {
	files   ContextStore
	project string
	logger  *zap.Logger

	allowed []string

	external string
	subdir   string
	target   string
	exclude  *ignore.Matcher
}

// NewFilesystem returns an unconnected filesystem adapter for projectSlug.
// External "path" imports must lie inside one of allowedDirs.
func NewFilesystem(files ContextStore, projectSlug string, allowedDirs []string, logger *zap.Logger) *Filesystem {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filesystem{
		files:   files,
		project: projectSlug,
		logger:  logger,
		allowed: allowedDirs,
		target:  DefaultImportDir,
	}
}

func (f *Filesystem) Type() project.SourceType { return project.SourceFilesystem }

func (f *Filesystem) Name() string { return "Local Filesystem" }

// Connect reads "path" (external directory), "dir" (subtree of the own
// context tree) and "target" (import destination).
func (f *Filesystem) Connect(_ context.Context, config map[string]any) error {
	f.subdir = configString(config, "dir")
	if target := configString(config, "target"); target != "" {
		f.target = sanitize.Path(target)
	}

	ext := configString(config, "path")
	if ext == "" {
		return nil
	}

	abs, err := filepath.Abs(ext)
	if err != nil {
		return fmt.Errorf("%w: path %q: %v", storage.ErrInvalidInput, ext, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: path %q is not a directory", storage.ErrInvalidInput, ext)
	}
	if !f.importAllowed(abs) {
		return fmt.Errorf("%w: path %q is outside the allowed import directories", storage.ErrInvalidInput, ext)
	}

	patterns, err := ignore.NewParser(ignore.DefaultIgnoreFiles, ignore.DefaultPatterns).ParseDir(abs)
	if err != nil {
		return fmt.Errorf("reading ignore files in %s: %w", abs, err)
	}
	f.external = abs
	f.exclude = ignore.NewMatcher(patterns)
	return nil
}

// importAllowed reports whether dir, after resolving symlinks, lies inside
// one of the allowed directories.
func (f *Filesystem) importAllowed(dir string) bool {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return false
	}
	for _, root := range f.allowed {
		if strings.TrimSpace(root) == "" {
			continue
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if r, err := filepath.EvalSymlinks(abs); err == nil {
			abs = r
		}
		if sanitize.Within(abs, resolved) == nil {
			return true
		}
	}
	return false
}

// FetchContext lists the markdown items of the configured directory.
func (f *Filesystem) FetchContext(ctx context.Context) ([]Item, error) {
	if f.external == "" {
		return f.fetchOwn(ctx)
	}
	return f.fetchExternal(ctx)
}

// Sync imports the external directory under the target prefix. Without an
// external directory the project's tree is already the source, so nothing
// is written.
func (f *Filesystem) Sync(ctx context.Context) (*SyncResult, error) {
	res := &SyncResult{Written: []string{}}
	if f.external == "" {
		return res, nil
	}

	items, err := f.fetchExternal(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		dest := path.Join(f.target, item.Path)
		saved, err := f.files.Upsert(ctx, f.project, dest, contextfile.Fields{
			Title:   item.Title,
			Type:    metaString(item.Metadata, "type"),
			Tags:    metaStrings(item.Metadata, "tags"),
			Content: item.Content,
		})
		if err != nil {
			return nil, fmt.Errorf("import %s: %w", item.Path, err)
		}
		res.Written = append(res.Written, saved.Path)
	}
	res.Revision = gitRevision(f.external)
	return res, nil
}

func (f *Filesystem) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "External directory to import markdown files from; must be inside sources.allowed_dirs",
			},
			"dir": map[string]any{
				"type":        "string",
				"description": "Subdirectory of the project's context tree to expose",
			},
			"target": map[string]any{
				"type":        "string",
				"description": "Context subdirectory imported files are written to",
				"default":     DefaultImportDir,
			},
		},
	}
}

func (f *Filesystem) fetchOwn(ctx context.Context) ([]Item, error) {
	files, err := f.files.List(ctx, f.project, f.subdir)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(files))
	for _, cf := range files {
		items = append(items, Item{
			Title:   cf.Title,
			Content: cf.Content,
			Path:    cf.Path,
			Metadata: map[string]any{
				"type":      cf.Type,
				"tags":      cf.Tags,
				"createdAt": cf.CreatedAt,
				"updatedAt": cf.UpdatedAt,
			},
		})
	}
	return items, nil
}

func (f *Filesystem) fetchExternal(ctx context.Context) ([]Item, error) {
	items := []Item{}

	err := filepath.WalkDir(f.external, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, err := filepath.Rel(f.external, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if f.exclude.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || !sanitize.HasExtension(d.Name(), storage.MarkdownExt) {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}

		meta, body, err := frontmatter.Decode(string(data))
		if err != nil {
			f.logger.Debug("importing file with malformed header as plain text",
				zap.String("path", rel), zap.Error(err))
			meta, body = map[string]any{}, string(data)
		}

		title := metaString(meta, "title")
		if title == "" {
			title = contextfile.TitleFromPath(rel)
		}
		items = append(items, Item{
			Title:    title,
			Content:  body,
			Metadata: meta,
			Path:     rel,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", f.external, err)
	}
	return items, nil
}
