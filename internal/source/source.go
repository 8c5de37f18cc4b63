// Package source connects a project's declared context sources to the
// context tree. Each source type has an Adapter that can fetch items from
// its origin and sync them into the project's context files.
package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Buooy/ergon-pm/internal/contextfile"
	"github.com/Buooy/ergon-pm/internal/project"
	"github.com/Buooy/ergon-pm/internal/storage"
)

// ErrUnsupported indicates a source type has no adapter, or the adapter
// cannot perform the requested operation.
var ErrUnsupported = errors.New("source type not supported")

// Item is one piece of context material produced by an adapter.
type Item struct {
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`

	// Path is the item's location relative to the source root, with
	// forward slashes.
	Path string `json:"path"`
}

// SyncResult reports what a sync wrote into the context tree.
type SyncResult struct {
	SourceID string   `json:"sourceId"`
	Type     string   `json:"type"`
	Written  []string `json:"written"`

	// Revision is set when the imported directory is a git checkout.
	Revision *Revision `json:"revision,omitempty"`
}

// Adapter fetches context from one kind of origin.
type Adapter interface {
	// Type is the source type the adapter serves.
	Type() project.SourceType

	// Name is a human-readable adapter name.
	Name() string

	// Connect validates config and prepares the adapter for use.
	Connect(ctx context.Context, config map[string]any) error

	// FetchContext returns the items currently available from the origin.
	FetchContext(ctx context.Context) ([]Item, error)

	// Sync writes the fetched items into the project's context tree.
	Sync(ctx context.Context) (*SyncResult, error)

	// ConfigSchema describes the accepted config as a JSON schema.
	ConfigSchema() map[string]any
}

// ContextStore is the part of the context file store adapters need.
type ContextStore interface {
	List(ctx context.Context, projectSlug, subdir string) ([]*contextfile.File, error)
	Upsert(ctx context.Context, projectSlug, filePath string, fields contextfile.Fields) (*contextfile.File, error)
}

// Factory builds an adapter bound to one project.
type Factory func(projectSlug string) Adapter

// Registry maps source types to adapter factories and opens the sources
// declared on projects.
type Registry struct {
	projects project.Manager
	logger   *zap.Logger

	mu        sync.RWMutex
	factories map[project.SourceType]Factory
}

// Options are process-wide settings for the built-in adapters.
type Options struct {
	GitHub GitHubOptions

	// AllowedDirs are the host directories filesystem sources may import
	// from. Empty means a source can only expose its own context tree.
	AllowedDirs []string
}

// NewRegistry returns a Registry with the filesystem, github and gdrive
// adapters registered.
func NewRegistry(projects project.Manager, files ContextStore, opts Options, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		projects:  projects,
		logger:    logger,
		factories: make(map[project.SourceType]Factory),
	}
	r.Register(project.SourceFilesystem, func(slug string) Adapter {
		return NewFilesystem(files, slug, opts.AllowedDirs, logger)
	})
	r.Register(project.SourceGitHub, func(slug string) Adapter {
		return NewGitHub(files, slug, opts.GitHub, logger)
	})
	r.Register(project.SourceGDrive, func(slug string) Adapter {
		return NewGDrive(slug)
	})
	return r
}

// Register installs or replaces the factory for t.
func (r *Registry) Register(t project.SourceType, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = f
}

// Types returns the registered source types.
func (r *Registry) Types() []project.SourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]project.SourceType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}

// Adapter returns an unconnected adapter of type t bound to projectSlug.
func (r *Registry) Adapter(t project.SourceType, projectSlug string) (Adapter, error) {
	r.mu.RLock()
	f, ok := r.factories[t]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, t)
	}
	return f(projectSlug), nil
}

// Open looks up sourceID on the project and returns its connected adapter.
func (r *Registry) Open(ctx context.Context, projectSlug, sourceID string) (Adapter, error) {
	p, err := r.projects.Get(ctx, projectSlug)
	if err != nil {
		return nil, err
	}
	src, ok := p.Source(sourceID)
	if !ok {
		return nil, fmt.Errorf("%w: source %q on project %q", storage.ErrNotFound, sourceID, projectSlug)
	}
	if !src.Enabled {
		return nil, fmt.Errorf("%w: source %q is disabled", storage.ErrInvalidInput, sourceID)
	}

	a, err := r.Adapter(src.Type, p.Slug)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, src.Config); err != nil {
		return nil, fmt.Errorf("connect %s source: %w", src.Type, err)
	}
	return a, nil
}

// Sync opens sourceID on the project and syncs it.
func (r *Registry) Sync(ctx context.Context, projectSlug, sourceID string) (*SyncResult, error) {
	a, err := r.Open(ctx, projectSlug, sourceID)
	if err != nil {
		return nil, err
	}

	res, err := a.Sync(ctx)
	if err != nil {
		return nil, err
	}
	res.SourceID = sourceID
	res.Type = string(a.Type())

	r.logger.Info("context source synced",
		zap.String("project", projectSlug),
		zap.String("source", sourceID),
		zap.String("type", res.Type),
		zap.Int("written", len(res.Written)),
	)
	return res, nil
}

func configString(config map[string]any, key string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func metaStrings(meta map[string]any, key string) []string {
	out := []string{}
	switch v := meta[key].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
