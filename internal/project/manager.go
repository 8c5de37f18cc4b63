package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Buooy/ergon-pm/internal/storage"
)

// Manager provides CRUD operations for projects.
type Manager interface {
	// List returns every project whose descriptor can be read.
	List(ctx context.Context) ([]*Project, error)

	// Get retrieves a project by slug.
	Get(ctx context.Context, slug string) (*Project, error)

	// Create creates a new project, deriving its slug from name.
	Create(ctx context.Context, name, description string) (*Project, error)

	// Update merges patch into the stored project.
	Update(ctx context.Context, slug string, patch Patch) (*Project, error)

	// Delete removes a project and all of its files.
	Delete(ctx context.Context, slug string) error
}

// Store implements Manager on top of a storage.Layout.
type Store struct {
	layout *storage.Layout
	logger *zap.Logger
	inst   *storage.Instrumentation
	now    func() time.Time

	// mu serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

var _ Manager = (*Store)(nil)

// errCorrupt marks a descriptor that exists but cannot be parsed or fails
// validation.
var errCorrupt = errors.New("corrupt descriptor")

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a project store over layout.
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
		inst:   storage.NewInstrumentation("project", logger),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// List returns all projects. Directories without a readable descriptor are
// skipped and logged, never reported as errors. Order is unspecified.
func (s *Store) List(ctx context.Context) (projects []*Project, err error) {
	ctx, end := s.inst.Start(ctx, "list")
	defer end(&err)

	if err := s.layout.EnsureProjectsDir(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.layout.ProjectsDir())
	if err != nil {
		return nil, storage.Failure("read projects directory", err)
	}

	projects = make([]*Project, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}

		p, err := s.read(entry.Name())
		if err != nil {
			s.logger.Warn("skipping unreadable project",
				zap.String("dir", entry.Name()),
				zap.Error(err),
			)
			continue
		}
		projects = append(projects, p)
	}

	return projects, nil
}

// Get returns the project stored under slug. A missing, unreadable or
// corrupt descriptor is reported as storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, slug string) (p *Project, err error) {
	_, end := s.inst.Start(ctx, "get", attribute.String("project.slug", slug))
	defer end(&err)

	p, err = s.read(slug)
	if err != nil {
		s.logger.Debug("project lookup failed", zap.String("slug", slug), zap.Error(err))
		return nil, fmt.Errorf("%w: project %q", storage.ErrNotFound, slug)
	}
	return p, nil
}

// Create claims the slug derived from name and writes the initial
// descriptor. Two concurrent creates for the same slug cannot both succeed:
// the project directory is created non-recursively and the loser gets
// storage.ErrConflict.
func (s *Store) Create(ctx context.Context, name, description string) (p *Project, err error) {
	_, end := s.inst.Start(ctx, "create", attribute.String("project.name", name))
	defer end(&err)

	p, err = NewProject(name, description, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.layout.EnsureProjectsDir(); err != nil {
		return nil, err
	}
	dir, err := s.layout.ProjectDir(p.Slug)
	if err != nil {
		return nil, err
	}

	if err := os.Mkdir(dir, storage.DirPerm); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: project with slug %q", storage.ErrConflict, p.Slug)
		}
		return nil, storage.Failure("create project directory", err)
	}

	if err := s.populate(dir, p); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			s.logger.Error("failed to clean up partial project",
				zap.String("slug", p.Slug),
				zap.Error(rmErr),
			)
		}
		return nil, err
	}

	s.logger.Info("project created",
		zap.String("slug", p.Slug),
		zap.String("id", p.ID),
	)
	return p, nil
}

// Update merges patch into the project stored under slug. ID and Slug are
// never changed and UpdatedAt is refreshed.
func (s *Store) Update(ctx context.Context, slug string, patch Patch) (p *Project, err error) {
	_, end := s.inst.Start(ctx, "update", attribute.String("project.slug", slug))
	defer end(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read(slug)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidInput) && !errors.Is(err, errCorrupt):
			return nil, err
		case errors.Is(err, fs.ErrNotExist), errors.Is(err, errCorrupt):
			return nil, fmt.Errorf("%w: project %q", storage.ErrNotFound, slug)
		default:
			return nil, storage.Failure("read descriptor", err)
		}
	}

	p, err = existing.apply(patch, s.now())
	if err != nil {
		return nil, err
	}

	path, err := s.layout.DescriptorPath(slug)
	if err != nil {
		return nil, err
	}
	if err := writeDescriptor(path, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the project directory and everything beneath it. Deleting
// a project that does not exist succeeds.
func (s *Store) Delete(ctx context.Context, slug string) (err error) {
	_, end := s.inst.Start(ctx, "delete", attribute.String("project.slug", slug))
	defer end(&err)

	dir, err := s.layout.ProjectDir(slug)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return storage.Failure("remove project directory", err)
	}

	s.logger.Info("project deleted", zap.String("slug", slug))
	return nil
}

func (s *Store) populate(dir string, p *Project) error {
	for _, sub := range []string{storage.ContextDirName, storage.GeneratedDirName} {
		if err := os.MkdirAll(filepath.Join(dir, sub), storage.DirPerm); err != nil {
			return storage.Failure("create project subdirectory", err)
		}
	}
	return writeDescriptor(filepath.Join(dir, storage.DescriptorName), p)
}

func (s *Store) read(slug string) (*Project, error) {
	path, err := s.layout.DescriptorPath(slug)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w %s: %v", errCorrupt, path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w %s: %w", errCorrupt, path, err)
	}
	if p.ContextSources == nil {
		p.ContextSources = []ContextSource{}
	}
	return &p, nil
}

func writeDescriptor(path string, p *Project) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}
	if err := storage.WriteFileAtomic(path, data, storage.FilePerm); err != nil {
		return storage.Failure("write descriptor", err)
	}
	return nil
}
