package services

import (
	"go.uber.org/zap"

	"github.com/Buooy/ergon-pm/internal/config"
	"github.com/Buooy/ergon-pm/internal/contextfile"
	"github.com/Buooy/ergon-pm/internal/generated"
	"github.com/Buooy/ergon-pm/internal/project"
	"github.com/Buooy/ergon-pm/internal/source"
	"github.com/Buooy/ergon-pm/internal/storage"
)

// Registry provides access to all ergon services.
// Use accessor methods to retrieve individual services.
type Registry interface {
	Layout() *storage.Layout
	Projects() project.Manager
	ContextFiles() *contextfile.Store
	Generated() *generated.Store
	Sources() *source.Registry
}

// Options configures the registry with service instances.
type Options struct {
	Layout       *storage.Layout
	Projects     project.Manager
	ContextFiles *contextfile.Store
	Generated    *generated.Store
	Sources      *source.Registry
}

// registry is the concrete implementation of Registry.
type registry struct {
	layout       *storage.Layout
	projects     project.Manager
	contextFiles *contextfile.Store
	generated    *generated.Store
	sources      *source.Registry
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		layout:       opts.Layout,
		projects:     opts.Projects,
		contextFiles: opts.ContextFiles,
		generated:    opts.Generated,
		sources:      opts.Sources,
	}
}

// Build creates every store over the data directory at dataDir.
func Build(dataDir string, opts source.Options, logger *zap.Logger) (Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	layout, err := storage.NewLayout(dataDir)
	if err != nil {
		return nil, err
	}
	projects, err := project.NewStore(layout, logger.Named("project"))
	if err != nil {
		return nil, err
	}
	files, err := contextfile.NewStore(layout, logger.Named("context"))
	if err != nil {
		return nil, err
	}
	docs, err := generated.NewStore(layout, logger.Named("generated"))
	if err != nil {
		return nil, err
	}

	return NewRegistry(Options{
		Layout:       layout,
		Projects:     projects,
		ContextFiles: files,
		Generated:    docs,
		Sources:      source.NewRegistry(projects, files, opts, logger.Named("source")),
	}), nil
}

// FromConfig builds the registry for the data directory, GitHub defaults
// and allowed import directories in cfg.
func FromConfig(cfg *config.Config, logger *zap.Logger) (Registry, error) {
	return Build(cfg.Data.Dir, source.Options{
		GitHub: source.GitHubOptions{
			Token:             cfg.GitHub.Token.Value(),
			BaseURL:           cfg.GitHub.BaseURL,
			RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
		},
		AllowedDirs: cfg.Sources.AllowedDirs,
	}, logger)
}

func (r *registry) Layout() *storage.Layout          { return r.layout }
func (r *registry) Projects() project.Manager        { return r.projects }
func (r *registry) ContextFiles() *contextfile.Store { return r.contextFiles }
func (r *registry) Generated() *generated.Store      { return r.generated }
func (r *registry) Sources() *source.Registry        { return r.sources }
