package project

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Buooy/ergon-pm/internal/sanitize"
	"github.com/Buooy/ergon-pm/internal/storage"
)

// SourceType names the kind of a ContextSource.
type SourceType string

// Known source types. Only filesystem is attached to new projects.
const (
	SourceFilesystem SourceType = "filesystem"
	SourceGitHub     SourceType = "github"
	SourceGDrive     SourceType = "gdrive"
)

// ContextSource is a declared origin of context material. Config is opaque
// to the store and interpreted by the matching source adapter.
type ContextSource struct {
	ID      string         `json:"id"`
	Type    SourceType     `json:"type"`
	Config  map[string]any `json:"config"`
	Enabled bool           `json:"enabled"`
}

// Project is the descriptor persisted as project.json.
type Project struct {
	// ID is a UUID assigned at creation and never changed.
	ID string `json:"id"`

	// Name is the human-readable project name.
	Name string `json:"name"`

	// Slug is derived from Name at creation and keys the project directory.
	Slug string `json:"slug"`

	Description string `json:"description"`

	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is refreshed by every successful update.
	UpdatedAt time.Time `json:"updatedAt"`

	ContextSources []ContextSource `json:"contextSources"`
}

// Patch carries a partial update. Nil fields are left unchanged. ID and
// Slug are accepted so callers can round-trip a full descriptor, but they
// are always discarded.
type Patch struct {
	ID             *string          `json:"id,omitempty"`
	Slug           *string          `json:"slug,omitempty"`
	Name           *string          `json:"name,omitempty"`
	Description    *string          `json:"description,omitempty"`
	CreatedAt      *time.Time       `json:"createdAt,omitempty"`
	ContextSources *[]ContextSource `json:"contextSources,omitempty"`
}

// NewProject builds the descriptor for a new project named name. The slug
// is derived from name; a name that yields an empty slug is rejected.
func NewProject(name, description string, now time.Time) (*Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: project name is required", storage.ErrInvalidInput)
	}
	slug := sanitize.Slug(name)
	if slug == "" {
		return nil, fmt.Errorf("%w: project name %q yields an empty slug", storage.ErrInvalidInput, name)
	}

	now = now.UTC()
	return &Project{
		ID:          uuid.New().String(),
		Name:        name,
		Slug:        slug,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		ContextSources: []ContextSource{{
			ID:      uuid.New().String(),
			Type:    SourceFilesystem,
			Config:  map[string]any{},
			Enabled: true,
		}},
	}, nil
}

// Validate checks the fields every stored descriptor must have.
func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: project id is empty", storage.ErrInvalidInput)
	}
	if p.Slug == "" {
		return fmt.Errorf("%w: project slug is empty", storage.ErrInvalidInput)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: project name is empty", storage.ErrInvalidInput)
	}
	return nil
}

// Source returns the context source with the given id.
func (p *Project) Source(id string) (*ContextSource, bool) {
	for i := range p.ContextSources {
		if p.ContextSources[i].ID == id {
			return &p.ContextSources[i], true
		}
	}
	return nil, false
}

// apply returns a copy of p with patch merged in. UpdatedAt always moves
// forward, even when the clock has not.
func (p *Project) apply(patch Patch, now time.Time) (*Project, error) {
	next := *p

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, fmt.Errorf("%w: project name cannot be empty", storage.ErrInvalidInput)
		}
		next.Name = *patch.Name
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.CreatedAt != nil {
		next.CreatedAt = patch.CreatedAt.UTC()
	}
	if patch.ContextSources != nil {
		sources := make([]ContextSource, len(*patch.ContextSources))
		for i, src := range *patch.ContextSources {
			if src.ID == "" {
				src.ID = uuid.New().String()
			}
			if src.Config == nil {
				src.Config = map[string]any{}
			}
			sources[i] = src
		}
		next.ContextSources = sources
	}

	next.ID = p.ID
	next.Slug = p.Slug

	now = now.UTC()
	if !now.After(p.UpdatedAt) {
		now = p.UpdatedAt.Add(time.Nanosecond)
	}
	next.UpdatedAt = now

	return &next, nil
}
