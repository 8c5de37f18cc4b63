package source

import (
	"context"
	"fmt"

	"github.com/Buooy/ergon-pm/internal/project"
)

// GDrive is a placeholder for the "gdrive" source type. It accepts its
// config so projects can declare the source, but fetching is unsupported.
type GDrive struct {
	project  string
	folderID string
}

// NewGDrive returns a gdrive adapter for projectSlug.
func NewGDrive(projectSlug string) *GDrive {
	return &GDrive{project: projectSlug}
}

func (g *GDrive) Type() project.SourceType { return project.SourceGDrive }

func (g *GDrive) Name() string { return "Google Drive" }

func (g *GDrive) Connect(_ context.Context, config map[string]any) error {
	g.folderID = configString(config, "folderId")
	return nil
}

func (g *GDrive) FetchContext(context.Context) ([]Item, error) {
	return nil, fmt.Errorf("%w: google drive import is not available", ErrUnsupported)
}

func (g *GDrive) Sync(context.Context) (*SyncResult, error) {
	return nil, fmt.Errorf("%w: google drive import is not available", ErrUnsupported)
}

func (g *GDrive) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"folderId": map[string]any{"type": "string", "description": "Drive folder to import"},
		},
	}
}
