package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/Buooy/ergon-pm/internal/contextfile"
	"github.com/Buooy/ergon-pm/internal/logging"
	"github.com/Buooy/ergon-pm/internal/project"
	"github.com/Buooy/ergon-pm/internal/source"
	"github.com/Buooy/ergon-pm/internal/storage"
)

// ===== Input types =====

type projectListInput struct{}

type projectInput struct {
	Slug string `json:"slug" jsonschema:"Project slug"`
}

type projectCreateInput struct {
	Name        string `json:"name" jsonschema:"Project name; the slug is derived from it"`
	Description string `json:"description,omitempty" jsonschema:"Optional project description"`
}

type projectUpdateInput struct {
	Slug           string                  `json:"slug" jsonschema:"Project slug"`
	Name           *string                 `json:"name,omitempty" jsonschema:"New display name; the slug does not change"`
	Description    *string                 `json:"description,omitempty" jsonschema:"New description"`
	ContextSources []project.ContextSource `json:"context_sources,omitempty" jsonschema:"Replacement list of context sources"`
}

type contextListInput struct {
	Slug string `json:"slug" jsonschema:"Project slug"`
	Dir  string `json:"dir,omitempty" jsonschema:"Subdirectory of the context tree to list"`
}

type contextFileInput struct {
	Slug string `json:"slug" jsonschema:"Project slug"`
	Path string `json:"path" jsonschema:"File path relative to the context root, e.g. research/notes.md"`
}

type contextUpsertInput struct {
	Slug      string   `json:"slug" jsonschema:"Project slug"`
	Path      string   `json:"path" jsonschema:"File path relative to the context root; must end in .md"`
	Title     string   `json:"title,omitempty" jsonschema:"Title; defaults to the file name"`
	Type      string   `json:"type,omitempty" jsonschema:"Context type; defaults to general"`
	Tags      []string `json:"tags,omitempty" jsonschema:"Tags"`
	CreatedAt string   `json:"created_at,omitempty" jsonschema:"Creation time in RFC 3339 format"`
	Content   string   `json:"content,omitempty" jsonschema:"Markdown body"`
}

type generatedGetInput struct {
	Slug     string `json:"slug" jsonschema:"Project slug"`
	Filename string `json:"filename" jsonschema:"Generated document file name"`
}

type generatedAppendInput struct {
	Slug        string   `json:"slug" jsonschema:"Project slug"`
	TemplateID  string   `json:"template_id" jsonschema:"Template the document was produced from, e.g. prd"`
	Content     string   `json:"content,omitempty" jsonschema:"Document body"`
	ContextUsed []string `json:"context_used,omitempty" jsonschema:"Context file paths that fed the document"`
}

type sourceSyncInput struct {
	Slug     string `json:"slug" jsonschema:"Project slug"`
	SourceID string `json:"source_id" jsonschema:"ID of the context source to sync"`
}

type successOutput struct {
	Success bool `json:"success"`
}

// registerTools registers every tool with the MCP server.
func (s *Server) registerTools() {
	// ===== PROJECTS =====

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "project_list",
		Description: "List all projects, most recently updated first",
	}, handle(s, "project_list", func(ctx context.Context, _ projectListInput) (any, error) {
		projects, err := s.services.Projects().List(ctx)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(projects, func(i, j int) bool {
			if !projects[i].UpdatedAt.Equal(projects[j].UpdatedAt) {
				return projects[i].UpdatedAt.After(projects[j].UpdatedAt)
			}
			return projects[i].Slug < projects[j].Slug
		})
		return projects, nil
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "project_get",
		Description: "Get a project descriptor by slug",
	}, handle(s, "project_get", func(ctx context.Context, in projectInput) (any, error) {
		return s.services.Projects().Get(ctx, in.Slug)
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "project_create",
		Description: "Create a project with a filesystem context source",
	}, handle(s, "project_create", func(ctx context.Context, in projectCreateInput) (any, error) {
		return s.services.Projects().Create(ctx, in.Name, in.Description)
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "project_update",
		Description: "Update a project's name, description or context sources",
	}, handle(s, "project_update", func(ctx context.Context, in projectUpdateInput) (any, error) {
		patch := project.Patch{Name: in.Name, Description: in.Description}
		if in.ContextSources != nil {
			patch.ContextSources = &in.ContextSources
		}
		return s.services.Projects().Update(ctx, in.Slug, patch)
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "project_delete",
		Description: "Permanently delete a project with its context and generated documents",
	}, handle(s, "project_delete", func(ctx context.Context, in projectInput) (any, error) {
		if err := s.services.Projects().Delete(ctx, in.Slug); err != nil {
			return nil, err
		}
		return successOutput{Success: true}, nil
	}))

	// ===== CONTEXT =====

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "context_list",
		Description: "List the markdown context files of a project, optionally below a subdirectory",
	}, handle(s, "context_list", func(ctx context.Context, in contextListInput) (any, error) {
		return s.services.ContextFiles().List(ctx, in.Slug, in.Dir)
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "context_get",
		Description: "Read one context file",
	}, handle(s, "context_get", func(ctx context.Context, in contextFileInput) (any, error) {
		return s.services.ContextFiles().Get(ctx, in.Slug, in.Path)
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "context_upsert",
		Description: "Create or replace a context file",
	}, handle(s, "context_upsert", func(ctx context.Context, in contextUpsertInput) (any, error) {
		fields := contextfile.Fields{
			Title:   in.Title,
			Type:    in.Type,
			Tags:    in.Tags,
			Content: in.Content,
		}
		if in.CreatedAt != "" {
			t, err := time.Parse(time.RFC3339, in.CreatedAt)
			if err != nil {
				return nil, fmt.Errorf("%w: created_at must be RFC 3339", storage.ErrInvalidInput)
			}
			fields.CreatedAt = &t
		}
		return s.services.ContextFiles().Upsert(ctx, in.Slug, in.Path, fields)
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "context_delete",
		Description: "Delete a context file",
	}, handle(s, "context_delete", func(ctx context.Context, in contextFileInput) (any, error) {
		if err := s.services.ContextFiles().Delete(ctx, in.Slug, in.Path); err != nil {
			return nil, err
		}
		return successOutput{Success: true}, nil
	}))

	// ===== GENERATED =====

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "generated_list",
		Description: "List generated documents of a project, newest first",
	}, handle(s, "generated_list", func(ctx context.Context, in projectInput) (any, error) {
		return s.services.Generated().List(ctx, in.Slug)
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "generated_get",
		Description: "Read one generated document by file name",
	}, handle(s, "generated_get", func(ctx context.Context, in generatedGetInput) (any, error) {
		return s.services.Generated().Get(ctx, in.Slug, in.Filename)
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "generated_append",
		Description: "Store a newly generated document; existing documents are never overwritten",
	}, handle(s, "generated_append", func(ctx context.Context, in generatedAppendInput) (any, error) {
		return s.services.Generated().Append(ctx, in.Slug, in.TemplateID, in.Content, in.ContextUsed)
	}))

	// ===== SOURCES =====

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "source_sync",
		Description: "Import a project's context source into its context tree",
	}, handle(s, "source_sync", func(ctx context.Context, in sourceSyncInput) (any, error) {
		return s.services.Sources().Sync(ctx, in.Slug, in.SourceID)
	}))
}

// handle wraps a store call with metrics, logging and result encoding.
func handle[In any](s *Server, name string, fn func(context.Context, In) (any, error)) mcp.ToolHandlerFor[In, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		done := s.metrics.Track(ctx, name)
		out, err := fn(ctx, in)
		done(err)

		if err != nil {
			fields := append(logging.ContextFields(ctx), zap.String("tool", name), zap.Error(err))
			if isInternal(err) {
				s.logger.Error("tool failed", fields...)
			} else {
				s.logger.Debug("tool rejected", fields...)
			}
			return toolError(err), nil, nil
		}
		return toolJSON(out)
	}
}

func isInternal(err error) bool {
	return storage.Kind(err) == "error" && !errors.Is(err, source.ErrUnsupported)
}

// toolError reports err to the client. Storage failures are not detailed.
func toolError(err error) *mcp.CallToolResult {
	msg := err.Error()
	if isInternal(err) {
		msg = "internal error"
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(fmt.Errorf("marshal result: %w", err)), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
