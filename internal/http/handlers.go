package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Buooy/ergon-pm/internal/contextfile"
	"github.com/Buooy/ergon-pm/internal/project"
	"github.com/Buooy/ergon-pm/internal/storage"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// SuccessResponse acknowledges a delete.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// SourceTypeInfo describes one registered context source type.
type SourceTypeInfo struct {
	Type   project.SourceType `json:"type"`
	Name   string             `json:"name"`
	Schema map[string]any     `json:"configSchema"`
}

type createProjectRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type upsertContextRequest struct {
	Path      string     `json:"path" validate:"required"`
	Title     string     `json:"title"`
	Type      string     `json:"type"`
	Tags      []string   `json:"tags"`
	CreatedAt *time.Time `json:"createdAt"`
	Content   string     `json:"content"`
}

type appendGeneratedRequest struct {
	TemplateID  string   `json:"templateId" validate:"required"`
	Content     string   `json:"content"`
	ContextUsed []string `json:"contextUsed"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.config.Version})
}

func (s *Server) handleSourceTypes(c echo.Context) error {
	reg := s.services.Sources()
	types := reg.Types()
	out := make([]SourceTypeInfo, 0, len(types))
	for _, t := range types {
		a, err := reg.Adapter(t, "")
		if err != nil {
			return err
		}
		out = append(out, SourceTypeInfo{Type: t, Name: a.Name(), Schema: a.ConfigSchema()})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleListProjects(c echo.Context) error {
	projects, err := s.services.Projects().List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, projects)
}

func (s *Server) handleCreateProject(c echo.Context) error {
	var req createProjectRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := s.services.Projects().Create(c.Request().Context(), req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleGetProject(c echo.Context) error {
	p, err := s.services.Projects().Get(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleUpdateProject(c echo.Context) error {
	var patch project.Patch
	if err := bind(c, &patch); err != nil {
		return err
	}
	p, err := s.services.Projects().Update(c.Request().Context(), c.Param("slug"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeleteProject(c echo.Context) error {
	if err := s.services.Projects().Delete(c.Request().Context(), c.Param("slug")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) handleListContext(c echo.Context) error {
	files, err := s.services.ContextFiles().List(c.Request().Context(), c.Param("slug"), c.QueryParam("dir"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, files)
}

func (s *Server) handleGetContext(c echo.Context) error {
	p, err := requiredQuery(c, "path")
	if err != nil {
		return err
	}
	f, err := s.services.ContextFiles().Get(c.Request().Context(), c.Param("slug"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (s *Server) handleUpsertContext(c echo.Context) error {
	var req upsertContextRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	f, err := s.services.ContextFiles().Upsert(c.Request().Context(), c.Param("slug"), req.Path, contextfile.Fields{
		Title:     req.Title,
		Type:      req.Type,
		Tags:      req.Tags,
		CreatedAt: req.CreatedAt,
		Content:   req.Content,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, f)
}

func (s *Server) handleDeleteContext(c echo.Context) error {
	p, err := requiredQuery(c, "path")
	if err != nil {
		return err
	}
	if err := s.services.ContextFiles().Delete(c.Request().Context(), c.Param("slug"), p); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) handleListGenerated(c echo.Context) error {
	docs, err := s.services.Generated().List(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, docs)
}

func (s *Server) handleGetGenerated(c echo.Context) error {
	doc, err := s.services.Generated().Get(c.Request().Context(), c.Param("slug"), c.Param("filename"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleAppendGenerated(c echo.Context) error {
	var req appendGeneratedRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	doc, err := s.services.Generated().Append(c.Request().Context(), c.Param("slug"), req.TemplateID, req.Content, req.ContextUsed)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, doc)
}

func (s *Server) handleSyncSource(c echo.Context) error {
	res, err := s.services.Sources().Sync(c.Request().Context(), c.Param("slug"), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func requiredQuery(c echo.Context, name string) (string, error) {
	v := c.QueryParam(name)
	if v == "" {
		return "", fmt.Errorf("%w: query parameter %q is required", storage.ErrInvalidInput, name)
	}
	return v, nil
}
