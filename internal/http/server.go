// Package http provides the JSON HTTP API for ergon.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Buooy/ergon-pm/internal/logging"
	"github.com/Buooy/ergon-pm/internal/services"
)

// Server provides HTTP endpoints for ergon.
type Server struct {
	echo     *echo.Echo
	services services.Registry
	logger   *zap.Logger
	config   *Config
	metrics  *prometheus.Registry
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string

	// ShutdownTimeout bounds the graceful shutdown in Run.
	ShutdownTimeout time.Duration

	// MCP, when set, is mounted at /mcp.
	MCP http.Handler
}

// NewServer creates a new HTTP server over the given services.
func NewServer(reg services.Registry, logger *zap.Logger, cfg *Config) (*Server, error) {
	if reg == nil {
		return nil, fmt.Errorf("services registry cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 3000}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()

	s := &Server{
		echo:     e,
		services: reg,
		logger:   logger,
		config:   cfg,
		metrics:  newPromRegistry(reg),
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(s.requestLogger)

	s.registerRoutes()
	return s, nil
}

// requestLogger tags the request context with correlation fields and logs
// each request after it completes.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()

		ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
		if slug := c.Param("slug"); slug != "" {
			ctx = logging.WithProject(ctx, slug)
		}
		c.SetRequest(req.WithContext(ctx))

		err := next(c)
		if err != nil {
			// Run the error handler now so the logged status is the final one.
			c.Error(err)
		}

		s.logger.Info("http request", append(logging.ContextFields(ctx),
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)...)
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{})))

	api := s.echo.Group("/api")
	api.GET("/sources", s.handleSourceTypes)

	projects := api.Group("/projects")
	projects.GET("", s.handleListProjects)
	projects.POST("", s.handleCreateProject)
	projects.GET("/:slug", s.handleGetProject)
	projects.PATCH("/:slug", s.handleUpdateProject)
	projects.DELETE("/:slug", s.handleDeleteProject)

	projects.GET("/:slug/context", s.handleListContext)
	projects.POST("/:slug/context", s.handleUpsertContext)
	projects.DELETE("/:slug/context", s.handleDeleteContext)
	projects.GET("/:slug/context/file", s.handleGetContext)

	projects.GET("/:slug/generated", s.handleListGenerated)
	projects.POST("/:slug/generated", s.handleAppendGenerated)
	projects.GET("/:slug/generated/:filename", s.handleGetGenerated)

	projects.POST("/:slug/sources/:id/sync", s.handleSyncSource)

	if s.config.MCP != nil {
		h := echo.WrapHandler(s.config.MCP)
		s.echo.Any("/mcp", h)
		s.echo.Any("/mcp/*", h)
	}
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It blocks until the server stops and
// returns http.ErrServerClosed after a clean Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully within the configured timeout. It returns nil after a clean
// shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
