package mcp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/Buooy/ergon-pm/internal/services"
)

// Server is an MCP server backed by the ergon stores.
type Server struct {
	mcp      *mcp.Server
	services services.Registry
	metrics  *Metrics
	logger   *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "ergon")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "ergon",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server with every tool registered.
func NewServer(cfg *Config, reg services.Registry) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if reg == nil {
		return nil, fmt.Errorf("services registry is required")
	}
	if cfg.Name == "" {
		cfg.Name = "ergon"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Server{
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    cfg.Name,
				Version: cfg.Version,
			},
			nil,
		),
		services: reg,
		metrics:  NewMetrics(cfg.Logger),
		logger:   cfg.Logger,
	}
	s.registerTools()

	return s, nil
}

// Run serves MCP on the stdio transport until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect starts a session over an arbitrary transport.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}

// HTTPHandler returns a streamable HTTP handler serving this server.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)
}
