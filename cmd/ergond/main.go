// Ergond is the ergon daemon: the JSON HTTP API with an optional MCP
// endpoint, or an MCP server on stdio.
//
// Configuration is loaded from ~/.config/ergon/config.yaml (optional) and
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start the HTTP server with defaults
//	ergond
//
//	# Serve MCP over stdio for an agent
//	ergond mcp
//
//	# Configure via environment
//	SERVER_HTTP_PORT=9090 DATA_DIR=/srv/ergon ergond
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Buooy/ergon-pm/internal/config"
	ergonhttp "github.com/Buooy/ergon-pm/internal/http"
	"github.com/Buooy/ergon-pm/internal/logging"
	"github.com/Buooy/ergon-pm/internal/mcp"
	"github.com/Buooy/ergon-pm/internal/services"
	"github.com/Buooy/ergon-pm/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/ergon/config.yaml)")
	flag.Parse()
	args := flag.Args()

	mode := "serve"
	if len(args) > 0 {
		mode = args[0]
	}

	switch mode {
	case "serve", "mcp":
	case "version":
		printVersion(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", mode)
		fmt.Fprintf(os.Stderr, "\nUsage:\n")
		fmt.Fprintf(os.Stderr, "  ergond [-config file] [serve]   Start the HTTP server\n")
		fmt.Fprintf(os.Stderr, "  ergond [-config file] mcp       Serve MCP over stdio\n")
		fmt.Fprintf(os.Stderr, "  ergond version                  Show version information\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	var err error
	if mode == "mcp" {
		err = runStdio(ctx, *configPath)
	} else {
		err = run(ctx, *configPath)
	}
	if err != nil {
		log.Fatalf("ergond: %v", err)
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "ergond\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}

// daemon holds what both modes build from the configuration.
type daemon struct {
	cfg      *config.Config
	logger   *logging.Logger
	tel      *telemetry.Telemetry
	services services.Registry
}

// setup loads configuration and builds telemetry, the logger and the
// stores. logOut, when set, replaces stdout for log output.
func setup(ctx context.Context, configPath string, logOut io.Writer) (*daemon, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.NewConfig(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}
	logCfg.Output.OTEL = tel.IsEnabled()
	logCfg.Output.Writer = logOut
	if cfg.Observability.ServiceName != "" {
		logCfg.Fields["service"] = cfg.Observability.ServiceName
	}

	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	for _, reason := range tel.Degraded() {
		logger.Warn(ctx, "telemetry degraded", zap.String("reason", reason))
	}

	reg, err := services.FromConfig(cfg, logger.Underlying())
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &daemon{cfg: cfg, logger: logger, tel: tel, services: reg}, nil
}

// Close flushes logs and telemetry.
func (d *daemon) Close() {
	if err := d.tel.Shutdown(context.Background()); err != nil {
		d.logger.Warn(context.Background(), "telemetry shutdown failed", zap.Error(err))
	}
	_ = d.logger.Sync()
}

func (d *daemon) mcpServer() (*mcp.Server, error) {
	return mcp.NewServer(&mcp.Config{
		Name:    "ergon",
		Version: version,
		Logger:  d.logger.Underlying().Named("mcp"),
	}, d.services)
}

// run serves the HTTP API until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	d, err := setup(ctx, configPath, nil)
	if err != nil {
		return err
	}
	defer d.Close()

	cfg := d.cfg
	d.logger.Info(ctx, "starting ergond",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("data_dir", d.services.Layout().Root()),
		zap.Bool("mcp", cfg.Server.EnableMCP),
		zap.Bool("telemetry", d.tel.IsEnabled()))

	httpCfg := &ergonhttp.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Version:         version,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	if cfg.Server.EnableMCP {
		mcpSrv, err := d.mcpServer()
		if err != nil {
			return fmt.Errorf("failed to create MCP server: %w", err)
		}
		httpCfg.MCP = mcpSrv.HTTPHandler()
	}

	srv, err := ergonhttp.NewServer(d.services, d.logger.Underlying().Named("http"), httpCfg)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	if err := srv.Run(ctx); err != nil {
		return err
	}
	d.logger.Info(ctx, "server shutdown complete")
	return nil
}
