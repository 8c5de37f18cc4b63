// Package main implements the ergon CLI, which operates directly on an
// ergon data directory.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Buooy/ergon-pm/internal/config"
	"github.com/Buooy/ergon-pm/internal/logging"
	"github.com/Buooy/ergon-pm/internal/services"
)

var (
	// dataDir overrides data.dir from the configuration
	dataDir string
	// configPath is the config file (default ~/.config/ergon/config.yaml)
	configPath string
	// outputJSONFlag switches every command to JSON output
	outputJSONFlag bool
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ergon",
	Short: "Manage ergon projects, context files and generated documents",
	Long: `ergon is a command-line interface for an ergon data directory.

It reads and writes project descriptors, markdown context files and
generated documents directly, without a running ergond.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides data.dir from config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/ergon/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&outputJSONFlag, "json", false, "Output results as JSON")
}

// loadConfig loads the configuration and applies the --data-dir override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}
	return cfg, nil
}

// initServices opens the stores of the configured data directory. Store
// warnings are written to stderr.
func initServices(cmd *cobra.Command) (*config.Config, services.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logCfg, err := logging.NewConfig("warn", "console")
	if err != nil {
		return nil, nil, err
	}
	logCfg.Output.Writer = cmd.ErrOrStderr()
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	reg, err := services.FromConfig(cfg, logger.Underlying())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	return cfg, reg, nil
}

// cliLogger returns a console logger writing to the command's stderr.
func cliLogger(cmd *cobra.Command) *zap.Logger {
	logCfg, err := logging.NewConfig("info", "console")
	if err != nil {
		return zap.NewNop()
	}
	logCfg.Output.Writer = cmd.ErrOrStderr()
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return zap.NewNop()
	}
	return logger.Underlying()
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// readBody returns the body given by --file ("-" for stdin) or, when no
// file is named, the inline value.
func readBody(cmd *cobra.Command, file, inline string) (string, error) {
	switch file {
	case "":
		return inline, nil
	case "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read file %s: %w", file, err)
		}
		return string(data), nil
	}
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
