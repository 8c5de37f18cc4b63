package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// sections are the top-level keys environment variables may address.
var sections = map[string]bool{
	"data":          true,
	"server":        true,
	"logging":       true,
	"observability": true,
	"github":        true,
	"sources":       true,
	"watch":         true,
}

// Load loads configuration from the default file location and the
// environment. A missing file is not an error.
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads configuration from YAML file, then overrides with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DATA_DIR, SERVER_HTTP_PORT, GITHUB_TOKEN, etc.)
//  2. YAML config file (~/.config/ergon/config.yaml)
//  3. Hardcoded defaults
//
// # Security Considerations
//
// File Permissions: Configuration file MUST have 0600 or 0400 permissions,
// since it may carry a GitHub token.
//
// Path Validation: Only configuration files in ~/.config/ergon/ or
// /etc/ergon/ can be loaded.
//
// File Size Limit: Configuration files larger than 1MB are rejected.
//
// # Environment Variable Mapping
//
// The first underscore separates the section from the field name:
//
//	DATA_DIR -> data.dir
//	SERVER_HTTP_PORT -> server.http_port
//	GITHUB_REQUESTS_PER_SECOND -> github.requests_per_second
//	SOURCES_ALLOWED_DIRS -> sources.allowed_dirs (split like PATH)
//
// Variables whose first segment is not a known section are ignored.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Validate through the opened descriptor to avoid a TOCTOU race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps SECTION_FIELD_NAME to section.field_name. Unknown sections
// map to "" so the variable is skipped.
func envKey(s string) string {
	lower := strings.ToLower(s)
	section, field, ok := strings.Cut(lower, "_")
	if !ok || field == "" || !sections[section] {
		return ""
	}
	return section + "." + field
}

// envValue maps the key with envKey and splits list-valued settings on the
// OS path list separator.
func envValue(key, value string) (string, any) {
	k := envKey(key)
	if k == "sources.allowed_dirs" {
		return k, filepath.SplitList(value)
	}
	return k, value
}

// DefaultConfigDir returns ~/.config/ergon.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "ergon"), nil
}

// EnsureConfigDir creates the ergon config directory with 0700 permissions
// if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := DefaultConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}

// validateConfigPath checks if path is in allowed directories.
// This validation runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Symlinks must not lead out of the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	userDir, err := DefaultConfigDir()
	if err != nil {
		return err
	}

	for _, dir := range []string{userDir, "/etc/ergon"} {
		if resolvedPath == dir || strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/ergon/ or /etc/ergon/")
}

// validateConfigFileProperties checks file permissions and size.
// Takes FileInfo from an already-opened file descriptor.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
