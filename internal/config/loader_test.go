package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// setupTestHome points HOME at a temporary directory and creates the
// ergon config directory inside it.
func setupTestHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := os.MkdirAll(filepath.Join(home, ".config", "ergon"), 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	return filepath.Join(home, ".config", "ergon")
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	// WriteFile is subject to umask.
	if err := os.Chmod(path, perm); err != nil {
		t.Fatalf("Failed to chmod test config: %v", err)
	}
	return path
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)

	path := writeConfig(t, dir, `data:
  dir: /srv/ergon
server:
  http_port: 9090
  http_host: 0.0.0.0
  shutdown_timeout: 3s
  enable_mcp: true
github:
  token: ghp_test
  requests_per_second: 2.5
watch:
  debounce: 1s
`, 0600)

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Data.Dir != "/srv/ergon" {
		t.Errorf("Data.Dir = %q, want /srv/ergon", cfg.Data.Dir)
	}
	if cfg.Server.Addr() != "0.0.0.0:9090" {
		t.Errorf("Server.Addr() = %q, want 0.0.0.0:9090", cfg.Server.Addr())
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 3s", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Server.EnableMCP {
		t.Error("Server.EnableMCP = false, want true")
	}
	if cfg.GitHub.Token.Value() != "ghp_test" {
		t.Errorf("GitHub.Token.Value() = %q, want ghp_test", cfg.GitHub.Token.Value())
	}
	if cfg.GitHub.RequestsPerSecond != 2.5 {
		t.Errorf("GitHub.RequestsPerSecond = %v, want 2.5", cfg.GitHub.RequestsPerSecond)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("Watch.Debounce = %v, want 1s", cfg.Watch.Debounce)
	}
	// Untouched sections keep defaults.
	if cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, DefaultLogFormat)
	}
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	dir := setupTestHome(t)

	cfg, err := LoadWithFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Data.Dir != DefaultDataDir {
		t.Errorf("Data.Dir = %q, want %q", cfg.Data.Dir, DefaultDataDir)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("Server.ShutdownTimeout = %v, want %v", cfg.Server.ShutdownTimeout, DefaultShutdownTimeout)
	}
	if cfg.Watch.Debounce != DefaultWatchDebounce {
		t.Errorf("Watch.Debounce = %v, want %v", cfg.Watch.Debounce, DefaultWatchDebounce)
	}
	if cfg.GitHub.Token.IsSet() {
		t.Error("GitHub.Token should be unset")
	}
}

func TestLoad_DefaultLocation(t *testing.T) {
	dir := setupTestHome(t)
	writeConfig(t, dir, "server:\n  http_port: 4000\n", 0600)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
}

func TestLoadWithFile_EnvOverridesFile(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 9090\ndata:\n  dir: from-file\n", 0600)

	t.Setenv("SERVER_HTTP_PORT", "7070")
	t.Setenv("DATA_DIR", "from-env")
	t.Setenv("GITHUB_TOKEN", "env-token")
	t.Setenv("WATCH_DEBOUNCE", "2s")
	t.Setenv("LOGGING_LEVEL", "debug")

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Data.Dir != "from-env" {
		t.Errorf("Data.Dir = %q, want from-env", cfg.Data.Dir)
	}
	if cfg.GitHub.Token.Value() != "env-token" {
		t.Errorf("GitHub.Token = %q, want env-token", cfg.GitHub.Token.Value())
	}
	if cfg.Watch.Debounce != 2*time.Second {
		t.Errorf("Watch.Debounce = %v, want 2s", cfg.Watch.Debounce)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadWithFile_SourcesAllowedDirs(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "sources:\n  allowed_dirs:\n    - /srv/handbook\n    - /srv/specs\n", 0600)

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}
	if got := strings.Join(cfg.Sources.AllowedDirs, ","); got != "/srv/handbook,/srv/specs" {
		t.Errorf("Sources.AllowedDirs = %q, want /srv/handbook,/srv/specs", got)
	}

	t.Setenv("SOURCES_ALLOWED_DIRS", "/a"+string(os.PathListSeparator)+"/b")
	cfg, err = LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}
	if got := strings.Join(cfg.Sources.AllowedDirs, ","); got != "/a,/b" {
		t.Errorf("Sources.AllowedDirs from env = %q, want /a,/b", got)
	}
}

func TestLoadWithFile_NoAllowedDirsByDefault(t *testing.T) {
	dir := setupTestHome(t)

	cfg, err := LoadWithFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}
	if len(cfg.Sources.AllowedDirs) != 0 {
		t.Errorf("Sources.AllowedDirs = %v, want empty", cfg.Sources.AllowedDirs)
	}
}

func TestLoadWithFile_RejectsOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)
	path := writeConfig(t, t.TempDir(), "server:\n  http_port: 9090\n", 0600)

	_, err := LoadWithFile(path)
	if err == nil {
		t.Fatal("LoadWithFile() error = nil, want path validation error")
	}
	if !strings.Contains(err.Error(), "config path validation failed") {
		t.Errorf("error = %v, want path validation failure", err)
	}
}

func TestLoadWithFile_RejectsInsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission checks are skipped on windows")
	}
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 9090\n", 0644)

	_, err := LoadWithFile(path)
	if err == nil {
		t.Fatal("LoadWithFile() error = nil, want permission error")
	}
	if !strings.Contains(err.Error(), "insecure config file permissions") {
		t.Errorf("error = %v, want insecure permissions", err)
	}
}

func TestLoadWithFile_RejectsLargeFile(t *testing.T) {
	dir := setupTestHome(t)
	big := "# " + strings.Repeat("x", maxConfigFileSize) + "\n"
	path := writeConfig(t, dir, big, 0600)

	_, err := LoadWithFile(path)
	if err == nil {
		t.Fatal("LoadWithFile() error = nil, want size error")
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Errorf("error = %v, want too large", err)
	}
}

func TestLoadWithFile_InvalidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server: [unterminated\n", 0600)

	if _, err := LoadWithFile(path); err == nil {
		t.Fatal("LoadWithFile() error = nil, want parse error")
	}
}

func TestLoadWithFile_InvalidValues(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 70000\n", 0600)

	_, err := LoadWithFile(path)
	if err == nil {
		t.Fatal("LoadWithFile() error = nil, want validation error")
	}
	if !strings.Contains(err.Error(), "invalid server port") {
		t.Errorf("error = %v, want invalid server port", err)
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"DATA_DIR", "data.dir"},
		{"SERVER_HTTP_PORT", "server.http_port"},
		{"GITHUB_REQUESTS_PER_SECOND", "github.requests_per_second"},
		{"OBSERVABILITY_ENABLE_TELEMETRY", "observability.enable_telemetry"},
		{"HOME", ""},
		{"PATH", ""},
		{"SERVER_", ""},
		{"XDG_CONFIG_HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := envKey(tt.in); got != tt.want {
				t.Errorf("envKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEnsureConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	info, err := os.Stat(filepath.Join(home, ".config", "ergon"))
	if err != nil {
		t.Fatalf("config dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("config path is not a directory")
	}
}
