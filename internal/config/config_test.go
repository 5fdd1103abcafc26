package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGatewayConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg GatewayConfig
	cfg.SetDefaults()

	if cfg.RefreshInterval != "600s" {
		t.Errorf("RefreshInterval = %q, want %q", cfg.RefreshInterval, "600s")
	}
	if cfg.CacheTTL != "3600s" {
		t.Errorf("CacheTTL = %q, want %q", cfg.CacheTTL, "3600s")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.StateBackend != "sqlite" {
		t.Errorf("StateBackend = %q, want %q", cfg.StateBackend, "sqlite")
	}
	if cfg.SQLitePath != "toolgate.db" {
		t.Errorf("SQLitePath = %q, want %q", cfg.SQLitePath, "toolgate.db")
	}
}

func TestGatewayConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := GatewayConfig{
		RefreshInterval: "10m",
		CacheTTL:        "1h",
		LogLevel:        "debug",
		StateBackend:    "memory",
		SQLitePath:      "/var/lib/toolgate/custom.db",
	}

	cfg.SetDefaults()

	if cfg.RefreshInterval != "10m" {
		t.Errorf("RefreshInterval was overwritten: got %q, want %q", cfg.RefreshInterval, "10m")
	}
	if cfg.CacheTTL != "1h" {
		t.Errorf("CacheTTL was overwritten: got %q, want %q", cfg.CacheTTL, "1h")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel was overwritten: got %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.StateBackend != "memory" {
		t.Errorf("StateBackend was overwritten: got %q, want %q", cfg.StateBackend, "memory")
	}
	if cfg.SQLitePath != "/var/lib/toolgate/custom.db" {
		t.Errorf("SQLitePath was overwritten: got %q, want %q", cfg.SQLitePath, "/var/lib/toolgate/custom.db")
	}
}

func TestGatewayConfig_SetDefaults_FillsMissingServerType(t *testing.T) {
	t.Parallel()

	cfg := GatewayConfig{
		Servers: map[string]ServerConfig{
			"weather":  {URL: "https://weather.example.com/mcp"},
			"streamer": {URL: "https://streamer.example.com/mcp", Type: "streamable"},
		},
	}
	cfg.SetDefaults()

	if cfg.Servers["weather"].Type != "plain" {
		t.Errorf("weather.Type = %q, want %q", cfg.Servers["weather"].Type, "plain")
	}
	if cfg.Servers["streamer"].Type != "streamable" {
		t.Errorf("streamer.Type was overwritten: got %q, want %q", cfg.Servers["streamer"].Type, "streamable")
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "toolgate.yaml")
	_ = os.WriteFile(cfgPath, []byte("mcpServers:\n  weather:\n    url: https://weather.example.com/mcp\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "toolgate.yml")
	_ = os.WriteFile(cfgPath, []byte("mcpServers:\n  weather:\n    url: https://weather.example.com/mcp\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// Simulate the binary: a file named "toolgate" with no extension.
	_ = os.WriteFile(filepath.Join(dir, "toolgate"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "toolgate.yaml")
	ymlPath := filepath.Join(dir, "toolgate.yml")
	_ = os.WriteFile(yamlPath, []byte("log_level: info\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("log_level: debug\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}

func TestSubstituteEnvHeaders(t *testing.T) {
	t.Setenv("TOOLGATE_TEST_TOKEN", "secret-123")

	cfg := &GatewayConfig{
		Servers: map[string]ServerConfig{
			"weather": {
				URL: "https://weather.example.com/mcp",
				Headers: map[string]string{
					"Authorization": "Bearer ${TOOLGATE_TEST_TOKEN}",
					"X-Static":      "unchanged",
				},
			},
		},
	}

	substituteEnvHeaders(cfg)

	got := cfg.Servers["weather"].Headers["Authorization"]
	if got != "Bearer secret-123" {
		t.Errorf("Authorization header = %q, want %q", got, "Bearer secret-123")
	}
	if cfg.Servers["weather"].Headers["X-Static"] != "unchanged" {
		t.Errorf("X-Static header was modified: got %q", cfg.Servers["weather"].Headers["X-Static"])
	}
}

func TestSubstituteEnvHeaders_UnsetVarBecomesEmpty(t *testing.T) {
	t.Parallel()

	cfg := &GatewayConfig{
		Servers: map[string]ServerConfig{
			"weather": {
				URL:     "https://weather.example.com/mcp",
				Headers: map[string]string{"X-Token": "${TOOLGATE_DEFINITELY_UNSET_VAR}"},
			},
		},
	}

	substituteEnvHeaders(cfg)

	if got := cfg.Servers["weather"].Headers["X-Token"]; got != "" {
		t.Errorf("X-Token = %q, want empty for unset var", got)
	}
}
