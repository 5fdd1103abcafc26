// Package config provides configuration loading for ToolGate.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for toolgate.yaml/.yml in
// standard locations. The search requires an explicit YAML extension to
// avoid matching the binary itself, which Viper's built-in SetConfigName
// would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("toolgate")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: TOOLGATE_REFRESH_INTERVAL, etc.
	viper.SetEnvPrefix("TOOLGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a toolgate config file
// with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".toolgate"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "toolgate"))
		}
	} else {
		paths = append(paths, "/etc/toolgate")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for toolgate.yaml
// or .yml. Returns the full path of the first match, or "" if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "toolgate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds the config keys that make sense to override via
// environment variable. mcpServers is a map and is left to the config file.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("refresh_interval")
	_ = viper.BindEnv("cache_ttl")
	_ = viper.BindEnv("log_level")
	_ = viper.BindEnv("state_backend")
	_ = viper.BindEnv("sqlite_path")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, substitutes ${VAR} references in server headers, and
// validates the result.
func LoadConfig() (*GatewayConfig, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg GatewayConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	substituteEnvHeaders(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// substituteEnvHeaders replaces "${VAR}" references in every server's
// headers with the named environment variable's value, per spec.md §6.
// An unset variable substitutes to an empty string, matching shell
// parameter expansion's default behavior for an undefined variable.
func substituteEnvHeaders(cfg *GatewayConfig) {
	for id, srv := range cfg.Servers {
		if len(srv.Headers) == 0 {
			continue
		}
		substituted := make(map[string]string, len(srv.Headers))
		for k, v := range srv.Headers {
			substituted[k] = os.Expand(v, os.Getenv)
		}
		srv.Headers = substituted
		cfg.Servers[id] = srv
	}
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or "" if none was found (env vars / defaults only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
