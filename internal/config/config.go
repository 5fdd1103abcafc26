// Package config provides ToolGate's configuration schema: the declared
// mcpServers document plus the gateway-wide knobs the federation core
// needs (cache TTL, refresh interval, log level, state backend).
package config

// GatewayConfig is the top-level configuration for the ToolGate gateway.
type GatewayConfig struct {
	// Servers is the mcpServers configuration document (spec.md §6),
	// keyed by server id.
	Servers map[string]ServerConfig `yaml:"mcpServers" mapstructure:"mcpServers" validate:"omitempty,dive"`

	// RefreshInterval is how often the Index Engine's background loop
	// performs an incremental refresh (e.g. "600s", "10m"). Defaults to
	// "600s" if empty.
	RefreshInterval string `yaml:"refresh_interval" mapstructure:"refresh_interval" validate:"omitempty"`

	// CacheTTL is how long the Catalogue Manager's per-server tool cache
	// stays valid before a call to discover forces a refresh (e.g.
	// "3600s", "1h"). Defaults to "3600s" if empty.
	CacheTTL string `yaml:"cache_ttl" mapstructure:"cache_ttl" validate:"omitempty"`

	// LogLevel sets the minimum log level. Defaults to "info" if empty.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// StateBackend selects the document store implementation: "sqlite"
	// (default, persisted) or "memory" (ephemeral, for tests and
	// quick local runs).
	StateBackend string `yaml:"state_backend" mapstructure:"state_backend" validate:"omitempty,oneof=sqlite memory"`

	// SQLitePath is the file path for the sqlite-backed document store,
	// used when StateBackend is "sqlite". Defaults to "toolgate.db".
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ServerConfig is one entry of the mcpServers configuration document
// (spec.md §6).
type ServerConfig struct {
	// URL is the absolute upstream endpoint.
	URL string `yaml:"url" mapstructure:"url" validate:"required,url"`

	// Type selects the transport dialect: "plain", "streamable", or
	// "sse". Defaults to "plain" if empty.
	Type string `yaml:"type" mapstructure:"type" validate:"omitempty,oneof=plain streamable sse"`

	// Headers are static request headers; values may reference
	// environment variables as "${VAR}", substituted at load time.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *GatewayConfig) SetDefaults() {
	if c.RefreshInterval == "" {
		c.RefreshInterval = "600s"
	}
	if c.CacheTTL == "" {
		c.CacheTTL = "3600s"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.StateBackend == "" {
		c.StateBackend = "sqlite"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "toolgate.db"
	}
	for id, srv := range c.Servers {
		if srv.Type == "" {
			srv.Type = "plain"
			c.Servers[id] = srv
		}
	}
}
