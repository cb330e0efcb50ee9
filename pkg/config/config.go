// Package config provides unified configuration for the modelgate
// translation gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (MODELGATE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the modelgate gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Upstreams     UpstreamsConfig     `yaml:"upstreams"`
	Routing       RoutingConfig       `yaml:"routing"`
	Cooldown      CooldownConfig      `yaml:"cooldown"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 300s, streams are long-lived
}

// UpstreamsConfig holds per-provider upstream connection settings.
type UpstreamsConfig struct {
	Gemini    GeminiConfig    `yaml:"gemini"`
	CloudCode CloudCodeConfig `yaml:"cloudcode"`
}

// GeminiConfig configures the public generateContent upstream.
type GeminiConfig struct {
	BaseURL    string `yaml:"base_url"` // required
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key
}

// CloudCodeConfig configures the wrapped strict-dialect upstream.
type CloudCodeConfig struct {
	BaseURL   string `yaml:"base_url"`
	Project   string `yaml:"project"`
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"` // _file variant for token
}

// RoutingConfig maps requested model names onto providers.
type RoutingConfig struct {
	DefaultModel string        `yaml:"default_model"` // optional
	Routes       []RouteConfig `yaml:"routes"`
}

// RouteConfig is one model routing rule. Pattern supports a trailing "*"
// wildcard; Model, when set, rewrites the requested model name before it
// reaches the provider.
type RouteConfig struct {
	Pattern  string `yaml:"pattern"`
	Provider string `yaml:"provider"` // "gemini" or "cloudcode"
	Model    string `yaml:"model"`
}

// CooldownConfig controls the per-model failure backoff gate.
type CooldownConfig struct {
	Base time.Duration `yaml:"base"` // default: 1s
	Max  time.Duration `yaml:"max"`  // default: 5m
}

// StorageConfig holds usage-ledger settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	DSNFile         string        `yaml:"dsn_file"`          // _file variant for dsn
	MaxConns        int32         `yaml:"max_conns"`         // default: 25
	MinConns        int32         `yaml:"min_conns"`         // default: 5
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"` // default: 5m
	MigrateOnStart  bool          `yaml:"migrate_on_start"`  // default: false
}

// AuthConfig holds client authentication settings.
type AuthConfig struct {
	Type    string         `yaml:"type"`     // "none" or "apikey", default: "none"
	APIKeys []APIKeyConfig `yaml:"api_keys"` // API key entries for type=apikey
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key      string `yaml:"key"`
	KeyFile  string `yaml:"key_file"` // _file variant for key
	Subject  string `yaml:"subject"`
	TenantID string `yaml:"tenant_id"`
}

// MCPConfig holds MCP (Model Context Protocol) server settings for
// gateway-injected tools.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes a single MCP server connection.
type MCPServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "sse" or "streamable-http"
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	Auth      MCPAuthConfig     `yaml:"auth"`
}

// MCPAuthConfig configures dynamic authentication for an MCP server.
// An empty Type means static headers only.
type MCPAuthConfig struct {
	Type             string   `yaml:"type"` // "" or "oauth_client_credentials"
	TokenURL         string   `yaml:"token_url"`
	ClientID         string   `yaml:"client_id"`
	ClientSecret     string   `yaml:"client_secret"`
	ClientSecretFile string   `yaml:"client_secret_file"` // _file variant for client_secret
	Scopes           []string `yaml:"scopes"`
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 300 * time.Second,
		},
		Cooldown: CooldownConfig{
			Base: time.Second,
			Max:  5 * time.Minute,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns:        25,
				MinConns:        5,
				MaxConnLifetime: 5 * time.Minute,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
