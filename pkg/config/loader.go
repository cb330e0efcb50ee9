package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, MODELGATE_CONFIG env, ./config.yaml, /etc/modelgate/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. MODELGATE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/modelgate/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("MODELGATE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/modelgate/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps MODELGATE_* environment variables onto config
// fields. Env values win over YAML.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MODELGATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MODELGATE_GEMINI_BASE_URL"); v != "" {
		cfg.Upstreams.Gemini.BaseURL = v
	}
	if v := os.Getenv("MODELGATE_GEMINI_API_KEY"); v != "" {
		cfg.Upstreams.Gemini.APIKey = v
	}
	if v := os.Getenv("MODELGATE_CLOUDCODE_BASE_URL"); v != "" {
		cfg.Upstreams.CloudCode.BaseURL = v
	}
	if v := os.Getenv("MODELGATE_CLOUDCODE_PROJECT"); v != "" {
		cfg.Upstreams.CloudCode.Project = v
	}
	if v := os.Getenv("MODELGATE_CLOUDCODE_TOKEN"); v != "" {
		cfg.Upstreams.CloudCode.Token = v
	}
	if v := os.Getenv("MODELGATE_DEFAULT_MODEL"); v != "" {
		cfg.Routing.DefaultModel = v
	}
	if v := os.Getenv("MODELGATE_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("MODELGATE_STORAGE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxSize = size
		}
	}
	if v := os.Getenv("MODELGATE_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("MODELGATE_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}

	// MODELGATE_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("MODELGATE_API_KEYS"); v != "" {
		var keys []APIKeyConfig
		if err := json.Unmarshal([]byte(v), &keys); err == nil && len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	// MODELGATE_ROUTES: JSON array of routing rules.
	if v := os.Getenv("MODELGATE_ROUTES"); v != "" {
		var routes []RouteConfig
		if err := json.Unmarshal([]byte(v), &routes); err == nil && len(routes) > 0 {
			cfg.Routing.Routes = routes
		}
	}

	// MODELGATE_MCP_SERVERS: JSON array of MCP server configs.
	if v := os.Getenv("MODELGATE_MCP_SERVERS"); v != "" {
		var servers []MCPServerConfig
		if err := json.Unmarshal([]byte(v), &servers); err == nil && len(servers) > 0 {
			cfg.MCP.Servers = servers
		}
	}
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	if cfg.Upstreams.Gemini.APIKeyFile != "" && cfg.Upstreams.Gemini.APIKey == "" {
		val, err := readSecretFile(cfg.Upstreams.Gemini.APIKeyFile)
		if err != nil {
			return fmt.Errorf("upstreams.gemini.api_key_file: %w", err)
		}
		cfg.Upstreams.Gemini.APIKey = val
	}

	if cfg.Upstreams.CloudCode.TokenFile != "" && cfg.Upstreams.CloudCode.Token == "" {
		val, err := readSecretFile(cfg.Upstreams.CloudCode.TokenFile)
		if err != nil {
			return fmt.Errorf("upstreams.cloudcode.token_file: %w", err)
		}
		cfg.Upstreams.CloudCode.Token = val
	}

	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	for i := range cfg.MCP.Servers {
		a := &cfg.MCP.Servers[i].Auth
		if a.ClientSecretFile != "" && a.ClientSecret == "" {
			val, err := readSecretFile(a.ClientSecretFile)
			if err != nil {
				return fmt.Errorf("mcp.servers[%d].auth.client_secret_file: %w", i, err)
			}
			a.ClientSecret = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding
// whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
