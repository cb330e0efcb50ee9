package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Upstreams.Gemini.BaseURL == "" && c.Upstreams.CloudCode.BaseURL == "" {
		errs = append(errs, fmt.Errorf("at least one of upstreams.gemini.base_url or upstreams.cloudcode.base_url is required"))
	}

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	switch c.Auth.Type {
	case "none", "apikey":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\" or \"apikey\", got %q", c.Auth.Type))
	}

	for i, route := range c.Routing.Routes {
		if route.Pattern == "" {
			errs = append(errs, fmt.Errorf("routing.routes[%d].pattern is required", i))
		}
		switch route.Provider {
		case "gemini", "cloudcode":
			// valid
		default:
			errs = append(errs, fmt.Errorf("routing.routes[%d].provider must be \"gemini\" or \"cloudcode\", got %q", i, route.Provider))
		}
	}

	for i, srv := range c.MCP.Servers {
		switch srv.Auth.Type {
		case "":
			// static headers only
		case "oauth_client_credentials":
			if srv.Auth.TokenURL == "" {
				errs = append(errs, fmt.Errorf("mcp.servers[%d].auth.token_url is required for oauth_client_credentials", i))
			}
			if srv.Auth.ClientID == "" {
				errs = append(errs, fmt.Errorf("mcp.servers[%d].auth.client_id is required for oauth_client_credentials", i))
			}
		default:
			errs = append(errs, fmt.Errorf("mcp.servers[%d].auth.type must be empty or \"oauth_client_credentials\", got %q", i, srv.Auth.Type))
		}
	}

	if c.Cooldown.Base <= 0 {
		errs = append(errs, fmt.Errorf("cooldown.base must be > 0, got %v", c.Cooldown.Base))
	}
	if c.Cooldown.Max < c.Cooldown.Base {
		errs = append(errs, fmt.Errorf("cooldown.max must be >= cooldown.base, got %v < %v", c.Cooldown.Max, c.Cooldown.Base))
	}

	return errors.Join(errs...)
}
