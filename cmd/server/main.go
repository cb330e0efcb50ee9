// Command server runs the modelgate translation gateway.
//
// Configuration is loaded from a YAML file (path via -config or
// MODELGATE_CONFIG, with ./modelgate.yaml and /etc/modelgate/config.yaml
// as fallbacks) and can be overridden with MODELGATE_* environment
// variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modelgate/modelgate/pkg/auth"
	"github.com/modelgate/modelgate/pkg/auth/apikey"
	"github.com/modelgate/modelgate/pkg/auth/token"
	"github.com/modelgate/modelgate/pkg/config"
	"github.com/modelgate/modelgate/pkg/cooldown"
	"github.com/modelgate/modelgate/pkg/debug"
	"github.com/modelgate/modelgate/pkg/mcp"
	"github.com/modelgate/modelgate/pkg/observability"
	"github.com/modelgate/modelgate/pkg/provider"
	"github.com/modelgate/modelgate/pkg/provider/cloudcode"
	"github.com/modelgate/modelgate/pkg/provider/gemini"
	"github.com/modelgate/modelgate/pkg/router"
	"github.com/modelgate/modelgate/pkg/storage"
	"github.com/modelgate/modelgate/pkg/storage/memory"
	"github.com/modelgate/modelgate/pkg/storage/postgres"
	"github.com/modelgate/modelgate/pkg/transport"
	transporthttp "github.com/modelgate/modelgate/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	debug.Init()
	logger := slog.Default()

	ctx := context.Background()

	// Provider adapters. The wrapped dialect accepts any model name,
	// so it registers last as the catch-all.
	registry := provider.NewRegistry()
	registry.Register(gemini.New())
	registry.Register(cloudcode.New())

	upstreams := transporthttp.NewUpstreams(buildUpstreams(cfg))
	warnExpiringToken(cfg.Upstreams.CloudCode.Token)

	ledger, err := buildLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	opts := []transporthttp.GatewayOption{
		transporthttp.WithLedger(ledger),
	}
	if cfg.Upstreams.CloudCode.Project != "" {
		opts = append(opts, transporthttp.WithMetadataDefaults(map[string]string{
			cloudcode.MetaProject: cfg.Upstreams.CloudCode.Project,
		}))
	}

	if len(cfg.MCP.Servers) > 0 {
		bridge := mcp.Connect(ctx, mcpConfig(cfg))
		defer bridge.Close()
		opts = append(opts, transporthttp.WithBridge(bridge))
	}

	gateway := transporthttp.NewGateway(
		registry,
		router.New(cfg.Routing),
		cooldown.New(cfg.Cooldown.Base, cfg.Cooldown.Max),
		upstreams,
		opts...,
	)

	mux := http.NewServeMux()
	mux.Handle("/", gateway.Handler())
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	handler := transport.Chain(
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(logger),
		observability.MetricsMiddleware,
		auth.Middleware(buildAuthChain(cfg), auth.DefaultBypassEndpoints),
	)(mux)

	srv := transporthttp.NewServer(handler,
		transporthttp.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithLogger(logger),
	)

	return srv.ListenAndServe()
}

// buildUpstreams converts upstream configuration into transport
// channels, keyed by provider name.
func buildUpstreams(cfg *config.Config) map[string]transporthttp.Upstream {
	channels := make(map[string]transporthttp.Upstream)
	if cfg.Upstreams.Gemini.BaseURL != "" {
		channels[gemini.Name] = transporthttp.Upstream{
			BaseURL: cfg.Upstreams.Gemini.BaseURL,
			APIKey:  cfg.Upstreams.Gemini.APIKey,
		}
	}
	if cfg.Upstreams.CloudCode.BaseURL != "" {
		channels[cloudcode.Name] = transporthttp.Upstream{
			BaseURL: cfg.Upstreams.CloudCode.BaseURL,
			Token:   cfg.Upstreams.CloudCode.Token,
			Wrapped: true,
		}
	}
	return channels
}

// warnExpiringToken logs when the configured upstream token is close
// to its expiry, so it can be rotated before requests start failing.
func warnExpiringToken(tok string) {
	if tok == "" {
		return
	}
	claims, err := token.Inspect(tok)
	if err != nil {
		// Opaque tokens are fine; only JWTs can be inspected.
		return
	}
	if claims.ExpiresWithin(0) {
		slog.Error("cloudcode upstream token is expired", "expires_at", claims.ExpiresAt)
	} else if claims.ExpiresWithin(24 * time.Hour) {
		slog.Warn("cloudcode upstream token expires soon", "expires_at", claims.ExpiresAt)
	}
}

func buildLedger(ctx context.Context, cfg *config.Config) (storage.Ledger, error) {
	switch cfg.Storage.Type {
	case "memory":
		slog.Info("usage ledger enabled", "type", "memory", "max_size", cfg.Storage.MaxSize)
		return memory.New(cfg.Storage.MaxSize), nil
	case "postgres":
		ledger, err := postgres.New(ctx, postgres.Config{
			DSN:             cfg.Storage.Postgres.DSN,
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			MaxConnLifetime: cfg.Storage.Postgres.MaxConnLifetime,
			MigrateOnStart:  cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("creating postgres ledger: %w", err)
		}
		slog.Info("usage ledger enabled", "type", "postgres")
		return ledger, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func buildAuthChain(cfg *config.Config) *auth.Chain {
	chain := &auth.Chain{DefaultDecision: auth.Yes}

	if cfg.Auth.Type == "apikey" {
		entries := make([]apikey.Entry, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			entries = append(entries, apikey.Entry{
				Key:      k.Key,
				Subject:  k.Subject,
				TenantID: k.TenantID,
			})
		}
		chain.Authenticators = []auth.Authenticator{apikey.New(entries)}
		chain.DefaultDecision = auth.No
		slog.Info("authentication enabled", "type", "apikey", "keys", len(entries))
	}

	return chain
}

func mcpConfig(cfg *config.Config) mcp.Config {
	out := mcp.Config{}
	for _, s := range cfg.MCP.Servers {
		out.Servers = append(out.Servers, mcp.ServerConfig{
			Name:      s.Name,
			Transport: s.Transport,
			URL:       s.URL,
			Headers:   s.Headers,
			Auth: mcp.AuthConfig{
				Type:         s.Auth.Type,
				TokenURL:     s.Auth.TokenURL,
				ClientID:     s.Auth.ClientID,
				ClientSecret: s.Auth.ClientSecret,
				Scopes:       s.Auth.Scopes,
			},
		})
	}
	return out
}
