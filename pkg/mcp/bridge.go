// Package mcp bridges MCP servers into the gateway's tool surface.
// Tools discovered from configured servers are merged into outgoing
// requests under namespaced names ("<server>/<tool>"), and tool calls
// the model issues against those names are dispatched back to the
// owning server.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/modelgate/modelgate/pkg/unified"
)

// Result carries the outcome of a dispatched tool call.
type Result struct {
	CallID  string
	Content string
	IsError bool
}

// Part converts the result into a tool_result content part.
func (r *Result) Part(name string) unified.ContentPart {
	content := r.Content
	if r.IsError {
		content = "tool error: " + content
	}
	return unified.ToolResultPart(r.CallID, name, content)
}

// Bridge manages connections to multiple MCP servers and routes
// namespaced tool calls to the server that owns them.
type Bridge struct {
	mu sync.RWMutex

	// clients maps server name to its client.
	clients map[string]*Client

	// discovered tracks whether tool discovery has run.
	discovered bool

	// tools holds all discovered tools under their namespaced names.
	tools []unified.Tool
}

// NewBridge creates a bridge over pre-connected clients, keyed by
// server name.
func NewBridge(clients map[string]*Client) *Bridge {
	return &Bridge{clients: clients}
}

// Connect builds a bridge from configuration, connecting to every
// configured server. A server that fails to connect is skipped with a
// warning so one bad endpoint does not take the gateway down.
func Connect(ctx context.Context, cfg Config) *Bridge {
	clients := make(map[string]*Client, len(cfg.Servers))
	for _, sc := range cfg.Servers {
		client := NewClient(sc)
		if err := client.Connect(ctx); err != nil {
			slog.Warn("skipping unreachable MCP server", "server", sc.Name, "error", err)
			continue
		}
		clients[sc.Name] = client
	}
	return NewBridge(clients)
}

// Tools returns all discovered tools under their namespaced names.
func (b *Bridge) Tools() []unified.Tool {
	b.ensureDiscovered()

	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tools
}

// Extend appends the bridge's tools to a request, skipping names the
// request already declares.
func (b *Bridge) Extend(req *unified.Request) {
	taken := make(map[string]bool, len(req.Tools))
	for _, t := range req.Tools {
		taken[t.Name] = true
	}
	for _, t := range b.Tools() {
		if !taken[t.Name] {
			req.Tools = append(req.Tools, t)
		}
	}
}

// Owns reports whether the bridge can dispatch the named tool.
func (b *Bridge) Owns(name string) bool {
	server, _, ok := splitName(name)
	if !ok {
		return false
	}
	b.ensureDiscovered()

	b.mu.RLock()
	defer b.mu.RUnlock()
	_, exists := b.clients[server]
	return exists
}

// Dispatch routes a namespaced tool call to the owning server. Calls
// for unknown servers come back as error results.
func (b *Bridge) Dispatch(ctx context.Context, call *unified.ToolCallData) (*Result, error) {
	server, tool, ok := splitName(call.Name)
	if !ok {
		return &Result{
			CallID:  call.ID,
			Content: fmt.Sprintf("tool %q is not namespaced to an MCP server", call.Name),
			IsError: true,
		}, nil
	}

	b.mu.RLock()
	client, exists := b.clients[server]
	b.mu.RUnlock()
	if !exists {
		return &Result{
			CallID:  call.ID,
			Content: fmt.Sprintf("no MCP server named %q", server),
			IsError: true,
		}, nil
	}

	// The server knows the tool by its bare name.
	unqualified := *call
	unqualified.Name = tool
	return client.CallTool(ctx, &unqualified)
}

// Close closes all server connections.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var lastErr error
	for name, client := range b.clients {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close MCP client", "server", name, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// ensureDiscovered runs tool discovery once across all servers.
func (b *Bridge) ensureDiscovered() {
	b.mu.RLock()
	if b.discovered {
		b.mu.RUnlock()
		return
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.discovered {
		return
	}

	ctx := context.Background()
	for name, client := range b.clients {
		toolDefs, err := client.DiscoverTools(ctx)
		if err != nil {
			slog.Error("failed to discover tools from MCP server",
				"server", name,
				"error", err,
			)
			continue
		}

		for _, td := range toolDefs {
			td.Name = name + "/" + td.Name
			b.tools = append(b.tools, td)
		}

		slog.Info("discovered MCP tools",
			"server", name,
			"count", len(toolDefs),
		)
	}

	b.discovered = true
}

// splitName splits "<server>/<tool>" at the first slash. Tool names
// may themselves contain slashes.
func splitName(name string) (server, tool string, ok bool) {
	idx := strings.Index(name, "/")
	if idx <= 0 || idx == len(name)-1 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}
