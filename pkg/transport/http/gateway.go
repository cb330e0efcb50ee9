// Package http serves the gateway's endpoints: the generateContent
// dialects in, provider translation in the middle, and upstream
// dispatch out.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/modelgate/modelgate/pkg/auth"
	"github.com/modelgate/modelgate/pkg/cooldown"
	"github.com/modelgate/modelgate/pkg/debug"
	"github.com/modelgate/modelgate/pkg/mcp"
	"github.com/modelgate/modelgate/pkg/observability"
	"github.com/modelgate/modelgate/pkg/provider"
	"github.com/modelgate/modelgate/pkg/router"
	"github.com/modelgate/modelgate/pkg/storage"
	"github.com/modelgate/modelgate/pkg/transport"
	"github.com/modelgate/modelgate/pkg/unified"
)

// Gateway routes inbound dialect requests through translation to the
// configured upstreams and translates the answers back.
type Gateway struct {
	registry  *provider.Registry
	router    *router.Router
	gate      *cooldown.Gate
	upstreams *Upstreams

	// ledger records per-request usage; nil disables accounting.
	ledger storage.Ledger

	// bridge injects MCP tools into outgoing requests; nil disables it.
	bridge *mcp.Bridge

	// metaDefaults fills request metadata keys the inbound dialect did
	// not supply, e.g. the project for the wrapped upstream.
	metaDefaults map[string]string

	maxBodySize int64
	mux         *http.ServeMux
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithLedger enables usage accounting.
func WithLedger(l storage.Ledger) GatewayOption {
	return func(g *Gateway) { g.ledger = l }
}

// WithBridge enables MCP tool injection.
func WithBridge(b *mcp.Bridge) GatewayOption {
	return func(g *Gateway) { g.bridge = b }
}

// WithMaxBodySize caps inbound request bodies.
func WithMaxBodySize(n int64) GatewayOption {
	return func(g *Gateway) { g.maxBodySize = n }
}

// WithMetadataDefaults sets request metadata values used when the
// inbound dialect does not carry them.
func WithMetadataDefaults(defaults map[string]string) GatewayOption {
	return func(g *Gateway) { g.metaDefaults = defaults }
}

// NewGateway builds the gateway over its collaborators.
func NewGateway(registry *provider.Registry, rt *router.Router, gate *cooldown.Gate, upstreams *Upstreams, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		registry:    registry,
		router:      rt,
		gate:        gate,
		upstreams:   upstreams,
		maxBodySize: 10 << 20,
		mux:         http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(g)
	}

	// The model segment carries the action after a colon, so the route
	// captures the whole segment and handleGenerate splits it.
	g.mux.HandleFunc("POST /v1beta/models/{modelAction}", g.handleGenerate)
	g.mux.HandleFunc("POST /v1internal:generateContent", func(w http.ResponseWriter, r *http.Request) {
		g.generate(w, r, "", false)
	})
	g.mux.HandleFunc("POST /v1internal:streamGenerateContent", func(w http.ResponseWriter, r *http.Request) {
		g.generate(w, r, "", true)
	})

	g.mux.HandleFunc("GET /v1/usage", g.handleUsage)
	g.mux.HandleFunc("GET /healthz", g.handleHealthz)
	g.mux.HandleFunc("GET /readyz", g.handleReadyz)

	return g
}

// Handler returns the gateway's http.Handler.
func (g *Gateway) Handler() http.Handler {
	return g.mux
}

// handleGenerate serves POST /v1beta/models/{model}:{verb}.
func (g *Gateway) handleGenerate(w http.ResponseWriter, r *http.Request) {
	model, verb, ok := strings.Cut(r.PathValue("modelAction"), ":")
	if !ok {
		transport.WriteError(w, http.StatusNotFound, "missing action, expected model:generateContent")
		return
	}

	switch verb {
	case "generateContent":
		g.generate(w, r, model, false)
	case "streamGenerateContent":
		g.generate(w, r, model, true)
	default:
		transport.WriteError(w, http.StatusNotFound, fmt.Sprintf("unsupported action %q", verb))
	}
}

// generate is the shared request pipeline for both dialect endpoints,
// streaming and not.
func (g *Gateway) generate(w http.ResponseWriter, r *http.Request, pathModel string, stream bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, g.maxBodySize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body too large (max %d bytes)", g.maxBodySize))
			return
		}
		transport.WriteError(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}

	inbound, ok := g.registry.ForRequest(body)
	if !ok {
		transport.WriteError(w, http.StatusBadRequest, "unrecognized request envelope")
		return
	}

	ureq, err := inbound.Parse(body)
	if err != nil {
		observability.TranslationsTotal.WithLabelValues(inbound.Name(), "parse", "error").Inc()
		transport.WriteTranslationError(w, err)
		return
	}
	observability.TranslationsTotal.WithLabelValues(inbound.Name(), "parse", "ok").Inc()

	requested := pathModel
	if requested == "" {
		requested = ureq.Metadata["model"]
	}

	target, ok := g.router.Resolve(requested)
	if !ok {
		transport.WriteError(w, http.StatusNotFound, fmt.Sprintf("no route for model %q", requested))
		return
	}
	debug.Log("transport", "resolved route",
		"dialect", inbound.Name(), "requested", requested,
		"provider", target.Provider, "model", target.Model)
	observability.SetModel(r.Context(), target.Model)

	outbound, ok := g.registry.ByName(target.Provider)
	if !ok || !g.upstreams.Has(target.Provider) {
		transport.WriteError(w, http.StatusServiceUnavailable,
			fmt.Sprintf("provider %q is not configured", target.Provider))
		return
	}

	if !g.gate.Allow(target.Provider, target.Model) {
		observability.CooldownRejectedTotal.WithLabelValues(target.Provider, target.Model).Inc()
		retry := g.gate.Retry(target.Provider, target.Model)
		w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
		transport.WriteError(w, http.StatusTooManyRequests,
			fmt.Sprintf("model %q is cooling down after upstream failures", target.Model))
		return
	}

	for k, v := range g.metaDefaults {
		if v == "" || ureq.Metadata[k] != "" {
			continue
		}
		if ureq.Metadata == nil {
			ureq.Metadata = map[string]string{}
		}
		ureq.Metadata[k] = v
	}

	if g.bridge != nil {
		g.bridge.Extend(ureq)
	}

	wire, err := outbound.Transform(ureq, target.Model)
	if err != nil {
		observability.TranslationsTotal.WithLabelValues(outbound.Name(), "transform", "error").Inc()
		transport.WriteTranslationError(w, err)
		return
	}
	observability.TranslationsTotal.WithLabelValues(outbound.Name(), "transform", "ok").Inc()

	start := time.Now()
	resp, err := g.upstreams.Do(r.Context(), target.Provider, target.Model, wire, stream)
	if err != nil {
		g.gate.Failure(target.Provider, target.Model)
		observability.UpstreamRequestsTotal.WithLabelValues(target.Provider, target.Model, "error").Inc()
		transport.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	defer resp.Body.Close()

	observability.UpstreamLatency.WithLabelValues(target.Provider, target.Model).Observe(time.Since(start).Seconds())
	observability.UpstreamRequestsTotal.WithLabelValues(target.Provider, target.Model,
		strconv.Itoa(resp.StatusCode/100)+"xx").Inc()

	if resp.StatusCode >= http.StatusBadRequest {
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			g.gate.Failure(target.Provider, target.Model)
		}
		g.relayUpstreamError(w, resp)
		return
	}
	g.gate.Success(target.Provider, target.Model)

	exchange := &exchange{
		gateway:  g,
		inbound:  inbound,
		outbound: outbound,
		target:   target,
		start:    start,
		streamed: stream,
	}

	if stream {
		exchange.relayStream(r.Context(), w, resp.Body)
	} else {
		exchange.relayResponse(r.Context(), w, resp.Body)
	}
}

// relayUpstreamError passes an upstream error body through when it is
// already in the dialect error shape, or wraps it when not.
func (g *Gateway) relayUpstreamError(w http.ResponseWriter, resp *http.Response) {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &probe) == nil && len(probe.Error) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		w.Write(body)
		return
	}

	transport.WriteError(w, resp.StatusCode, strings.TrimSpace(string(body)))
}

// exchange carries one request's translation state through response
// relay and usage accounting.
type exchange struct {
	gateway  *Gateway
	inbound  provider.Adapter
	outbound provider.Adapter
	target   router.Target
	start    time.Time
	streamed bool
}

// relayResponse translates a non-streaming upstream body back into the
// inbound dialect.
func (e *exchange) relayResponse(ctx context.Context, w http.ResponseWriter, body io.Reader) {
	raw, err := io.ReadAll(body)
	if err != nil {
		transport.WriteError(w, http.StatusBadGateway, "reading upstream response: "+err.Error())
		return
	}

	uresp, err := e.outbound.ParseResponse(raw)
	if err != nil {
		observability.TranslationsTotal.WithLabelValues(e.outbound.Name(), "parse", "error").Inc()
		transport.WriteTranslationError(w, err)
		return
	}

	out, err := e.inbound.TransformResponse(uresp)
	if err != nil {
		observability.TranslationsTotal.WithLabelValues(e.inbound.Name(), "transform", "error").Inc()
		transport.WriteTranslationError(w, err)
		return
	}

	e.account(ctx, uresp.ID, uresp.Usage, "ok")

	w.Header().Set("Content-Type", "application/json")
	w.Write(out)
}

// relayStream decodes upstream frames, re-encodes them in the inbound
// dialect, and forwards them as they arrive.
func (e *exchange) relayStream(ctx context.Context, w http.ResponseWriter, body io.Reader) {
	sw := newStreamWriter(w)

	var usage *unified.Usage
	status := "ok"

	err := readFrames(body, func(payload string) error {
		chunks := e.outbound.ParseStreamChunk(payload)
		if len(chunks) == 0 {
			observability.StreamFramesTotal.WithLabelValues(e.outbound.Name(), "dropped").Inc()
			return nil
		}
		observability.StreamFramesTotal.WithLabelValues(e.outbound.Name(), "decoded").Inc()

		for _, chunk := range chunks {
			if chunk.Usage != nil {
				usage = chunk.Usage
			}
			if chunk.Type == unified.ChunkError {
				status = "error"
			}

			frame, err := e.inbound.TransformStreamChunk(chunk)
			if err != nil {
				slog.Warn("dropping untranslatable chunk",
					"provider", e.inbound.Name(),
					"type", string(chunk.Type),
					"error", err,
				)
				continue
			}
			if err := sw.WriteFrame(frame); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		// The client is gone or the upstream broke mid-stream; nothing
		// more can be delivered either way.
		slog.Warn("stream relay aborted",
			"provider", e.target.Provider,
			"model", e.target.Model,
			"error", err,
		)
		e.account(ctx, "", usage, "error")
		return
	}

	sw.WriteDone()
	e.account(ctx, "", usage, status)
}

// account records token usage for the exchange in the ledger and the
// token counters.
func (e *exchange) account(ctx context.Context, responseID string, usage *unified.Usage, status string) {
	if usage != nil {
		labels := []string{e.target.Provider, e.target.Model}
		observability.TokensTotal.WithLabelValues(append(labels, "input")...).Add(float64(usage.InputTokens))
		observability.TokensTotal.WithLabelValues(append(labels, "output")...).Add(float64(usage.OutputTokens))
		if usage.ThinkingTokens > 0 {
			observability.TokensTotal.WithLabelValues(append(labels, "thinking")...).Add(float64(usage.ThinkingTokens))
		}
	}

	if e.gateway.ledger == nil {
		return
	}

	rec := &storage.Record{
		ID:       responseID,
		Provider: e.target.Provider,
		Model:    e.target.Model,
		Streamed: e.streamed,
		Status:   status,
		Latency:  time.Since(e.start),
	}
	if rec.ID == "" {
		rec.ID = unified.NewResponseID()
	}
	if usage != nil {
		rec.InputTokens = usage.InputTokens
		rec.OutputTokens = usage.OutputTokens
		rec.ThinkingTokens = usage.ThinkingTokens
		rec.CachedTokens = usage.CachedTokens
		rec.TotalTokens = usage.TotalTokens
	}
	if id := auth.IdentityFromContext(ctx); id != nil {
		rec.Subject = id.Subject
		rec.TenantID = id.TenantID
	}

	if err := e.gateway.ledger.Record(ctx, rec); err != nil {
		slog.Warn("recording usage failed", "error", err)
	}
}

// handleUsage serves GET /v1/usage: aggregated token totals filtered
// by query parameters.
func (g *Gateway) handleUsage(w http.ResponseWriter, r *http.Request) {
	if g.ledger == nil {
		transport.WriteError(w, http.StatusNotImplemented, "usage accounting is not enabled")
		return
	}

	f := storage.Filter{
		Provider: r.URL.Query().Get("provider"),
		Model:    r.URL.Query().Get("model"),
		Subject:  r.URL.Query().Get("subject"),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			transport.WriteError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		f.Since = t
	}
	if until := r.URL.Query().Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			transport.WriteError(w, http.StatusBadRequest, "until must be RFC 3339")
			return
		}
		f.Until = t
	}

	ctx := r.Context()
	if id := auth.IdentityFromContext(ctx); id != nil && id.TenantID != "" {
		ctx = storage.SetTenant(ctx, id.TenantID)
	}

	totals, err := g.ledger.Totals(ctx, f)
	if err != nil {
		transport.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Requests       int64 `json:"requests"`
		InputTokens    int64 `json:"input_tokens"`
		OutputTokens   int64 `json:"output_tokens"`
		ThinkingTokens int64 `json:"thinking_tokens"`
		CachedTokens   int64 `json:"cached_tokens"`
		TotalTokens    int64 `json:"total_tokens"`
	}{
		Requests:       totals.Requests,
		InputTokens:    totals.InputTokens,
		OutputTokens:   totals.OutputTokens,
		ThinkingTokens: totals.ThinkingTokens,
		CachedTokens:   totals.CachedTokens,
		TotalTokens:    totals.TotalTokens,
	})
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok")
}

func (g *Gateway) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if g.ledger != nil {
		if err := g.ledger.HealthCheck(r.Context()); err != nil {
			transport.WriteError(w, http.StatusServiceUnavailable, "ledger unavailable: "+err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok")
}
