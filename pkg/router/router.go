// Package router resolves requested model names onto provider channels.
//
// Rules come from configuration as (pattern, provider, model) triples.
// Exact patterns always beat wildcard patterns; among matching wildcards
// the one with the longest fixed prefix wins, so "gemini-2.5-*" shadows
// "gemini-*" which shadows "*".
package router

import (
	"strings"

	"github.com/modelgate/modelgate/pkg/config"
)

// Target is the resolved destination for a request.
type Target struct {
	Provider string
	// Model is the upstream model name, after any rewrite the matched
	// rule applies.
	Model string
}

// Router matches model names against an ordered rule set.
type Router struct {
	exact        map[string]config.RouteConfig
	wildcards    []config.RouteConfig
	defaultModel string
}

// New builds a router from the routing configuration.
func New(cfg config.RoutingConfig) *Router {
	r := &Router{
		exact:        make(map[string]config.RouteConfig),
		defaultModel: cfg.DefaultModel,
	}
	for _, route := range cfg.Routes {
		if strings.HasSuffix(route.Pattern, "*") {
			r.wildcards = append(r.wildcards, route)
			continue
		}
		if _, dup := r.exact[route.Pattern]; !dup {
			r.exact[route.Pattern] = route
		}
	}
	return r
}

// Resolve returns the target for the requested model. An empty model
// falls back to the configured default. The second return is false when
// no rule matches.
func (r *Router) Resolve(model string) (Target, bool) {
	if model == "" {
		model = r.defaultModel
	}
	if model == "" {
		return Target{}, false
	}

	if route, ok := r.exact[model]; ok {
		return target(route, model), true
	}

	best := -1
	var bestRoute config.RouteConfig
	for _, route := range r.wildcards {
		prefix := strings.TrimSuffix(route.Pattern, "*")
		if !strings.HasPrefix(model, prefix) {
			continue
		}
		if len(prefix) > best {
			best = len(prefix)
			bestRoute = route
		}
	}
	if best < 0 {
		return Target{}, false
	}
	return target(bestRoute, model), true
}

func target(route config.RouteConfig, model string) Target {
	t := Target{Provider: route.Provider, Model: model}
	if route.Model != "" {
		t.Model = route.Model
	}
	return t
}
