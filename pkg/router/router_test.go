package router

import (
	"testing"

	"github.com/modelgate/modelgate/pkg/config"
)

func testRouter() *Router {
	return New(config.RoutingConfig{
		DefaultModel: "gemini-2.5-flash",
		Routes: []config.RouteConfig{
			{Pattern: "*", Provider: "cloudcode"},
			{Pattern: "gemini-*", Provider: "gemini"},
			{Pattern: "gemini-2.5-*", Provider: "gemini"},
			{Pattern: "gemini-2.5-pro", Provider: "cloudcode"},
			{Pattern: "claude-*", Provider: "cloudcode", Model: "claude-sonnet"},
		},
	})
}

func TestResolveExactBeatsWildcard(t *testing.T) {
	got, ok := testRouter().Resolve("gemini-2.5-pro")
	if !ok || got.Provider != "cloudcode" {
		t.Errorf("resolve = %+v, %t; exact rule must win", got, ok)
	}
}

func TestResolveLongestWildcardWins(t *testing.T) {
	got, ok := testRouter().Resolve("gemini-2.5-flash-lite")
	if !ok || got.Provider != "gemini" {
		t.Fatalf("resolve = %+v, %t", got, ok)
	}

	got, ok = testRouter().Resolve("gemini-1.5-pro")
	if !ok || got.Provider != "gemini" {
		t.Errorf("gemini-* should match: %+v, %t", got, ok)
	}

	got, ok = testRouter().Resolve("gpt-4o")
	if !ok || got.Provider != "cloudcode" {
		t.Errorf("catch-all should match: %+v, %t", got, ok)
	}
}

func TestResolveRewritesModel(t *testing.T) {
	got, ok := testRouter().Resolve("claude-opus")
	if !ok || got.Model != "claude-sonnet" {
		t.Errorf("resolve = %+v, %t; rule rewrite must apply", got, ok)
	}
}

func TestResolveKeepsModelWithoutRewrite(t *testing.T) {
	got, _ := testRouter().Resolve("gemini-2.5-flash-lite")
	if got.Model != "gemini-2.5-flash-lite" {
		t.Errorf("model = %q, must pass through unchanged", got.Model)
	}
}

func TestResolveEmptyUsesDefault(t *testing.T) {
	got, ok := testRouter().Resolve("")
	if !ok || got.Model != "gemini-2.5-flash" || got.Provider != "gemini" {
		t.Errorf("resolve = %+v, %t", got, ok)
	}
}

func TestResolveNoMatch(t *testing.T) {
	r := New(config.RoutingConfig{
		Routes: []config.RouteConfig{{Pattern: "gemini-*", Provider: "gemini"}},
	})
	if _, ok := r.Resolve("claude-opus"); ok {
		t.Error("unmatched model resolved")
	}
	if _, ok := r.Resolve(""); ok {
		t.Error("empty model without default resolved")
	}
}
