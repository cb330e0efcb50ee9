package provider

import (
	"encoding/json"
	"sync"
)

// Registry holds the configured adapters and resolves which one should
// handle an inbound request or model.
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
	byName   map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Adapter)}
}

// Register adds an adapter. Registration order is the probe order used by
// ForRequest, so more specific envelopes should be registered first.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters = append(r.adapters, a)
	r.byName[a.Name()] = a
}

// ByName returns the adapter with the given provider name.
func (r *Registry) ByName(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[name]
	return a, ok
}

// ForRequest returns the first adapter that recognizes the raw envelope.
func (r *Registry) ForRequest(raw json.RawMessage) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.adapters {
		if a.IsSupportedRequest(raw) {
			return a, true
		}
	}
	return nil, false
}

// ForModel returns the first adapter that serves the given model.
func (r *Registry) ForModel(model string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.adapters {
		if a.IsSupportedModel(model) {
			return a, true
		}
	}
	return nil, false
}

// Names lists registered provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		names[i] = a.Name()
	}
	return names
}
