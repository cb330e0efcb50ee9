package http

import "testing"

func TestBuildURL(t *testing.T) {
	u := NewUpstreams(nil)

	tests := []struct {
		name     string
		upstream Upstream
		model    string
		stream   bool
		want     string
	}{
		{
			name:     "rest generate",
			upstream: Upstream{BaseURL: "https://example.com"},
			model:    "gemini-2.5-flash",
			want:     "https://example.com/v1beta/models/gemini-2.5-flash:generateContent",
		},
		{
			name:     "rest stream adds alt=sse",
			upstream: Upstream{BaseURL: "https://example.com"},
			model:    "gemini-2.5-flash",
			stream:   true,
			want:     "https://example.com/v1beta/models/gemini-2.5-flash:streamGenerateContent?alt=sse",
		},
		{
			name:     "trailing slash trimmed",
			upstream: Upstream{BaseURL: "https://example.com/"},
			model:    "gemini-2.5-flash",
			want:     "https://example.com/v1beta/models/gemini-2.5-flash:generateContent",
		},
		{
			name:     "wrapped generate ignores model",
			upstream: Upstream{BaseURL: "https://example.com", Wrapped: true},
			model:    "claude-sonnet-4",
			want:     "https://example.com/v1internal:generateContent",
		},
		{
			name:     "wrapped stream",
			upstream: Upstream{BaseURL: "https://example.com", Wrapped: true},
			model:    "claude-sonnet-4",
			stream:   true,
			want:     "https://example.com/v1internal:streamGenerateContent?alt=sse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := u.buildURL(tt.upstream, tt.model, tt.stream)
			if got != tt.want {
				t.Errorf("buildURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUpstreamsHas(t *testing.T) {
	u := NewUpstreams(map[string]Upstream{
		"gemini": {BaseURL: "https://example.com"},
		"empty":  {},
	})

	if !u.Has("gemini") {
		t.Error("Has(gemini) = false, want true")
	}
	if u.Has("empty") {
		t.Error("Has(empty) = true for channel without base URL")
	}
	if u.Has("missing") {
		t.Error("Has(missing) = true, want false")
	}
}
