package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelgate/modelgate/pkg/debug"
)

// Upstream holds the connection settings for one provider channel.
type Upstream struct {
	// BaseURL is the provider endpoint root, without a trailing slash.
	BaseURL string

	// APIKey is sent as x-goog-api-key when set.
	APIKey string

	// Token is sent as an Authorization bearer when set.
	Token string

	// Wrapped selects the internal envelope endpoints (the model rides
	// inside the body) instead of the per-model REST paths.
	Wrapped bool
}

// Upstreams dispatches provider wire requests to their configured
// endpoints.
type Upstreams struct {
	channels map[string]Upstream
	client   *http.Client
}

// NewUpstreams creates an upstream dispatcher over the given channels,
// keyed by provider name. No overall client timeout is set; streaming
// responses are bounded by the request context instead.
func NewUpstreams(channels map[string]Upstream) *Upstreams {
	return &Upstreams{
		channels: channels,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost:   8,
				ResponseHeaderTimeout: 60 * time.Second,
			},
		},
	}
}

// Has reports whether a channel is configured for the provider.
func (u *Upstreams) Has(provider string) bool {
	up, ok := u.channels[provider]
	return ok && up.BaseURL != ""
}

// Do sends a provider wire request upstream and returns the raw HTTP
// response. The caller owns the response body.
func (u *Upstreams) Do(ctx context.Context, provider, model string, body []byte, stream bool) (*http.Response, error) {
	up, ok := u.channels[provider]
	if !ok || up.BaseURL == "" {
		return nil, fmt.Errorf("no upstream configured for provider %q", provider)
	}

	url := u.buildURL(up, model, stream)

	debug.Log("upstream", "dispatching request",
		"provider", provider, "model", model, "url", url, "stream", stream)
	if debug.TraceIsEnabled("upstream") {
		debug.Raw("upstream", string(body))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if up.APIKey != "" {
		req.Header.Set("x-goog-api-key", up.APIKey)
	}
	if up.Token != "" {
		req.Header.Set("Authorization", "Bearer "+up.Token)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request to %q: %w", provider, err)
	}
	return resp, nil
}

func (u *Upstreams) buildURL(up Upstream, model string, stream bool) string {
	base := strings.TrimSuffix(up.BaseURL, "/")

	verb := "generateContent"
	if stream {
		verb = "streamGenerateContent"
	}

	if up.Wrapped {
		url := base + "/v1internal:" + verb
		if stream {
			url += "?alt=sse"
		}
		return url
	}

	url := base + "/v1beta/models/" + model + ":" + verb
	if stream {
		url += "?alt=sse"
	}
	return url
}
