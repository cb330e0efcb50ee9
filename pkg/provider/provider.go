package provider

import (
	"encoding/json"

	"github.com/modelgate/modelgate/pkg/unified"
)

// Adapter translates between the unified representation and one upstream
// wire format, in both directions, including streaming.
//
// Adapters are pure with respect to their inputs: they hold no per-request
// state, perform no I/O, and never mutate the values handed to them, so a
// single Adapter is safe for concurrent use across many requests and
// streams. Malformed upstream data degrades gracefully; only envelope
// failures (unified.ErrInvalidEnvelope) surface as errors.
type Adapter interface {
	// Name returns the provider identifier (e.g., "gemini", "cloudcode").
	Name() string

	// IsSupportedRequest reports whether raw looks like this provider's
	// request envelope. Used by the router to pick an adapter.
	IsSupportedRequest(raw json.RawMessage) bool

	// IsSupportedModel reports whether this adapter serves the model.
	IsSupportedModel(model string) bool

	// Parse converts a raw provider request into unified form.
	Parse(raw json.RawMessage) (*unified.Request, error)

	// Transform converts a unified request into the provider's wire form,
	// addressed to the resolved model. Pairing repair, schema rewriting,
	// and tool-name encoding run inside Transform as the provider requires.
	Transform(req *unified.Request, model string) (json.RawMessage, error)

	// ParseResponse converts a raw provider response into unified form.
	ParseResponse(raw json.RawMessage) (*unified.Response, error)

	// TransformResponse converts a unified response into the provider's
	// wire form.
	TransformResponse(resp *unified.Response) (json.RawMessage, error)

	// ParseStreamChunk decodes one upstream stream frame into zero or more
	// unified chunks. Malformed frames are dropped and logged, never
	// returned as errors.
	ParseStreamChunk(frame string) []unified.StreamChunk

	// TransformStreamChunk encodes one unified chunk as a complete frame
	// in the provider's stream framing.
	TransformStreamChunk(chunk unified.StreamChunk) (string, error)
}
