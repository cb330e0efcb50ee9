// Package gemini translates between the unified representation and the
// Gemini-style generateContent wire format, including the streaming SSE
// codec. The translation core is shared: the permissive public dialect
// lives here, and the strict validated dialect is selected through
// Options by the cloudcode adapter.
package gemini

import (
	"encoding/json"

	"github.com/modelgate/modelgate/pkg/provider"
	"github.com/modelgate/modelgate/pkg/unified"
)

// Name is the provider identifier for the public dialect.
const Name = "gemini"

// Adapter is the permissive public-dialect adapter.
type Adapter struct {
	opts Options
}

var _ provider.Adapter = (*Adapter)(nil)

// New creates the gemini adapter.
func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string { return Name }

// IsSupportedRequest recognizes a bare generateContent body: a JSON
// object carrying a contents array at the top level.
func (a *Adapter) IsSupportedRequest(raw json.RawMessage) bool {
	var probe struct {
		Contents json.RawMessage `json:"contents"`
		Request  json.RawMessage `json:"request"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	// Wrapped envelopes belong to the cloudcode adapter.
	return len(probe.Contents) > 0 && len(probe.Request) == 0
}

func (a *Adapter) IsSupportedModel(model string) bool {
	return len(model) > 7 && model[:7] == "gemini-"
}

// Parse converts a raw generateContent body into unified form.
func (a *Adapter) Parse(raw json.RawMessage) (*unified.Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, unified.NewEnvelopeError(Name, "", err.Error())
	}
	if req.Contents == nil {
		return nil, unified.NewEnvelopeError(Name, "contents", "missing")
	}

	out := ParseRequest(&req, a.opts)
	if req.Model != "" {
		if out.Metadata == nil {
			out.Metadata = make(map[string]string)
		}
		out.Metadata["model"] = req.Model
	}
	return out, nil
}

// Transform converts a unified request into a generateContent body.
func (a *Adapter) Transform(req *unified.Request, model string) (json.RawMessage, error) {
	wire, err := BuildRequest(req, model, a.opts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}

// ParseResponse converts a raw generateContent response into unified form.
func (a *Adapter) ParseResponse(raw json.RawMessage) (*unified.Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, unified.NewEnvelopeError(Name, "", err.Error())
	}
	return ParseResponse(&resp, a.opts), nil
}

// TransformResponse converts a unified response into a generateContent
// response body.
func (a *Adapter) TransformResponse(resp *unified.Response) (json.RawMessage, error) {
	wire, err := BuildResponse(resp, a.opts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}

// ParseStreamChunk decodes one SSE frame into unified chunks.
func (a *Adapter) ParseStreamChunk(frame string) []unified.StreamChunk {
	return DecodeFrame(frame, a.opts)
}

// TransformStreamChunk encodes one unified chunk as an SSE frame.
func (a *Adapter) TransformStreamChunk(chunk unified.StreamChunk) (string, error) {
	return EncodeFrame(chunk, a.opts)
}
