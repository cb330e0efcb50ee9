// Package cloudcode implements the strict wrapped dialect of the
// generateContent wire format: requests travel inside a {model, project,
// request} envelope, responses come back under a response key, and the
// upstream validator enforces the restricted schema dialect, escaped
// function names, the VALIDATED calling mode, and thought signatures on
// every tool call. The body translation itself is the shared gemini core
// running with strict options.
package cloudcode

import (
	"encoding/json"

	"github.com/modelgate/modelgate/pkg/provider"
	"github.com/modelgate/modelgate/pkg/provider/gemini"
	"github.com/modelgate/modelgate/pkg/unified"
)

// Name is the provider identifier for the wrapped strict dialect.
const Name = "cloudcode"

// Metadata keys carried through unified.Request.Metadata.
const (
	MetaModel        = "model"
	MetaProject      = "project"
	MetaUserPromptID = "user_prompt_id"
)

var strict = gemini.Options{Strict: true}

// envelope is the outer request wrapper.
type envelope struct {
	Model        string          `json:"model"`
	Project      string          `json:"project,omitempty"`
	UserPromptID string          `json:"user_prompt_id,omitempty"`
	Request      json.RawMessage `json:"request"`
}

// responseEnvelope is the outer response wrapper.
type responseEnvelope struct {
	Response *gemini.Response `json:"response"`
}

// Adapter is the strict wrapped-dialect adapter.
type Adapter struct{}

var _ provider.Adapter = (*Adapter)(nil)

// New creates the cloudcode adapter.
func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string { return Name }

// IsSupportedRequest recognizes the wrapped envelope: a top-level
// request object next to a model field.
func (a *Adapter) IsSupportedRequest(raw json.RawMessage) bool {
	var probe struct {
		Model   string          `json:"model"`
		Request json.RawMessage `json:"request"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.Model != "" && len(probe.Request) > 0
}

// IsSupportedModel accepts any model name, including tier-suffixed
// variants. Register this adapter last; it is the catch-all channel.
func (a *Adapter) IsSupportedModel(model string) bool {
	return model != ""
}

// Parse unwraps the envelope and converts the inner body into unified
// form. The model, project, and prompt id ride along as metadata.
func (a *Adapter) Parse(raw json.RawMessage) (*unified.Request, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, unified.NewEnvelopeError(Name, "", err.Error())
	}
	if env.Model == "" {
		return nil, unified.NewEnvelopeError(Name, "model", "missing")
	}
	if len(env.Request) == 0 {
		return nil, unified.NewEnvelopeError(Name, "request", "missing")
	}

	var body gemini.Request
	if err := json.Unmarshal(env.Request, &body); err != nil {
		return nil, unified.NewEnvelopeError(Name, "request", err.Error())
	}
	if body.Contents == nil {
		return nil, unified.NewEnvelopeError(Name, "request.contents", "missing")
	}

	out := gemini.ParseRequest(&body, strict)
	out.Metadata = map[string]string{MetaModel: env.Model}
	if env.Project != "" {
		out.Metadata[MetaProject] = env.Project
	}
	if env.UserPromptID != "" {
		out.Metadata[MetaUserPromptID] = env.UserPromptID
	}
	return out, nil
}

// Transform converts a unified request into the wrapped envelope for the
// given model, applying the model-dependent thinking and output-token
// tuning before wrapping.
func (a *Adapter) Transform(req *unified.Request, model string) (json.RawMessage, error) {
	tuned, upstreamModel := applyModelDefaults(req, model)

	body, err := gemini.BuildRequest(tuned, "", strict)
	if err != nil {
		return nil, err
	}
	tuneGenerationConfig(body, upstreamModel, model)

	inner, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	env := envelope{
		Model:        upstreamModel,
		Project:      req.Metadata[MetaProject],
		UserPromptID: req.Metadata[MetaUserPromptID],
		Request:      inner,
	}
	return json.Marshal(env)
}

// ParseResponse unwraps the response envelope and converts the inner
// body. Bare unwrapped bodies are tolerated.
func (a *Adapter) ParseResponse(raw json.RawMessage) (*unified.Response, error) {
	var env responseEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Response != nil {
		return gemini.ParseResponse(env.Response, strict), nil
	}

	var resp gemini.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, unified.NewEnvelopeError(Name, "response", err.Error())
	}
	return gemini.ParseResponse(&resp, strict), nil
}

// TransformResponse converts a unified response into the wrapped form.
func (a *Adapter) TransformResponse(resp *unified.Response) (json.RawMessage, error) {
	wire, err := gemini.BuildResponse(resp, strict)
	if err != nil {
		return nil, err
	}
	return json.Marshal(responseEnvelope{Response: wire})
}

// ParseStreamChunk decodes one SSE frame. The shared decoder already
// unwraps per-frame response envelopes.
func (a *Adapter) ParseStreamChunk(frame string) []unified.StreamChunk {
	return gemini.DecodeFrame(frame, strict)
}

// TransformStreamChunk encodes one unified chunk as a wrapped SSE frame.
func (a *Adapter) TransformStreamChunk(chunk unified.StreamChunk) (string, error) {
	resp := gemini.ChunkResponse(chunk, strict)
	b, err := json.Marshal(responseEnvelope{Response: &resp})
	if err != nil {
		return "", err
	}
	return "data: " + string(b) + "\n\n", nil
}
