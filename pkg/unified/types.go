package unified

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Roles and content parts
// ---------------------------------------------------------------------------

// Role identifies the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType discriminates the ContentPart variants.
type PartType string

const (
	PartText       PartType = "text"
	PartImage      PartType = "image"
	PartToolCall   PartType = "tool_call"
	PartToolResult PartType = "tool_result"
	PartThinking   PartType = "thinking"
)

// ContentPart is one element of a message's ordered content sequence.
// Exactly one of the variant fields is populated, selected by Type.
type ContentPart struct {
	Type PartType

	// Text is set for PartText.
	Text string

	// Image is set for PartImage.
	Image *ImageData

	// ToolCall is set for PartToolCall.
	ToolCall *ToolCallData

	// ToolResult is set for PartToolResult.
	ToolResult *ToolResultData

	// Thinking is set for PartThinking.
	Thinking *ThinkingData
}

// ImageData holds image content as either inline base64 data or a URL.
type ImageData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data,omitempty"`
	URL      string `json:"url,omitempty"`
}

// ToolCallData describes a model-initiated tool invocation. Arguments are
// kept as raw JSON so key order survives the round trip through adapters.
type ToolCallData struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`

	// Signature carries the provider-issued reasoning signature attached
	// to this call, when the target provider requires one.
	Signature string `json:"signature,omitempty"`
}

// ToolResultData carries the result of a previously issued tool call.
// Name records the function name the result was declared for; the pairing
// repair pass uses it to re-home orphaned results.
type ToolResultData struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name,omitempty"`
	Content    string `json:"content"`
}

// ThinkingData holds a model's exposed intermediate reasoning text plus an
// opaque provider-issued signature token. The signature is not portable
// across providers.
type ThinkingData struct {
	Text      string `json:"text"`
	Signature string `json:"signature,omitempty"`
}

// MarshalJSON serializes a ContentPart in the flat tagged wire form:
// the type tag plus the variant's fields at the top level.
func (p ContentPart) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case PartText:
		return json.Marshal(struct {
			Type PartType `json:"type"`
			Text string   `json:"text"`
		}{p.Type, p.Text})
	case PartImage:
		return json.Marshal(struct {
			Type  PartType   `json:"type"`
			Image *ImageData `json:"image"`
		}{p.Type, p.Image})
	case PartToolCall:
		return json.Marshal(struct {
			Type     PartType      `json:"type"`
			ToolCall *ToolCallData `json:"tool_call"`
		}{p.Type, p.ToolCall})
	case PartToolResult:
		return json.Marshal(struct {
			Type       PartType        `json:"type"`
			ToolResult *ToolResultData `json:"tool_result"`
		}{p.Type, p.ToolResult})
	case PartThinking:
		return json.Marshal(struct {
			Type     PartType      `json:"type"`
			Thinking *ThinkingData `json:"thinking"`
		}{p.Type, p.Thinking})
	default:
		return nil, fmt.Errorf("unknown content part type %q", p.Type)
	}
}

// UnmarshalJSON deserializes a ContentPart from the flat tagged wire form.
func (p *ContentPart) UnmarshalJSON(data []byte) error {
	var w struct {
		Type       PartType        `json:"type"`
		Text       string          `json:"text"`
		Image      *ImageData      `json:"image"`
		ToolCall   *ToolCallData   `json:"tool_call"`
		ToolResult *ToolResultData `json:"tool_result"`
		Thinking   *ThinkingData   `json:"thinking"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Type = w.Type
	p.Text = w.Text
	p.Image = w.Image
	p.ToolCall = w.ToolCall
	p.ToolResult = w.ToolResult
	p.Thinking = w.Thinking
	return nil
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ToolCallPart builds a tool_call content part.
func ToolCallPart(id, name string, args json.RawMessage) ContentPart {
	return ContentPart{Type: PartToolCall, ToolCall: &ToolCallData{ID: id, Name: name, Arguments: args}}
}

// ToolResultPart builds a tool_result content part.
func ToolResultPart(callID, name, content string) ContentPart {
	return ContentPart{Type: PartToolResult, ToolResult: &ToolResultData{ToolCallID: callID, Name: name, Content: content}}
}

// ThinkingPart builds a thinking content part.
func ThinkingPart(text, signature string) ContentPart {
	return ContentPart{Type: PartThinking, Thinking: &ThinkingData{Text: text, Signature: signature}}
}

// ---------------------------------------------------------------------------
// Messages, tools, and requests
// ---------------------------------------------------------------------------

// Message is one turn of conversation history. Part order is significant
// and preserved end-to-end.
type Message struct {
	Role    Role          `json:"role"`
	Content []ContentPart `json:"content"`
}

// Tool describes a tool the model may invoke. Parameters is a
// JSON-Schema-like tree; it is not restricted to any one dialect at this
// layer. Strict-mode providers run it through the schema rewriter during
// transform.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolChoiceMode selects the tool invocation strategy.
type ToolChoiceMode string

const (
	ToolChoiceAuto ToolChoiceMode = "auto"
	ToolChoiceNone ToolChoiceMode = "none"
	ToolChoiceTool ToolChoiceMode = "tool"
)

// ToolChoice selects how the model may use tools. When Mode is
// ToolChoiceTool, Name pins the single tool the model must call.
type ToolChoice struct {
	Mode ToolChoiceMode `json:"mode"`
	Name string         `json:"name,omitempty"`
}

// GenerationConfig holds sampling and length parameters. Pointer fields
// distinguish "unset" from zero values.
type GenerationConfig struct {
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

// ThinkingLevel is a coarse reasoning-effort tier.
type ThinkingLevel string

const (
	ThinkingLow    ThinkingLevel = "low"
	ThinkingMedium ThinkingLevel = "medium"
	ThinkingHigh   ThinkingLevel = "high"
)

// ThinkingConfig requests reasoning output from the model.
type ThinkingConfig struct {
	Enabled         bool          `json:"enabled"`
	Budget          *int          `json:"budget,omitempty"`
	Level           ThinkingLevel `json:"level,omitempty"`
	IncludeThoughts bool          `json:"include_thoughts,omitempty"`
}

// Request is the canonical inbound request all adapters transform.
// Metadata carries opaque provider-specific pass-through fields (project
// id, request id, session id, resolved model name); the core never
// validates its keys.
type Request struct {
	Messages   []Message         `json:"messages"`
	System     string            `json:"system,omitempty"`
	Tools      []Tool            `json:"tools,omitempty"`
	ToolChoice *ToolChoice       `json:"tool_choice,omitempty"`
	Config     *GenerationConfig `json:"config,omitempty"`
	Thinking   *ThinkingConfig   `json:"thinking,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

// StopReason states why the model stopped producing output. The empty
// string means the upstream gave no recognizable reason.
type StopReason string

const (
	StopEndTurn       StopReason = "end_turn"
	StopMaxTokens     StopReason = "max_tokens"
	StopContentFilter StopReason = "content_filter"
	StopToolUse       StopReason = "tool_use"
	StopSequence      StopReason = "stop_sequence"
	StopError         StopReason = "error"
	StopNone          StopReason = ""
)

// Usage holds token accounting for one request/response exchange.
type Usage struct {
	InputTokens    int `json:"input_tokens"`
	OutputTokens   int `json:"output_tokens"`
	TotalTokens    int `json:"total_tokens"`
	ThinkingTokens int `json:"thinking_tokens,omitempty"`
	CachedTokens   int `json:"cached_tokens,omitempty"`
}

// Response is the canonical non-streaming result. Thinking collects the
// reasoning blocks in emission order; the same blocks also appear as
// thinking parts inside Content so part ordering is preserved.
type Response struct {
	ID         string         `json:"id"`
	Content    []ContentPart  `json:"content"`
	StopReason StopReason     `json:"stop_reason,omitempty"`
	Usage      *Usage         `json:"usage,omitempty"`
	Thinking   []ThinkingData `json:"thinking,omitempty"`
}

// ---------------------------------------------------------------------------
// Stream chunks
// ---------------------------------------------------------------------------

// ChunkType discriminates the StreamChunk variants.
type ChunkType string

const (
	ChunkContent  ChunkType = "content"
	ChunkThinking ChunkType = "thinking"
	ChunkToolCall ChunkType = "tool_call"
	ChunkUsage    ChunkType = "usage"
	ChunkDone     ChunkType = "done"
	ChunkError    ChunkType = "error"
)

// StreamChunk is one incremental streaming event in canonical form. A
// single upstream frame may decode to zero, one, or many chunks.
type StreamChunk struct {
	Type ChunkType `json:"type"`

	// Delta is the incremental text for ChunkContent.
	Delta string `json:"delta,omitempty"`

	// Thinking is the incremental reasoning delta for ChunkThinking.
	Thinking *ThinkingData `json:"thinking,omitempty"`

	// ToolCall carries a partial or complete invocation for ChunkToolCall.
	ToolCall *ToolCallData `json:"tool_call,omitempty"`

	// Usage is set for ChunkUsage and optionally on ChunkDone.
	Usage *Usage `json:"usage,omitempty"`

	// StopReason is set for ChunkDone.
	StopReason StopReason `json:"stop_reason,omitempty"`

	// Message is the diagnostic text for ChunkError.
	Message string `json:"message,omitempty"`
}
