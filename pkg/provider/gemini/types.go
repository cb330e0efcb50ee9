package gemini

import "encoding/json"

// ---------------------------------------------------------------------------
// Request wire types (generateContent body)
// ---------------------------------------------------------------------------

// Request is the generateContent request body. Model is carried in the
// body here rather than the URL path so the translation layer stays
// transport-agnostic.
type Request struct {
	Model             string            `json:"model,omitempty"`
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	Tools             []Tool            `json:"tools,omitempty"`
	ToolConfig        *ToolConfig       `json:"toolConfig,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Content is one conversation turn: a role plus ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is the tagged union of content kinds. At most one of the pointer
// fields is set; Text with Thought=true marks reasoning output.
type Part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	ThoughtSignature string            `json:"thoughtSignature,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
	InlineData       *Blob             `json:"inlineData,omitempty"`
	FileData         *FileData         `json:"fileData,omitempty"`
}

// FunctionCall is a model-initiated tool invocation. Args stays raw JSON
// so argument key order survives translation.
type FunctionCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// FunctionResponse returns a tool result to the model.
type FunctionResponse struct {
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response,omitempty"`
}

// Blob holds inline base64 media data.
type Blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FileData references media by URI instead of inlining it.
type FileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

// Tool wraps function declarations offered to the model.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

// FunctionDeclaration describes one callable function.
type FunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolConfig controls tool invocation.
type ToolConfig struct {
	FunctionCallingConfig *FunctionCallingConfig `json:"functionCallingConfig,omitempty"`
}

// Function calling modes. ModeValidated is the strict dialect that rejects
// schemas and identifiers outside its narrow grammar.
const (
	ModeAuto      = "AUTO"
	ModeAny       = "ANY"
	ModeNone      = "NONE"
	ModeValidated = "VALIDATED"
)

// FunctionCallingConfig selects the invocation mode and, for pinned
// tools, the allow-list of callable function names.
type FunctionCallingConfig struct {
	Mode                 string   `json:"mode,omitempty"`
	AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
}

// GenerationConfig holds sampling and length parameters.
type GenerationConfig struct {
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"topP,omitempty"`
	TopK            *int            `json:"topK,omitempty"`
	MaxOutputTokens *int            `json:"maxOutputTokens,omitempty"`
	StopSequences   []string        `json:"stopSequences,omitempty"`
	ThinkingConfig  *ThinkingConfig `json:"thinkingConfig,omitempty"`
}

// ThinkingConfig requests reasoning output. The wire dialect is not
// consistent across callers: both camelCase and snake_case key forms
// appear in the wild, so unmarshaling accepts either and marshaling
// always emits camelCase.
type ThinkingConfig struct {
	ThinkingBudget  *int `json:"thinkingBudget,omitempty"`
	IncludeThoughts bool `json:"includeThoughts,omitempty"`
}

// UnmarshalJSON accepts both the camelCase and snake_case dialects.
func (tc *ThinkingConfig) UnmarshalJSON(data []byte) error {
	var w struct {
		ThinkingBudget       *int `json:"thinkingBudget"`
		IncludeThoughts      bool `json:"includeThoughts"`
		ThinkingBudgetSnake  *int `json:"thinking_budget"`
		IncludeThoughtsSnake bool `json:"include_thoughts"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	tc.ThinkingBudget = w.ThinkingBudget
	if tc.ThinkingBudget == nil {
		tc.ThinkingBudget = w.ThinkingBudgetSnake
	}
	tc.IncludeThoughts = w.IncludeThoughts || w.IncludeThoughtsSnake
	return nil
}

// ---------------------------------------------------------------------------
// Response wire types
// ---------------------------------------------------------------------------

// Response is the generateContent response body. Streaming frames carry
// the same shape, one incremental Response per frame.
type Response struct {
	ResponseID    string         `json:"responseId,omitempty"`
	Candidates    []Candidate    `json:"candidates,omitempty"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
	Error         *ErrorStatus   `json:"error,omitempty"`
}

// Candidate is one generated completion.
type Candidate struct {
	Content      *Content `json:"content,omitempty"`
	FinishReason string   `json:"finishReason,omitempty"`
	Index        int      `json:"index"`
}

// UsageMetadata reports token accounting.
type UsageMetadata struct {
	PromptTokenCount        int `json:"promptTokenCount"`
	CandidatesTokenCount    int `json:"candidatesTokenCount"`
	TotalTokenCount         int `json:"totalTokenCount"`
	ThoughtsTokenCount      int `json:"thoughtsTokenCount,omitempty"`
	CachedContentTokenCount int `json:"cachedContentTokenCount,omitempty"`
}

// ErrorStatus is the error object upstream embeds in failed frames.
type ErrorStatus struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

// Upstream finish reasons.
const (
	FinishStop       = "STOP"
	FinishMaxTokens  = "MAX_TOKENS"
	FinishSafety     = "SAFETY"
	FinishRecitation = "RECITATION"
	FinishOther      = "OTHER"
)
