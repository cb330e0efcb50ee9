package cloudcode

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/modelgate/modelgate/pkg/unified"
)

func intp(v int) *int { return &v }

func TestIsSupportedRequest(t *testing.T) {
	a := New()
	if !a.IsSupportedRequest(json.RawMessage(`{"model":"gemini-2.5-pro","request":{"contents":[]}}`)) {
		t.Error("wrapped envelope not recognized")
	}
	if a.IsSupportedRequest(json.RawMessage(`{"contents":[]}`)) {
		t.Error("bare body wrongly claimed")
	}
	if a.IsSupportedRequest(json.RawMessage(`{"request":{"contents":[]}}`)) {
		t.Error("envelope without model wrongly claimed")
	}
}

func TestParseEnvelopeErrors(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"missing model", `{"request":{"contents":[]}}`, "model"},
		{"missing request", `{"model":"m"}`, "request"},
		{"missing contents", `{"model":"m","request":{}}`, "request.contents"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Parse(json.RawMessage(tt.raw))
			if !errors.Is(err, unified.ErrInvalidEnvelope) {
				t.Fatalf("err = %v", err)
			}
			var envErr *unified.EnvelopeError
			if !errors.As(err, &envErr) || envErr.Field != tt.field {
				t.Errorf("err = %v, want field %q", err, tt.field)
			}
		})
	}
}

func TestParseCarriesMetadata(t *testing.T) {
	raw := json.RawMessage(`{
		"model": "gemini-2.5-pro",
		"project": "proj-1",
		"user_prompt_id": "p-9",
		"request": {"contents": [{"role": "user", "parts": [{"text": "hi"}]}]}
	}`)

	got, err := New().Parse(raw)
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]string{MetaModel: "gemini-2.5-pro", MetaProject: "proj-1", MetaUserPromptID: "p-9"}
	for k, v := range want {
		if got.Metadata[k] != v {
			t.Errorf("metadata[%q] = %q, want %q", k, got.Metadata[k], v)
		}
	}
	if len(got.Messages) != 1 {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestTransformWrapsAndValidates(t *testing.T) {
	req := &unified.Request{
		Messages: []unified.Message{
			{Role: unified.RoleUser, Content: []unified.ContentPart{unified.TextPart("go")}},
		},
		Tools:    []unified.Tool{{Name: "mcp/search"}},
		Metadata: map[string]string{MetaProject: "proj-1"},
	}

	raw, err := New().Transform(req, "gemini-2.5-pro")
	if err != nil {
		t.Fatal(err)
	}

	var env struct {
		Model   string `json:"model"`
		Project string `json:"project"`
		Request struct {
			Tools []struct {
				FunctionDeclarations []struct {
					Name string `json:"name"`
				} `json:"functionDeclarations"`
			} `json:"tools"`
			ToolConfig struct {
				FunctionCallingConfig struct {
					Mode string `json:"mode"`
				} `json:"functionCallingConfig"`
			} `json:"toolConfig"`
		} `json:"request"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatal(err)
	}
	if env.Model != "gemini-2.5-pro" || env.Project != "proj-1" {
		t.Errorf("envelope = %+v", env)
	}
	if env.Request.ToolConfig.FunctionCallingConfig.Mode != "VALIDATED" {
		t.Errorf("mode = %q", env.Request.ToolConfig.FunctionCallingConfig.Mode)
	}
	if got := env.Request.Tools[0].FunctionDeclarations[0].Name; got != "mcp-2fsearch" {
		t.Errorf("tool name not escaped: %q", got)
	}
}

func TestTransformRoundTripToolNames(t *testing.T) {
	a := New()
	req := &unified.Request{
		Messages: []unified.Message{
			{Role: unified.RoleAssistant, Content: []unified.ContentPart{
				unified.ToolCallPart("c1", "mcp/files-v2/read", json.RawMessage(`{}`)),
			}},
			{Role: unified.RoleTool, Content: []unified.ContentPart{
				unified.ToolResultPart("c1", "mcp/files-v2/read", "ok"),
			}},
		},
	}

	raw, err := a.Transform(req, "gemini-2.5-pro")
	if err != nil {
		t.Fatal(err)
	}
	back, err := a.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}

	call := back.Messages[0].Content[0].ToolCall
	if call == nil || call.Name != "mcp/files-v2/read" {
		t.Errorf("call = %+v", call)
	}
}

func TestSplitTier(t *testing.T) {
	tests := []struct {
		model, base, tier string
	}{
		{"claude-sonnet-low", "claude-sonnet", "low"},
		{"claude-sonnet-medium", "claude-sonnet", "medium"},
		{"claude-sonnet-high", "claude-sonnet", "high"},
		{"gemini-2.5-pro", "gemini-2.5-pro", ""},
	}
	for _, tt := range tests {
		base, tier := splitTier(tt.model)
		if base != tt.base || tier != tt.tier {
			t.Errorf("splitTier(%q) = %q, %q", tt.model, base, tier)
		}
	}
}

func TestTransformTierSuffixSetsBudget(t *testing.T) {
	tests := []struct {
		model      string
		wantBudget int
	}{
		{"claude-sonnet-low", 8192},
		{"claude-sonnet-medium", 16384},
		{"claude-sonnet-high", 32768},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			req := &unified.Request{
				Messages: []unified.Message{
					{Role: unified.RoleUser, Content: []unified.ContentPart{unified.TextPart("x")}},
				},
			}

			raw, err := New().Transform(req, tt.model)
			if err != nil {
				t.Fatal(err)
			}

			var env struct {
				Model   string `json:"model"`
				Request struct {
					GenerationConfig struct {
						ThinkingConfig struct {
							ThinkingBudget int `json:"thinkingBudget"`
						} `json:"thinkingConfig"`
					} `json:"generationConfig"`
				} `json:"request"`
			}
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatal(err)
			}
			if env.Model != "claude-sonnet" {
				t.Errorf("suffix not stripped: %q", env.Model)
			}
			if env.Request.GenerationConfig.ThinkingConfig.ThinkingBudget != tt.wantBudget {
				t.Errorf("budget = %d, want %d", env.Request.GenerationConfig.ThinkingConfig.ThinkingBudget, tt.wantBudget)
			}
		})
	}
}

func TestTransformExplicitBudgetWinsOverTier(t *testing.T) {
	req := &unified.Request{
		Thinking: &unified.ThinkingConfig{Enabled: true, Budget: intp(1000)},
	}
	tuned, base := applyModelDefaults(req, "claude-sonnet-high")
	if base != "claude-sonnet" {
		t.Errorf("base = %q", base)
	}
	if *tuned.Thinking.Budget != 1000 {
		t.Errorf("budget = %d, explicit value must win", *tuned.Thinking.Budget)
	}
}

func TestTransformRaisesMaxTokensAboveBudget(t *testing.T) {
	req := &unified.Request{
		Config:   &unified.GenerationConfig{MaxTokens: intp(4096)},
		Thinking: &unified.ThinkingConfig{Enabled: true, Budget: intp(8192)},
	}

	raw, err := New().Transform(req, "gemini-2.5-pro")
	if err != nil {
		t.Fatal(err)
	}

	var env struct {
		Request struct {
			GenerationConfig struct {
				MaxOutputTokens int `json:"maxOutputTokens"`
			} `json:"generationConfig"`
		} `json:"request"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatal(err)
	}
	if got := env.Request.GenerationConfig.MaxOutputTokens; got != 8192+2048 {
		t.Errorf("maxOutputTokens = %d, want budget+2048", got)
	}
}

func TestTransformThirdPartyThinkingFloor(t *testing.T) {
	req := &unified.Request{
		Config: &unified.GenerationConfig{MaxTokens: intp(1024)},
	}

	raw, err := New().Transform(req, "claude-sonnet-thinking")
	if err != nil {
		t.Fatal(err)
	}

	var env struct {
		Request struct {
			GenerationConfig struct {
				MaxOutputTokens int `json:"maxOutputTokens"`
			} `json:"generationConfig"`
		} `json:"request"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatal(err)
	}
	if got := env.Request.GenerationConfig.MaxOutputTokens; got != minThinkingOutputTokens {
		t.Errorf("maxOutputTokens = %d, want %d", got, minThinkingOutputTokens)
	}
}

func TestTransformGeminiModelNoFloor(t *testing.T) {
	req := &unified.Request{
		Config: &unified.GenerationConfig{MaxTokens: intp(1024)},
	}
	raw, err := New().Transform(req, "gemini-2.5-flash")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "64000") {
		t.Errorf("floor applied to native model: %s", raw)
	}
}

func TestParseResponseUnwraps(t *testing.T) {
	raw := json.RawMessage(`{"response":{"responseId":"r1","candidates":[{"content":{"role":"model","parts":[{"text":"hi"}]},"finishReason":"STOP","index":0}]}}`)

	got, err := New().ParseResponse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "r1" || got.StopReason != unified.StopEndTurn {
		t.Errorf("resp = %+v", got)
	}
	if len(got.Content) != 1 || got.Content[0].Text != "hi" {
		t.Errorf("content = %+v", got.Content)
	}
}

func TestParseResponseBareBodyTolerated(t *testing.T) {
	raw := json.RawMessage(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hi"}]},"finishReason":"STOP","index":0}]}`)
	got, err := New().ParseResponse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Content) != 1 {
		t.Errorf("content = %+v", got.Content)
	}
}

func TestStreamChunkWrappedRoundTrip(t *testing.T) {
	a := New()
	in := unified.StreamChunk{Type: unified.ChunkContent, Delta: "abc"}

	frame, err := a.TransformStreamChunk(in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(frame, `data: {"response":`) {
		t.Errorf("frame not wrapped: %q", frame)
	}

	got := a.ParseStreamChunk(frame)
	if len(got) != 1 || got[0].Delta != "abc" {
		t.Errorf("chunks = %+v", got)
	}
}

func TestStreamToolCallSignatureSentinel(t *testing.T) {
	frame, err := New().TransformStreamChunk(unified.StreamChunk{
		Type:     unified.ChunkToolCall,
		ToolCall: &unified.ToolCallData{ID: "c1", Name: "f", Arguments: json.RawMessage(`{}`), Signature: "short"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(frame, "skip_thought_signature_validator") {
		t.Errorf("sentinel missing from frame: %q", frame)
	}
}
