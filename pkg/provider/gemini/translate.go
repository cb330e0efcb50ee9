package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelgate/modelgate/pkg/pairing"
	"github.com/modelgate/modelgate/pkg/schema"
	"github.com/modelgate/modelgate/pkg/toolname"
	"github.com/modelgate/modelgate/pkg/unified"
)

// Thought signature handling for strict upstreams. A signature shorter
// than MinTrustedSignatureLen is treated as garbage; the sentinel is sent
// in its place because omitting the field entirely fails validation.
const (
	MinTrustedSignatureLen   = 50
	SentinelThoughtSignature = "skip_thought_signature_validator"
)

// Options selects the wire dialect for the shared translation core. The
// zero value is the permissive public dialect; Strict enables the
// validated dialect: rewritten schemas, escaped function names, the
// VALIDATED calling mode, and mandatory thought signatures on tool calls.
type Options struct {
	Strict bool
}

func (o Options) encodeName(name string) string {
	if o.Strict {
		return toolname.Encode(name)
	}
	return name
}

func (o Options) decodeName(name string) string {
	if o.Strict {
		return toolname.Decode(name)
	}
	return name
}

// ---------------------------------------------------------------------------
// Unified -> wire
// ---------------------------------------------------------------------------

// BuildRequest converts a unified request into a generateContent body for
// the given model. History is pairing-repaired first so strict upstream
// validation never sees a dangling tool call or result.
func BuildRequest(req *unified.Request, model string, opts Options) (*Request, error) {
	out := &Request{Model: model}

	if req.System != "" {
		out.SystemInstruction = &Content{
			Parts: []Part{{Text: req.System}},
		}
	}

	for _, msg := range pairing.Repair(req.Messages) {
		content, err := buildContent(msg, opts)
		if err != nil {
			return nil, err
		}
		if len(content.Parts) > 0 {
			out.Contents = append(out.Contents, content)
		}
	}

	for _, tool := range req.Tools {
		decl, err := buildDeclaration(tool, opts)
		if err != nil {
			return nil, err
		}
		if len(out.Tools) == 0 {
			out.Tools = []Tool{{}}
		}
		out.Tools[0].FunctionDeclarations = append(out.Tools[0].FunctionDeclarations, decl)
	}

	out.ToolConfig = buildToolConfig(req, opts)
	out.GenerationConfig = buildGenerationConfig(req)

	return out, nil
}

func buildContent(msg unified.Message, opts Options) (Content, error) {
	content := Content{Role: wireRole(msg.Role)}

	// Strict upstreams validate the thought signature on every tool call.
	// Track the most recent signature seen in this turn and stamp it onto
	// subsequent calls; short or absent signatures get the sentinel.
	signature := ""

	for _, part := range msg.Content {
		switch part.Type {
		case unified.PartText:
			content.Parts = append(content.Parts, Part{Text: part.Text})

		case unified.PartThinking:
			if part.Thinking == nil {
				continue
			}
			if part.Thinking.Signature != "" {
				signature = part.Thinking.Signature
			}
			content.Parts = append(content.Parts, Part{
				Text:             part.Thinking.Text,
				Thought:          true,
				ThoughtSignature: part.Thinking.Signature,
			})

		case unified.PartToolCall:
			if part.ToolCall == nil {
				continue
			}
			if part.ToolCall.Signature != "" {
				signature = part.ToolCall.Signature
			}
			p := Part{FunctionCall: &FunctionCall{
				ID:   part.ToolCall.ID,
				Name: opts.encodeName(part.ToolCall.Name),
				Args: normalizeArgs(part.ToolCall.Arguments),
			}}
			if opts.Strict {
				p.ThoughtSignature = signature
				if len(signature) < MinTrustedSignatureLen {
					p.ThoughtSignature = SentinelThoughtSignature
				}
			}
			content.Parts = append(content.Parts, p)

		case unified.PartToolResult:
			if part.ToolResult == nil {
				continue
			}
			content.Parts = append(content.Parts, Part{FunctionResponse: &FunctionResponse{
				ID:       part.ToolResult.ToolCallID,
				Name:     opts.encodeName(part.ToolResult.Name),
				Response: wrapResult(part.ToolResult.Content),
			}})

		case unified.PartImage:
			if part.Image == nil {
				continue
			}
			if part.Image.URL != "" {
				content.Parts = append(content.Parts, Part{FileData: &FileData{
					MimeType: part.Image.MimeType,
					FileURI:  part.Image.URL,
				}})
				continue
			}
			content.Parts = append(content.Parts, Part{InlineData: &Blob{
				MimeType: part.Image.MimeType,
				Data:     part.Image.Data,
			}})

		default:
			return Content{}, fmt.Errorf("content part type %q has no wire form", part.Type)
		}
	}
	return content, nil
}

func buildDeclaration(tool unified.Tool, opts Options) (FunctionDeclaration, error) {
	params := tool.Parameters
	if opts.Strict && params != nil {
		params = schema.Clean(params)
	}
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return FunctionDeclaration{}, fmt.Errorf("marshal parameters for tool %q: %w", tool.Name, err)
		}
		raw = b
	}
	return FunctionDeclaration{
		Name:        opts.encodeName(tool.Name),
		Description: tool.Description,
		Parameters:  raw,
	}, nil
}

func buildToolConfig(req *unified.Request, opts Options) *ToolConfig {
	choice := req.ToolChoice

	if choice != nil && choice.Mode == unified.ToolChoiceNone {
		return &ToolConfig{FunctionCallingConfig: &FunctionCallingConfig{Mode: ModeNone}}
	}
	if len(req.Tools) == 0 {
		return nil
	}

	fcc := &FunctionCallingConfig{Mode: ModeAuto}
	if opts.Strict {
		fcc.Mode = ModeValidated
	}
	if choice != nil && choice.Mode == unified.ToolChoiceTool && choice.Name != "" {
		if !opts.Strict {
			fcc.Mode = ModeAny
		}
		fcc.AllowedFunctionNames = []string{opts.encodeName(choice.Name)}
	}
	return &ToolConfig{FunctionCallingConfig: fcc}
}

func buildGenerationConfig(req *unified.Request) *GenerationConfig {
	gc := &GenerationConfig{}
	if req.Config != nil {
		gc.Temperature = req.Config.Temperature
		gc.TopP = req.Config.TopP
		gc.TopK = req.Config.TopK
		gc.MaxOutputTokens = req.Config.MaxTokens
		gc.StopSequences = req.Config.StopSequences
	}
	if req.Thinking != nil && req.Thinking.Enabled {
		gc.ThinkingConfig = &ThinkingConfig{
			ThinkingBudget:  req.Thinking.Budget,
			IncludeThoughts: req.Thinking.IncludeThoughts,
		}
	}
	if gc.Temperature == nil && gc.TopP == nil && gc.TopK == nil &&
		gc.MaxOutputTokens == nil && gc.StopSequences == nil && gc.ThinkingConfig == nil {
		return nil
	}
	return gc
}

func wireRole(role unified.Role) string {
	switch role {
	case unified.RoleAssistant:
		return "model"
	default:
		// Tool results travel in user turns on this wire.
		return "user"
	}
}

// normalizeArgs ensures function call args are a JSON object; the wire
// rejects null and empty args.
func normalizeArgs(args json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(args))
	if trimmed == "" || trimmed == "null" {
		return json.RawMessage(`{}`)
	}
	return args
}

// wrapResult boxes a tool result string as the response object the wire
// expects. JSON object content passes through unboxed.
func wrapResult(content string) json.RawMessage {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	b, _ := json.Marshal(map[string]string{"result": content})
	return b
}

// ---------------------------------------------------------------------------
// Wire -> unified
// ---------------------------------------------------------------------------

// ParseRequest converts a generateContent body into unified form.
func ParseRequest(req *Request, opts Options) *unified.Request {
	out := &unified.Request{}

	if req.SystemInstruction != nil {
		var lines []string
		for _, p := range req.SystemInstruction.Parts {
			if p.Text != "" {
				lines = append(lines, p.Text)
			}
		}
		out.System = strings.Join(lines, "\n")
	}

	for _, content := range req.Contents {
		msg := parseContent(content, opts)
		if len(msg.Content) > 0 {
			out.Messages = append(out.Messages, msg)
		}
	}

	for _, tool := range req.Tools {
		for _, decl := range tool.FunctionDeclarations {
			t := unified.Tool{
				Name:        opts.decodeName(decl.Name),
				Description: decl.Description,
			}
			if len(decl.Parameters) > 0 {
				var params map[string]any
				if err := json.Unmarshal(decl.Parameters, &params); err == nil {
					t.Parameters = params
				}
			}
			out.Tools = append(out.Tools, t)
		}
	}

	out.ToolChoice = parseToolConfig(req.ToolConfig, opts)
	parseGenerationConfig(req.GenerationConfig, out)

	return out
}

func parseContent(content Content, opts Options) unified.Message {
	msg := unified.Message{Role: unified.RoleUser}
	if content.Role == "model" {
		msg.Role = unified.RoleAssistant
	}

	hasResult := false
	for _, part := range content.Parts {
		switch {
		case part.FunctionCall != nil:
			id := part.FunctionCall.ID
			if id == "" {
				id = unified.NewCallID()
			}
			msg.Content = append(msg.Content, unified.ContentPart{
				Type: unified.PartToolCall,
				ToolCall: &unified.ToolCallData{
					ID:        id,
					Name:      opts.decodeName(part.FunctionCall.Name),
					Arguments: part.FunctionCall.Args,
					Signature: part.ThoughtSignature,
				},
			})

		case part.FunctionResponse != nil:
			hasResult = true
			msg.Content = append(msg.Content, unified.ContentPart{
				Type: unified.PartToolResult,
				ToolResult: &unified.ToolResultData{
					ToolCallID: part.FunctionResponse.ID,
					Name:       opts.decodeName(part.FunctionResponse.Name),
					Content:    unwrapResult(part.FunctionResponse.Response),
				},
			})

		case part.InlineData != nil:
			msg.Content = append(msg.Content, unified.ContentPart{
				Type:  unified.PartImage,
				Image: &unified.ImageData{MimeType: part.InlineData.MimeType, Data: part.InlineData.Data},
			})

		case part.FileData != nil:
			msg.Content = append(msg.Content, unified.ContentPart{
				Type:  unified.PartImage,
				Image: &unified.ImageData{MimeType: part.FileData.MimeType, URL: part.FileData.FileURI},
			})

		case part.Thought:
			msg.Content = append(msg.Content, unified.ThinkingPart(part.Text, part.ThoughtSignature))

		case part.Text != "":
			msg.Content = append(msg.Content, unified.TextPart(part.Text))
		}
	}

	// A turn carrying function responses is a tool turn regardless of the
	// wire role it arrived under.
	if hasResult && msg.Role == unified.RoleUser {
		msg.Role = unified.RoleTool
	}
	return msg
}

func parseToolConfig(tc *ToolConfig, opts Options) *unified.ToolChoice {
	if tc == nil || tc.FunctionCallingConfig == nil {
		return nil
	}
	fcc := tc.FunctionCallingConfig
	switch fcc.Mode {
	case ModeNone:
		return &unified.ToolChoice{Mode: unified.ToolChoiceNone}
	case ModeAny, ModeValidated:
		if len(fcc.AllowedFunctionNames) == 1 {
			return &unified.ToolChoice{
				Mode: unified.ToolChoiceTool,
				Name: opts.decodeName(fcc.AllowedFunctionNames[0]),
			}
		}
		return &unified.ToolChoice{Mode: unified.ToolChoiceAuto}
	default:
		return &unified.ToolChoice{Mode: unified.ToolChoiceAuto}
	}
}

func parseGenerationConfig(gc *GenerationConfig, out *unified.Request) {
	if gc == nil {
		return
	}
	cfg := &unified.GenerationConfig{
		Temperature:   gc.Temperature,
		TopP:          gc.TopP,
		TopK:          gc.TopK,
		MaxTokens:     gc.MaxOutputTokens,
		StopSequences: gc.StopSequences,
	}
	if cfg.Temperature != nil || cfg.TopP != nil || cfg.TopK != nil ||
		cfg.MaxTokens != nil || cfg.StopSequences != nil {
		out.Config = cfg
	}
	if gc.ThinkingConfig != nil {
		out.Thinking = &unified.ThinkingConfig{
			Enabled:         true,
			Budget:          gc.ThinkingConfig.ThinkingBudget,
			IncludeThoughts: gc.ThinkingConfig.IncludeThoughts,
		}
	}
}

// unwrapResult extracts tool result content from the wire response box.
// A single-key {"result": "..."} box yields the bare string; anything else
// passes through as compact JSON.
func unwrapResult(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var box map[string]json.RawMessage
	if err := json.Unmarshal(raw, &box); err != nil {
		return string(raw)
	}
	if len(box) == 1 {
		if inner, ok := box["result"]; ok {
			var s string
			if err := json.Unmarshal(inner, &s); err == nil {
				return s
			}
			return string(inner)
		}
	}
	return string(raw)
}
