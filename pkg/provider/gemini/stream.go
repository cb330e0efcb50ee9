package gemini

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/modelgate/modelgate/pkg/unified"
)

// DoneSentinel terminates an SSE stream.
const DoneSentinel = "[DONE]"

const dataPrefix = "data:"

// DecodeFrame decodes one SSE frame into zero or more unified chunks.
//
// Upstream proxies occasionally flush two JSON objects into a single
// frame, producing payloads like {...}{...}. Decoding first tries the
// whole payload, then splits at "}{" boundaries, and finally hands the
// payload to the JSON repairer. Frames that survive none of these are
// logged and dropped; a broken frame must never kill the stream.
func DecodeFrame(frame string, opts Options) []unified.StreamChunk {
	payload := strings.TrimSpace(frame)
	payload = strings.TrimSpace(strings.TrimPrefix(payload, dataPrefix))
	if payload == "" || payload == DoneSentinel {
		return nil
	}

	var chunks []unified.StreamChunk
	for _, resp := range decodePayload(payload) {
		chunks = append(chunks, respChunks(resp, opts)...)
	}
	return chunks
}

// decodePayload parses a frame payload into one or more response objects.
func decodePayload(payload string) []*Response {
	if resp := tryParse(payload); resp != nil {
		return []*Response{resp}
	}

	if parts := splitConcatenated(payload); parts != nil {
		return parts
	}

	repaired, err := jsonrepair.JSONRepair(payload)
	if err == nil {
		if resp := tryParse(repaired); resp != nil {
			slog.Debug("recovered stream frame via repair", "payload_len", len(payload))
			return []*Response{resp}
		}
	}

	slog.Warn("dropping undecodable stream frame", "payload_len", len(payload))
	return nil
}

// tryParse parses one response object, transparently unwrapping the
// {"response": {...}} envelope some upstream channels put around frames.
func tryParse(payload string) *Response {
	var wrapper struct {
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal([]byte(payload), &wrapper); err == nil && len(wrapper.Response) > 0 {
		payload = string(wrapper.Response)
	}
	var resp Response
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil
	}
	return &resp
}

// splitConcatenated tries every "}{" boundary as a cut point between two
// complete objects and recurses on the remainder, so three or more glued
// objects also come apart.
func splitConcatenated(payload string) []*Response {
	for i := 0; i+1 < len(payload); i++ {
		if payload[i] != '}' || payload[i+1] != '{' {
			continue
		}
		head := tryParse(payload[:i+1])
		if head == nil {
			continue
		}
		rest := payload[i+1:]
		if tail := tryParse(rest); tail != nil {
			return []*Response{head, tail}
		}
		if tails := splitConcatenated(rest); tails != nil {
			return append([]*Response{head}, tails...)
		}
	}
	return nil
}

// respChunks flattens one response object into unified chunks: part
// chunks in wire order, then the finish/usage chunk.
func respChunks(resp *Response, opts Options) []unified.StreamChunk {
	if resp.Error != nil {
		return []unified.StreamChunk{{
			Type:    unified.ChunkError,
			Message: resp.Error.Message,
		}}
	}

	var chunks []unified.StreamChunk

	if len(resp.Candidates) == 0 {
		if usage := parseUsage(resp.UsageMetadata); usage != nil {
			chunks = append(chunks, unified.StreamChunk{Type: unified.ChunkUsage, Usage: usage})
		}
		return chunks
	}

	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if chunk, ok := partChunk(part, opts); ok {
				chunks = append(chunks, chunk)
			}
		}
	}

	if cand.FinishReason != "" {
		chunks = append(chunks, unified.StreamChunk{
			Type:       unified.ChunkDone,
			StopReason: StopReason(cand.FinishReason),
			Usage:      parseUsage(resp.UsageMetadata),
		})
	} else if resp.UsageMetadata != nil {
		chunks = append(chunks, unified.StreamChunk{
			Type:  unified.ChunkUsage,
			Usage: parseUsage(resp.UsageMetadata),
		})
	}
	return chunks
}

func partChunk(part Part, opts Options) (unified.StreamChunk, bool) {
	switch {
	case part.FunctionCall != nil:
		id := part.FunctionCall.ID
		if id == "" {
			id = unified.NewCallID()
		}
		name := opts.decodeName(part.FunctionCall.Name)
		return unified.StreamChunk{
			Type: unified.ChunkToolCall,
			ToolCall: &unified.ToolCallData{
				ID:        id,
				Name:      name,
				Arguments: aliasCommandArg(name, part.FunctionCall.Args),
				Signature: part.ThoughtSignature,
			},
		}, true

	case part.Thought:
		return unified.StreamChunk{
			Type:     unified.ChunkThinking,
			Thinking: &unified.ThinkingData{Text: part.Text, Signature: part.ThoughtSignature},
		}, true

	case part.Text != "":
		return unified.StreamChunk{Type: unified.ChunkContent, Delta: part.Text}, true
	}
	return unified.StreamChunk{}, false
}

// bashFamily lists shell-execution tools whose clients disagree on the
// argument key: some expect "command", some "cmd".
var bashFamily = map[string]bool{
	"bash":              true,
	"shell":             true,
	"run_shell_command": true,
}

// aliasCommandArg duplicates a bash-family tool's "command" argument
// under the "cmd" key when cmd is absent, so either client dialect finds
// the value it expects.
func aliasCommandArg(name string, args json.RawMessage) json.RawMessage {
	base := name
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if !bashFamily[strings.ToLower(base)] {
		return args
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(args, &obj); err != nil || obj == nil {
		return args
	}
	command, ok := obj["command"]
	if !ok {
		return args
	}
	if _, ok := obj["cmd"]; ok {
		return args
	}
	obj["cmd"] = command
	out, err := json.Marshal(obj)
	if err != nil {
		return args
	}
	return out
}

// EncodeFrame encodes one unified chunk as a complete SSE frame: the
// full response envelope under a data: prefix, terminated by a blank
// line. Done chunks are followed by the [DONE] sentinel frame, emitted
// separately by the transport.
func EncodeFrame(chunk unified.StreamChunk, opts Options) (string, error) {
	resp := ChunkResponse(chunk, opts)
	b, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return dataPrefix + " " + string(b) + "\n\n", nil
}

// ChunkResponse builds the response object for one unified chunk. Split
// out from EncodeFrame for dialects that wrap the object before framing.
func ChunkResponse(chunk unified.StreamChunk, opts Options) Response {
	resp := Response{}

	switch chunk.Type {
	case unified.ChunkContent:
		resp.Candidates = []Candidate{{
			Content: &Content{Role: "model", Parts: []Part{{Text: chunk.Delta}}},
		}}

	case unified.ChunkThinking:
		part := Part{Thought: true}
		if chunk.Thinking != nil {
			part.Text = chunk.Thinking.Text
			part.ThoughtSignature = chunk.Thinking.Signature
		}
		resp.Candidates = []Candidate{{
			Content: &Content{Role: "model", Parts: []Part{part}},
		}}

	case unified.ChunkToolCall:
		part := Part{}
		if chunk.ToolCall != nil {
			part.FunctionCall = &FunctionCall{
				ID:   chunk.ToolCall.ID,
				Name: opts.encodeName(chunk.ToolCall.Name),
				Args: normalizeArgs(chunk.ToolCall.Arguments),
			}
			if opts.Strict {
				part.ThoughtSignature = chunk.ToolCall.Signature
				if len(part.ThoughtSignature) < MinTrustedSignatureLen {
					part.ThoughtSignature = SentinelThoughtSignature
				}
			}
		}
		resp.Candidates = []Candidate{{
			Content: &Content{Role: "model", Parts: []Part{part}},
		}}

	case unified.ChunkUsage:
		resp.UsageMetadata = buildUsage(chunk.Usage)

	case unified.ChunkDone:
		resp.Candidates = []Candidate{{
			Content:      &Content{Role: "model", Parts: []Part{}},
			FinishReason: FinishReason(chunk.StopReason),
		}}
		resp.UsageMetadata = buildUsage(chunk.Usage)

	case unified.ChunkError:
		resp.Error = &ErrorStatus{Message: chunk.Message, Status: "INTERNAL"}
	}

	return resp
}
