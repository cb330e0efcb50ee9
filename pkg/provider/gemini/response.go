package gemini

import (
	"github.com/modelgate/modelgate/pkg/unified"
)

// FinishReason maps a unified stop reason to the upstream enum. Reasons
// with no distinct upstream equivalent collapse into STOP; errors are
// reported as OTHER.
func FinishReason(reason unified.StopReason) string {
	switch reason {
	case unified.StopMaxTokens:
		return FinishMaxTokens
	case unified.StopContentFilter:
		return FinishSafety
	case unified.StopError:
		return FinishOther
	default:
		return FinishStop
	}
}

// StopReason maps an upstream finish reason to unified form. RECITATION
// is an error by fiat: upstream refuses to continue the completion, which
// callers must not mistake for a clean stop. Unrecognized reasons map to
// StopNone so new upstream enum values degrade gracefully.
func StopReason(finish string) unified.StopReason {
	switch finish {
	case FinishStop:
		return unified.StopEndTurn
	case FinishMaxTokens:
		return unified.StopMaxTokens
	case FinishSafety:
		return unified.StopContentFilter
	case FinishOther, FinishRecitation:
		return unified.StopError
	default:
		return unified.StopNone
	}
}

// ParseResponse converts a generateContent response into unified form.
// Only the first candidate is considered.
func ParseResponse(resp *Response, opts Options) *unified.Response {
	out := &unified.Response{ID: resp.ResponseID}
	if out.ID == "" {
		out.ID = unified.NewResponseID()
	}

	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		if cand.Content != nil {
			msg := parseContent(*cand.Content, opts)
			out.Content = msg.Content
		}
		out.StopReason = StopReason(cand.FinishReason)
	}

	hasToolCall := false
	for _, part := range out.Content {
		if part.Type == unified.PartThinking && part.Thinking != nil {
			out.Thinking = append(out.Thinking, *part.Thinking)
		}
		if part.Type == unified.PartToolCall {
			hasToolCall = true
		}
	}
	if hasToolCall && out.StopReason == unified.StopEndTurn {
		out.StopReason = unified.StopToolUse
	}

	out.Usage = parseUsage(resp.UsageMetadata)
	return out
}

// BuildResponse converts a unified response into a generateContent
// response with a single candidate.
func BuildResponse(resp *unified.Response, opts Options) (*Response, error) {
	content, err := buildContent(unified.Message{
		Role:    unified.RoleAssistant,
		Content: resp.Content,
	}, opts)
	if err != nil {
		return nil, err
	}

	out := &Response{
		ResponseID: resp.ID,
		Candidates: []Candidate{{
			Content:      &Content{Role: "model", Parts: content.Parts},
			FinishReason: FinishReason(resp.StopReason),
		}},
		UsageMetadata: buildUsage(resp.Usage),
	}
	return out, nil
}

func parseUsage(um *UsageMetadata) *unified.Usage {
	if um == nil {
		return nil
	}
	return &unified.Usage{
		InputTokens:    um.PromptTokenCount,
		OutputTokens:   um.CandidatesTokenCount,
		TotalTokens:    um.TotalTokenCount,
		ThinkingTokens: um.ThoughtsTokenCount,
		CachedTokens:   um.CachedContentTokenCount,
	}
}

func buildUsage(u *unified.Usage) *UsageMetadata {
	if u == nil {
		return nil
	}
	total := u.TotalTokens
	if total == 0 {
		total = u.InputTokens + u.OutputTokens
	}
	return &UsageMetadata{
		PromptTokenCount:        u.InputTokens,
		CandidatesTokenCount:    u.OutputTokens,
		TotalTokenCount:         total,
		ThoughtsTokenCount:      u.ThinkingTokens,
		CachedContentTokenCount: u.CachedTokens,
	}
}
