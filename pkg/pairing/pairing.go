// Package pairing reconstructs valid tool-call/tool-result correspondence
// in conversation history.
//
// Transport and history truncation can desynchronize tool turns: a result
// may arrive with no matching call, a call may never receive its result, or
// results may be duplicated. Strict upstream validation rejects such
// histories outright. Repair walks the history once, collecting results
// into a pool and resolving call groups against it, then patches whatever
// is left: exact id matches first, then orphan repurposing by declared
// function name, then arrival order, and finally synthesized placeholders
// so every call is answered. Repair never fails; it always produces a
// structurally valid, fully paired history.
package pairing

import (
	"log/slog"

	"github.com/modelgate/modelgate/pkg/unified"
)

// LostResultContent is the placeholder body synthesized for a tool call
// whose result is unrecoverable from the history.
const LostResultContent = "Tool result was lost from the conversation history. Treat this call as failed and retry if the result is still needed."

// group records the tool-call ids emitted by one assistant turn, with the
// output index where their result turn belongs.
type group struct {
	ids   []string
	names []string
	pos   int
}

// pool collects tool results by call id, preserving arrival order for
// orphan repurposing. First occurrence wins on duplicate ids.
type pool struct {
	byID  map[string]unified.ToolResultData
	order []string
}

func newPool() *pool {
	return &pool{byID: make(map[string]unified.ToolResultData)}
}

func (p *pool) add(r unified.ToolResultData) {
	if _, exists := p.byID[r.ToolCallID]; exists {
		slog.Debug("dropping duplicate tool result", "tool_call_id", r.ToolCallID)
		return
	}
	p.byID[r.ToolCallID] = r
	p.order = append(p.order, r.ToolCallID)
}

func (p *pool) has(id string) bool {
	_, ok := p.byID[id]
	return ok
}

func (p *pool) take(id string) (unified.ToolResultData, bool) {
	r, ok := p.byID[id]
	if !ok {
		return unified.ToolResultData{}, false
	}
	delete(p.byID, id)
	for i, o := range p.order {
		if o == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return r, true
}

// takeByName removes and returns the earliest-arrived result declared for
// the given function name.
func (p *pool) takeByName(name string) (unified.ToolResultData, bool) {
	if name == "" {
		return unified.ToolResultData{}, false
	}
	for _, id := range p.order {
		if p.byID[id].Name == name {
			return p.take(id)
		}
	}
	return unified.ToolResultData{}, false
}

// takeOldest removes and returns the earliest-arrived result, if any.
func (p *pool) takeOldest() (unified.ToolResultData, bool) {
	if len(p.order) == 0 {
		return unified.ToolResultData{}, false
	}
	return p.take(p.order[0])
}

func (p *pool) size() int {
	return len(p.order)
}

// Repair returns a corrected copy of messages in which every tool call is
// followed by exactly one matching tool result. The input is not mutated.
func Repair(messages []unified.Message) []unified.Message {
	out := make([]unified.Message, 0, len(messages))
	var groups []group
	results := newPool()

	for _, msg := range messages {
		resultParts, rest := splitResults(msg)

		if len(resultParts) == 0 {
			appended, g := appendCallTurn(out, msg)
			out = appended
			if g != nil {
				groups = append(groups, *g)
			}
			continue
		}

		// Result-bearing turn: pool every result first, then give the most
		// recently opened group a chance to resolve. Only one group resolves
		// per incoming turn, which keeps interleaved call/result sequences
		// aligned.
		for _, r := range resultParts {
			results.add(r)
		}
		if len(rest.Content) > 0 {
			// The remainder may itself carry tool calls (a model turn can
			// mix calls and results), so it still has to open a group.
			appended, g := appendCallTurn(out, rest)
			out = appended
			if g != nil {
				groups = append(groups, *g)
			}
		}

		for i := len(groups) - 1; i >= 0; i-- {
			if !complete(groups[i], results) {
				continue
			}
			out = append(out, buildResultTurn(groups[i], results))
			groups = append(groups[:i], groups[i+1:]...)
			break
		}
	}

	// Patch unresolved groups in reverse position order so earlier
	// insertion indices stay valid.
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		turn := recoverResultTurn(g, results)
		out = insertAt(out, g.pos, turn)
	}

	// Whatever the pool still holds was never claimed by any call. Keep it
	// as one trailing turn instead of silently dropping history.
	if results.size() > 0 {
		slog.Debug("appending unclaimed tool results", "count", results.size())
		var parts []unified.ContentPart
		for {
			r, ok := results.takeOldest()
			if !ok {
				break
			}
			parts = append(parts, unified.ContentPart{Type: unified.PartToolResult, ToolResult: &r})
		}
		out = append(out, unified.Message{Role: unified.RoleTool, Content: parts})
	}

	return out
}

// splitResults separates a message's tool_result parts from the rest.
// The returned message keeps the original role and the non-result parts.
func splitResults(msg unified.Message) ([]unified.ToolResultData, unified.Message) {
	var results []unified.ToolResultData
	rest := unified.Message{Role: msg.Role}
	for _, part := range msg.Content {
		if part.Type == unified.PartToolResult && part.ToolResult != nil {
			results = append(results, *part.ToolResult)
			continue
		}
		rest.Content = append(rest.Content, part)
	}
	return results, rest
}

// appendCallTurn copies msg into out. Assistant turns containing tool
// calls open a pending group; calls that arrived without an id get a fresh
// fallback id so the group stays addressable.
func appendCallTurn(out []unified.Message, msg unified.Message) ([]unified.Message, *group) {
	if msg.Role != unified.RoleAssistant {
		return append(out, msg), nil
	}

	var g *group
	copied := unified.Message{Role: msg.Role, Content: make([]unified.ContentPart, 0, len(msg.Content))}
	for _, part := range msg.Content {
		if part.Type == unified.PartToolCall && part.ToolCall != nil {
			call := *part.ToolCall
			if call.ID == "" {
				call.ID = unified.NewCallID()
				slog.Debug("assigned fallback id to tool call", "name", call.Name, "id", call.ID)
			}
			if g == nil {
				g = &group{}
			}
			g.ids = append(g.ids, call.ID)
			g.names = append(g.names, call.Name)
			copied.Content = append(copied.Content, unified.ContentPart{Type: unified.PartToolCall, ToolCall: &call})
			continue
		}
		copied.Content = append(copied.Content, part)
	}

	out = append(out, copied)
	if g != nil {
		g.pos = len(out)
	}
	return out, g
}

func complete(g group, results *pool) bool {
	for _, id := range g.ids {
		if !results.has(id) {
			return false
		}
	}
	return true
}

// buildResultTurn consumes the group's results from the pool and emits
// them as one tool turn in call order.
func buildResultTurn(g group, results *pool) unified.Message {
	parts := make([]unified.ContentPart, 0, len(g.ids))
	for i, id := range g.ids {
		r, _ := results.take(id)
		r.ToolCallID = id
		if r.Name == "" {
			r.Name = g.names[i]
		}
		parts = append(parts, unified.ContentPart{Type: unified.PartToolResult, ToolResult: &r})
	}
	return unified.Message{Role: unified.RoleTool, Content: parts}
}

// recoverResultTurn answers a group whose results never fully arrived.
// Per call: exact id match, then an orphan declared for the same function,
// then the oldest orphan available, then a synthesized placeholder.
func recoverResultTurn(g group, results *pool) unified.Message {
	parts := make([]unified.ContentPart, 0, len(g.ids))
	for i, id := range g.ids {
		name := g.names[i]

		r, ok := results.take(id)
		if !ok {
			r, ok = results.takeByName(name)
		}
		if !ok {
			r, ok = results.takeOldest()
			if ok {
				slog.Debug("repurposing orphan tool result", "orphan_id", r.ToolCallID, "call_id", id, "name", name)
			}
		}
		if !ok {
			slog.Debug("synthesizing placeholder tool result", "call_id", id, "name", name)
			r = unified.ToolResultData{Content: LostResultContent}
		}

		r.ToolCallID = id
		r.Name = name
		parts = append(parts, unified.ContentPart{Type: unified.PartToolResult, ToolResult: &r})
	}
	return unified.Message{Role: unified.RoleTool, Content: parts}
}

func insertAt(msgs []unified.Message, pos int, msg unified.Message) []unified.Message {
	if pos < 0 {
		pos = 0
	}
	if pos >= len(msgs) {
		return append(msgs, msg)
	}
	msgs = append(msgs, unified.Message{})
	copy(msgs[pos+1:], msgs[pos:])
	msgs[pos] = msg
	return msgs
}
