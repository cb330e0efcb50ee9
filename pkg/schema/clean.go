// Package schema normalizes tool-parameter JSON Schemas into the restricted
// dialect accepted by strict upstream validation.
//
// Clean is a pipeline of independent, order-sensitive phases applied to
// every nested sub-schema. Information the dialect cannot express is folded
// into description hints rather than silently discarded. Clean is
// idempotent: the strip phase removes every keyword the earlier phases
// consume, and hints are never appended twice.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// unsupportedConstraints are constraint keywords strict validation rejects.
// Their values are preserved as description hints before removal.
var unsupportedConstraints = []string{
	"minLength", "maxLength", "exclusiveMinimum", "exclusiveMaximum",
	"pattern", "minItems", "maxItems", "format", "default", "examples",
}

// strippedKeywords is everything removed outright after the hint phase:
// the constraint list plus structural keywords earlier phases consume.
var strippedKeywords = func() map[string]bool {
	m := map[string]bool{
		"$schema": true, "$defs": true, "definitions": true, "const": true,
		"$ref": true, "additionalProperties": true, "propertyNames": true,
		"title": true, "$id": true, "$comment": true, "allOf": true,
	}
	for _, k := range unsupportedConstraints {
		m[k] = true
	}
	return m
}()

// placeholderProperty is injected into object schemas that would otherwise
// have zero properties, which strict validation rejects.
const placeholderProperty = "unused"

// Clean returns a normalized copy of schema. The input is never mutated.
// Nodes with unexpected shapes are passed through unchanged rather than
// rewritten, so Clean never fails.
func Clean(s map[string]any) map[string]any {
	if s == nil {
		return nil
	}
	return cleanNode(s)
}

func cleanNode(node map[string]any) map[string]any {
	out := copyMap(node)

	out = resolveRef(out)
	out = mergeAllOf(out)
	out = constToEnum(out)
	out = appendHints(out)
	out = stripKeywords(out)
	out = pruneRequired(out)
	out = fillEmptyObject(out)

	// Recurse into nested sub-schemas after the node itself is settled.
	if props, ok := out["properties"].(map[string]any); ok {
		cleaned := make(map[string]any, len(props))
		for name, sub := range props {
			if m, ok := sub.(map[string]any); ok {
				cleaned[name] = cleanNode(m)
			} else {
				cleaned[name] = sub
			}
		}
		out["properties"] = cleaned
	}
	if items, ok := out["items"]; ok {
		switch v := items.(type) {
		case map[string]any:
			out["items"] = cleanNode(v)
		case []any:
			cleaned := make([]any, len(v))
			for i, sub := range v {
				if m, ok := sub.(map[string]any); ok {
					cleaned[i] = cleanNode(m)
				} else {
					cleaned[i] = sub
				}
			}
			out["items"] = cleaned
		}
	}
	for _, branch := range []string{"anyOf", "oneOf"} {
		if arr, ok := out[branch].([]any); ok {
			cleaned := make([]any, len(arr))
			for i, sub := range arr {
				if m, ok := sub.(map[string]any); ok {
					cleaned[i] = cleanNode(m)
				} else {
					cleaned[i] = sub
				}
			}
			out[branch] = cleaned
		}
	}

	return out
}

// resolveRef replaces a $ref node with a plain object schema that keeps a
// human-readable pointer to the referenced definition. Structure is lost;
// the hint is what remains for the model to work with.
func resolveRef(node map[string]any) map[string]any {
	ref, ok := node["$ref"].(string)
	if !ok || ref == "" {
		return node
	}

	segs := strings.Split(ref, "/")
	defName := segs[len(segs)-1]

	desc := "See: " + defName
	if prior, ok := node["description"].(string); ok && prior != "" && !strings.Contains(prior, desc) {
		desc = desc + ". " + prior
	}

	return map[string]any{
		"type":        "object",
		"description": desc,
	}
}

// mergeAllOf folds allOf members into the parent node. Existing parent
// keys win over members, and earlier members win over later ones.
func mergeAllOf(node map[string]any) map[string]any {
	members, ok := node["allOf"].([]any)
	if !ok || len(members) == 0 {
		return node
	}

	for _, raw := range members {
		member, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		for key, val := range member {
			switch key {
			case "properties":
				memberProps, ok := val.(map[string]any)
				if !ok {
					continue
				}
				props, _ := node["properties"].(map[string]any)
				if props == nil {
					props = make(map[string]any)
				}
				for name, sub := range memberProps {
					if _, exists := props[name]; !exists {
						props[name] = sub
					}
				}
				node["properties"] = props
			case "required":
				memberReq := toStringSlice(val)
				existing := toStringSlice(node["required"])
				for _, r := range memberReq {
					if !containsString(existing, r) {
						existing = append(existing, r)
					}
				}
				if len(existing) > 0 {
					node["required"] = existing
				}
			default:
				if _, exists := node[key]; !exists {
					node[key] = val
				}
			}
		}
	}

	delete(node, "allOf")
	return node
}

// constToEnum converts const: v into enum: [v].
func constToEnum(node map[string]any) map[string]any {
	v, ok := node["const"]
	if !ok {
		return node
	}
	if _, hasEnum := node["enum"]; !hasEnum {
		node["enum"] = []any{v}
	}
	delete(node, "const")
	return node
}

// appendHints preserves information the restricted dialect cannot express
// by folding it into parenthetical description hints. A hint already
// present in the description is not appended again, which keeps Clean
// idempotent for keywords that survive the strip phase (enum).
func appendHints(node map[string]any) map[string]any {
	if ap, ok := node["additionalProperties"].(bool); ok && !ap {
		addHint(node, "No extra properties allowed")
	}

	if enum, ok := node["enum"].([]any); ok && len(enum) >= 2 && len(enum) <= 10 {
		vals := make([]string, len(enum))
		for i, v := range enum {
			vals[i] = renderValue(v)
		}
		addHint(node, "Allowed: "+strings.Join(vals, ", "))
	}

	for _, key := range unsupportedConstraints {
		v, ok := node[key]
		if !ok {
			continue
		}
		addHint(node, fmt.Sprintf("%s: %s", key, renderValue(v)))
	}

	return node
}

// stripKeywords removes every keyword outside the restricted dialect.
func stripKeywords(node map[string]any) map[string]any {
	for key := range node {
		if strippedKeywords[key] {
			delete(node, key)
		}
	}
	return node
}

// pruneRequired drops required entries that name no existing property.
// Strict validation rejects dangling requirements outright.
func pruneRequired(node map[string]any) map[string]any {
	req := toStringSlice(node["required"])
	if req == nil {
		if _, present := node["required"]; present {
			return node
		}
		return node
	}

	props, _ := node["properties"].(map[string]any)
	kept := req[:0]
	for _, name := range req {
		if _, ok := props[name]; ok {
			kept = append(kept, name)
		}
	}
	if len(kept) == 0 {
		delete(node, "required")
	} else {
		node["required"] = kept
	}
	return node
}

// fillEmptyObject injects a placeholder boolean property into object
// schemas with no properties, since strict validation rejects empty object
// schemas for tool parameters.
func fillEmptyObject(node map[string]any) map[string]any {
	typ, _ := node["type"].(string)
	if typ != "object" {
		return node
	}
	if props, ok := node["properties"].(map[string]any); ok && len(props) > 0 {
		return node
	}

	node["properties"] = map[string]any{
		placeholderProperty: map[string]any{
			"type":        "boolean",
			"description": "Placeholder. Do not use.",
		},
	}
	node["required"] = []string{placeholderProperty}
	return node
}

func addHint(node map[string]any, hint string) {
	wrapped := "(" + hint + ")"
	desc, _ := node["description"].(string)
	if strings.Contains(desc, wrapped) {
		return
	}
	if desc == "" {
		node["description"] = wrapped
	} else {
		node["description"] = desc + " " + wrapped
	}
}

// renderValue renders a hint value compactly. Scalars print bare; arrays
// and objects fall back to JSON.
func renderValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	case nil:
		return "null"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// toStringSlice accepts both []string and []any-of-strings, returning nil
// for anything else.
func toStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		return out
	default:
		return nil
	}
}

func containsString(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

// SortedKeys returns the map's keys in lexical order. Used by tests and
// diagnostics that need deterministic traversal.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
