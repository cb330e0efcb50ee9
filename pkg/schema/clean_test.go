package schema

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

// parse builds a schema tree from JSON source.
func parse(t *testing.T, src string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(src), &m); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return m
}

func TestCleanStripsUnsupportedKeywords(t *testing.T) {
	s := parse(t, `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"$id": "https://example.com/x",
		"title": "Params",
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"name": {"type": "string", "minLength": 3, "maxLength": 10, "pattern": "^a"},
			"count": {"type": "integer", "exclusiveMinimum": 0, "default": 1},
			"tags": {"type": "array", "items": {"type": "string"}, "minItems": 1, "maxItems": 5}
		},
		"required": ["name"]
	}`)

	got := Clean(s)

	var walk func(node map[string]any)
	walk = func(node map[string]any) {
		for key, v := range node {
			if strippedKeywords[key] {
				t.Errorf("stripped keyword %q survived: %v", key, node)
			}
			if m, ok := v.(map[string]any); ok {
				walk(m)
			}
		}
	}
	walk(got)

	name := got["properties"].(map[string]any)["name"].(map[string]any)
	desc, _ := name["description"].(string)
	for _, want := range []string{"(minLength: 3)", "(maxLength: 10)", "(pattern: ^a)"} {
		if !strings.Contains(desc, want) {
			t.Errorf("name description missing hint %q: %q", want, desc)
		}
	}

	rootDesc, _ := got["description"].(string)
	if !strings.Contains(rootDesc, "No extra properties allowed") {
		t.Errorf("root description missing additionalProperties hint: %q", rootDesc)
	}
}

func TestCleanIdempotent(t *testing.T) {
	fixtures := []string{
		`{"type":"object","properties":{"a":{"type":"string","minLength":2}},"required":["a","ghost"]}`,
		`{"type":"object","additionalProperties":false,"properties":{"mode":{"enum":["fast","slow","auto"]}}}`,
		`{"type":"object"}`,
		`{"$ref":"#/$defs/Location","description":"where"}`,
		`{"type":"object","allOf":[{"properties":{"x":{"type":"number"}},"required":["x"]},{"properties":{"y":{"type":"number"}}}]}`,
		`{"type":"object","properties":{"k":{"const":"fixed"}}}`,
		`{"type":"array","items":{"type":"object","properties":{"v":{"type":"string","format":"uuid"}}}}`,
	}

	for _, src := range fixtures {
		once := Clean(parse(t, src))
		twice := Clean(once)
		if !reflect.DeepEqual(once, twice) {
			o, _ := json.Marshal(once)
			w, _ := json.Marshal(twice)
			t.Errorf("not idempotent for %s:\n once: %s\ntwice: %s", src, o, w)
		}
	}
}

func TestCleanDoesNotMutateInput(t *testing.T) {
	src := `{"type":"object","additionalProperties":false,"properties":{"a":{"type":"string","minLength":1}}}`
	in := parse(t, src)
	before, _ := json.Marshal(in)

	Clean(in)

	after, _ := json.Marshal(in)
	if string(before) != string(after) {
		t.Errorf("input mutated:\nbefore: %s\n after: %s", before, after)
	}
}

func TestCleanRefReplacement(t *testing.T) {
	s := parse(t, `{
		"type": "object",
		"properties": {
			"loc": {"$ref": "#/$defs/Location", "description": "target location"}
		},
		"$defs": {"Location": {"type": "object", "properties": {"lat": {"type": "number"}}}}
	}`)

	got := Clean(s)

	if _, ok := got["$defs"]; ok {
		t.Error("$defs survived clean")
	}
	loc := got["properties"].(map[string]any)["loc"].(map[string]any)
	if loc["type"] != "object" {
		t.Errorf("ref node type = %v, want object", loc["type"])
	}
	desc, _ := loc["description"].(string)
	if !strings.Contains(desc, "See: Location") {
		t.Errorf("ref description missing definition hint: %q", desc)
	}
	if !strings.Contains(desc, "target location") {
		t.Errorf("ref description lost prior text: %q", desc)
	}
}

func TestCleanAllOfMerge(t *testing.T) {
	s := parse(t, `{
		"type": "object",
		"properties": {"own": {"type": "string"}},
		"allOf": [
			{"properties": {"a": {"type": "number"}, "own": {"type": "integer"}}, "required": ["a"]},
			{"properties": {"b": {"type": "boolean"}}, "required": ["b"]}
		],
		"required": ["own"]
	}`)

	got := Clean(s)

	props := got["properties"].(map[string]any)
	for _, want := range []string{"own", "a", "b"} {
		if _, ok := props[want]; !ok {
			t.Errorf("merged properties missing %q", want)
		}
	}
	// First writer wins: the parent's "own" stays a string.
	if typ := props["own"].(map[string]any)["type"]; typ != "string" {
		t.Errorf("own type = %v, want string (parent wins)", typ)
	}

	req := got["required"].([]string)
	for _, want := range []string{"own", "a", "b"} {
		if !containsString(req, want) {
			t.Errorf("required missing %q: %v", want, req)
		}
	}
	if _, ok := got["allOf"]; ok {
		t.Error("allOf survived merge")
	}
}

func TestCleanConstBecomesEnum(t *testing.T) {
	got := Clean(parse(t, `{"type":"object","properties":{"k":{"const":"fixed"}}}`))

	k := got["properties"].(map[string]any)["k"].(map[string]any)
	enum, ok := k["enum"].([]any)
	if !ok || len(enum) != 1 || enum[0] != "fixed" {
		t.Errorf("const not converted: %v", k)
	}
	if _, ok := k["const"]; ok {
		t.Error("const survived")
	}
}

func TestCleanEnumHint(t *testing.T) {
	got := Clean(parse(t, `{"type":"object","properties":{"mode":{"type":"string","enum":["fast","slow","auto"]}}}`))

	mode := got["properties"].(map[string]any)["mode"].(map[string]any)
	desc, _ := mode["description"].(string)
	if !strings.Contains(desc, "Allowed: fast, slow, auto") {
		t.Errorf("enum hint missing: %q", desc)
	}
}

func TestCleanDanglingRequiredDropped(t *testing.T) {
	got := Clean(parse(t, `{"type":"object","properties":{"a":{"type":"string"}},"required":["a","ghost"]}`))

	req := got["required"].([]string)
	if !reflect.DeepEqual(req, []string{"a"}) {
		t.Errorf("required = %v, want [a]", req)
	}

	got = Clean(parse(t, `{"type":"object","properties":{"a":{"type":"string"}},"required":["ghost"]}`))
	if _, ok := got["required"]; ok {
		t.Error("empty required not removed")
	}
}

func TestCleanEmptyObjectPlaceholder(t *testing.T) {
	got := Clean(parse(t, `{"type":"object"}`))

	props, ok := got["properties"].(map[string]any)
	if !ok || len(props) != 1 {
		t.Fatalf("placeholder not injected: %v", got)
	}
	if _, ok := props[placeholderProperty]; !ok {
		t.Errorf("placeholder property missing: %v", props)
	}
	req := got["required"].([]string)
	if !containsString(req, placeholderProperty) {
		t.Errorf("placeholder not required: %v", req)
	}
}

func TestCleanPassesThroughAnomalies(t *testing.T) {
	// properties with a non-object value must survive untouched instead of
	// panicking mid-rewrite.
	s := parse(t, `{"type":"object","properties":{"weird":42,"ok":{"type":"string"}}}`)
	got := Clean(s)

	props := got["properties"].(map[string]any)
	if props["weird"] != float64(42) {
		t.Errorf("anomalous node rewritten: %v", props["weird"])
	}
	if _, ok := props["ok"].(map[string]any); !ok {
		t.Errorf("valid sibling lost: %v", props)
	}
}
