package agent

import (
	"reflect"
	"testing"
)

func TestExtractJSONFencedBlockWins(t *testing.T) {
	text := "Here is my answer.\n```json\n{\"order\": [\"A\"]}\n```\nAnd also {\"order\": [\"B\"]} inline."
	value, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("ExtractJSON returned no value")
	}
	obj, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("value = %T, want object", value)
	}
	if !reflect.DeepEqual(obj["order"], []any{"A"}) {
		t.Errorf("order = %v, want [A] from the fenced block", obj["order"])
	}
}

func TestExtractJSONStripsThinkSpans(t *testing.T) {
	text := "<think>{broken json here</think>{\"deps\": []}"
	value, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("ExtractJSON returned no value")
	}
	obj := value.(map[string]any)
	if _, present := obj["deps"]; !present {
		t.Errorf("value = %v, want object with deps", obj)
	}
}

func TestExtractJSONPrefersLastBalancedSubstring(t *testing.T) {
	// Neither the whole text nor the fenced path applies; both substrings
	// parse, and the last one found must win.
	text := `first {"which": "first"} then {"which": "last"} trailing prose`
	value, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("ExtractJSON returned no value")
	}
	obj := value.(map[string]any)
	if obj["which"] != "last" {
		t.Errorf("which = %v, want last", obj["which"])
	}
}

func TestExtractJSONIgnoresBracesInStrings(t *testing.T) {
	text := `noise {"note": "a } inside a string", "n": 1} more noise`
	value, ok := ExtractJSON(text)
	if !ok {
		t.Fatal("ExtractJSON returned no value")
	}
	obj := value.(map[string]any)
	if obj["note"] != "a } inside a string" {
		t.Errorf("note = %v, parsing was not string-aware", obj["note"])
	}
}

func TestExtractJSONArrays(t *testing.T) {
	value, ok := ExtractJSON(`the list: ["x", "y"]`)
	if !ok {
		t.Fatal("ExtractJSON returned no value")
	}
	if arr, isArr := value.([]any); !isArr || len(arr) != 2 {
		t.Errorf("value = %v, want two-element array", value)
	}
}

func TestExtractJSONNothingParses(t *testing.T) {
	if _, ok := ExtractJSON("no json here at all, just { mismatched"); ok {
		t.Error("ExtractJSON found a value in garbage input")
	}
}

func TestBalancedRegions(t *testing.T) {
	regions := balancedRegions(`a {"x":1} b [2,3] c {"y":{"z":2}}`)
	want := []string{`{"x":1}`, `[2,3]`, `{"y":{"z":2}}`}
	if !reflect.DeepEqual(regions, want) {
		t.Errorf("balancedRegions = %v, want %v", regions, want)
	}
}
