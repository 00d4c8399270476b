package docdex

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// hintExtension is the OpenAPI extension carrying per-operation task hints.
const hintExtension = "x-mcoda-task-hints"

// TaskHint is one operation's planning hints pulled from an OpenAPI spec.
type TaskHint struct {
	Path        string
	Method      string
	OperationID string
	Hints       []string
}

// ExtractTaskHints parses an OpenAPI document (YAML or JSON, which YAML
// subsumes) and collects the x-mcoda-task-hints extension from every path
// operation. Results are sorted by path then method for determinism.
func ExtractTaskHints(content string) ([]TaskHint, error) {
	var spec map[string]any
	if err := yaml.Unmarshal([]byte(content), &spec); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}

	paths, ok := spec["paths"].(map[string]any)
	if !ok {
		return nil, nil
	}

	var hints []TaskHint
	for path, rawItem := range paths {
		item, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		for method, rawOp := range item {
			op, ok := rawOp.(map[string]any)
			if !ok {
				continue
			}
			values := hintValues(op[hintExtension])
			if len(values) == 0 {
				continue
			}
			hint := TaskHint{Path: path, Method: method, Hints: values}
			if id, ok := op["operationId"].(string); ok {
				hint.OperationID = id
			}
			hints = append(hints, hint)
		}
	}

	sort.Slice(hints, func(i, j int) bool {
		if hints[i].Path != hints[j].Path {
			return hints[i].Path < hints[j].Path
		}
		return hints[i].Method < hints[j].Method
	})
	return hints, nil
}

// hintValues normalizes the extension value: a string, or a list of
// strings.
func hintValues(raw any) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
