package plan

import (
	"encoding/json"
	"fmt"
	"os"
)

// fileNode mirrors Node's static fields for JSON decoding. Render and the
// Go-only Props enrichments (StopCondition.Predict, MockScript) have no
// on-disk representation; a plan loaded from file is necessarily built from
// the primitive Kinds alone.
type fileNode struct {
	Kind     Kind           `json:"kind"`
	Key      string         `json:"key"`
	Props    map[string]any `json:"props"`
	Children []fileNode     `json:"children"`
}

// LoadFile reads a plan tree from a JSON file. This is a thin persistence
// format for static plans, not the author-facing plan language (out of
// scope here): it reads each node's Kind, Key, Props and Children, with no
// macros, templating, or control flow of its own. Render and Go-only Props
// values have no file form (see fileNode).
func LoadFile(path string) (Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Node{}, fmt.Errorf("plan: read %s: %w", path, err)
	}
	var fn fileNode
	if err := json.Unmarshal(data, &fn); err != nil {
		return Node{}, fmt.Errorf("plan: parse %s: %w", path, err)
	}
	return toNode(fn), nil
}

func toNode(fn fileNode) Node {
	children := make([]Node, 0, len(fn.Children))
	for _, c := range fn.Children {
		children = append(children, toNode(c))
	}
	return Node{
		Kind:     fn.Kind,
		Key:      fn.Key,
		Props:    normalizeProps(fn.Props),
		Children: children,
	}
}

// normalizeProps converts JSON-decoded float64 whole numbers into int, so
// Props loaded from a file satisfy the same type assertions
// (AgentSpecFromProps' "max_retries", for one) that Props built
// directly in Go already do.
func normalizeProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case float64:
		if t == float64(int(t)) {
			return int(t)
		}
		return t
	case map[string]any:
		return normalizeProps(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}
