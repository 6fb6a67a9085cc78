// Package reconcile turns a plan.Node plus a state-cell snapshot into a
// settled Tree and the Effects that running it produced, by repeatedly
// rendering function nodes until the serialized tree stops changing
// (a fixed point) or a maximum iteration count is reached.
package reconcile

import (
	"encoding/json"
	"fmt"

	"github.com/conductor-run/conductor/plan"
)

// gateOpen reports whether a KindGate node's children should render this
// pass, per its Props: "cell" names the state cell to read and "equals" is
// the JSON value it must match. A gate with no "cell" prop is always open.
func gateOpen(node plan.Node, ctx plan.ReconcileContext) (bool, error) {
	cell, _ := node.Props["cell"].(string)
	if cell == "" {
		return true, nil
	}
	value, ok := ctx.StateCell(cell)
	if !ok {
		return false, nil
	}
	want, err := json.Marshal(node.Props["equals"])
	if err != nil {
		return false, fmt.Errorf("reconcile: gate %q: marshal equals: %w", node.Key, err)
	}
	var gotNorm, wantNorm any
	if err := json.Unmarshal([]byte(value), &gotNorm); err != nil {
		return false, fmt.Errorf("reconcile: gate %q: unmarshal cell value: %w", node.Key, err)
	}
	if err := json.Unmarshal(want, &wantNorm); err != nil {
		return false, fmt.Errorf("reconcile: gate %q: unmarshal equals: %w", node.Key, err)
	}
	normalized, err := json.Marshal(gotNorm)
	if err != nil {
		return false, err
	}
	wantBytes, err := json.Marshal(wantNorm)
	if err != nil {
		return false, err
	}
	return string(normalized) == string(wantBytes), nil
}

// Tree is the settled output of reconciliation: a plan.Node tree with every
// KindFunction node expanded into its rendered children.
type Tree struct {
	Root plan.Node
}

// EffectKind distinguishes what an Effect asks the host to do.
type EffectKind string

// Effect is a side effect the reconciler discovered while expanding the
// tree (a KindEffect node reached during this pass) and that the engine
// must dispatch to a registered handler.
type Effect struct {
	NodeKey string
	Kind    EffectKind
	Props   map[string]any
}

// DefaultMaxIterations bounds fixed-point stabilization so a misbehaving
// RenderFunc (one whose output depends on something other than props and
// the state snapshot) cannot loop forever.
const DefaultMaxIterations = 25

// ErrNotStabilized is returned when the tree still changed after
// MaxIterations passes.
type ErrNotStabilized struct {
	MaxIterations int
}

func (e *ErrNotStabilized) Error() string {
	return fmt.Sprintf("reconcile: tree did not stabilize within %d iterations", e.MaxIterations)
}

// Reconcile repeatedly expands root's KindFunction nodes against ctx until
// the serialized tree stops changing. It is a pure function of (root, the
// state-cell snapshot ctx exposes): reconciling the same plan against the
// same snapshot twice always yields the same Tree and Effects.
func Reconcile(root plan.Node, ctx plan.ReconcileContext, maxIterations int) (Tree, []Effect, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	current := root
	var prevSerialized string
	for i := 0; i < maxIterations; i++ {
		expanded, err := expand(current, ctx)
		if err != nil {
			return Tree{}, nil, err
		}
		serialized, err := serialize(expanded)
		if err != nil {
			return Tree{}, nil, fmt.Errorf("reconcile: serialize: %w", err)
		}
		if i > 0 && serialized == prevSerialized {
			return Tree{Root: expanded}, collectEffects(expanded), nil
		}
		current = expanded
		prevSerialized = serialized
	}
	return Tree{}, nil, &ErrNotStabilized{MaxIterations: maxIterations}
}

// expand walks node, replacing every KindFunction node with the result of
// calling its Render, and recursing into the result and into static
// children.
func expand(node plan.Node, ctx plan.ReconcileContext) (plan.Node, error) {
	if node.Kind == plan.KindFunction {
		if node.Render == nil {
			return plan.Node{}, fmt.Errorf("reconcile: node %q is a function node with no Render", node.Key)
		}
		children, err := node.Render(node.Props, ctx)
		if err != nil {
			return plan.Node{}, fmt.Errorf("reconcile: render %q: %w", node.Key, err)
		}
		expandedChildren := make([]plan.Node, 0, len(children))
		for _, c := range children {
			ec, err := expand(c, ctx)
			if err != nil {
				return plan.Node{}, err
			}
			expandedChildren = append(expandedChildren, ec)
		}
		node.Children = expandedChildren
		return node, nil
	}

	if node.Kind == plan.KindGate {
		open, err := gateOpen(node, ctx)
		if err != nil {
			return plan.Node{}, err
		}
		if !open {
			node.Children = nil
			return node, nil
		}
	}

	expandedChildren := make([]plan.Node, 0, len(node.Children))
	for _, c := range node.Children {
		ec, err := expand(c, ctx)
		if err != nil {
			return plan.Node{}, err
		}
		expandedChildren = append(expandedChildren, ec)
	}
	node.Children = expandedChildren
	return node, nil
}

// collectEffects walks the settled tree and gathers every KindEffect node
// into an ordered Effect list, in document order.
func collectEffects(node plan.Node) []Effect {
	var out []Effect
	var walk func(n plan.Node)
	walk = func(n plan.Node) {
		if n.Kind == plan.KindEffect {
			kind, _ := n.Props["effect"].(string)
			out = append(out, Effect{NodeKey: n.Key, Kind: EffectKind(kind), Props: n.Props})
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(node)
	return out
}

// Serialize exposes the tree's stable JSON representation for callers that
// need to persist a settled Tree (the engine's per-pass frame snapshot),
// not just compare two of them for equality.
func Serialize(root plan.Node) (string, error) {
	return serialize(root)
}

// serialize produces a stable, comparable representation of a tree used to
// detect the fixed point. Render funcs are not comparable, so they are
// excluded; two trees with identical Kind/Key/Props/Children structure are
// considered identical for stabilization purposes even if their Render
// closures differ.
func serialize(node plan.Node) (string, error) {
	type serializable struct {
		Kind     plan.Kind      `json:"kind"`
		Key      string         `json:"key"`
		Props    map[string]any `json:"props"`
		Children []serializable `json:"children,omitempty"`
	}
	var toSerializable func(n plan.Node) serializable
	toSerializable = func(n plan.Node) serializable {
		children := make([]serializable, 0, len(n.Children))
		for _, c := range n.Children {
			children = append(children, toSerializable(c))
		}
		return serializable{Kind: n.Kind, Key: n.Key, Props: sanitizeProps(n.Props), Children: children}
	}
	b, err := json.Marshal(toSerializable(node))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// sanitizeProps copies props, replacing any value json.Marshal cannot
// encode (such as a StopCondition, whose Predict field is a func) with its
// type name. Props are "whatever an author layer
// attaches," not necessarily pure JSON, but the stabilization check only
// needs a value that is stable across passes for the same attached Go
// value, not a faithful JSON encoding of it.
func sanitizeProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		if _, err := json.Marshal(v); err != nil {
			out[k] = fmt.Sprintf("%T", v)
			continue
		}
		out[k] = v
	}
	return out
}
