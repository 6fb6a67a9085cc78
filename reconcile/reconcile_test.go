package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conductor-run/conductor/plan"
)

type fakeCtx struct {
	cells       map[string]string
	executionID string
}

func (f fakeCtx) StateCell(name string) (string, bool) {
	v, ok := f.cells[name]
	return v, ok
}

func (f fakeCtx) ExecutionID() string { return f.executionID }

func TestReconcileStaticTreeStabilizesImmediately(t *testing.T) {
	root := plan.Node{
		Kind: plan.KindSequence,
		Key:  "root",
		Children: []plan.Node{
			{Kind: plan.KindAgent, Key: "step1", Props: map[string]any{"kind": "claude"}},
		},
	}
	tree, effects, err := Reconcile(root, fakeCtx{}, 0)
	require.NoError(t, err)
	require.Empty(t, effects)
	require.Equal(t, "root", tree.Root.Key)
}

func TestReconcileExpandsFunctionNodeUntilStable(t *testing.T) {
	root := plan.Node{
		Kind: plan.KindFunction,
		Key:  "root",
		Render: func(props map[string]any, ctx plan.ReconcileContext) ([]plan.Node, error) {
			value, ok := ctx.StateCell("phase")
			if !ok || value == `"done"` {
				return nil, nil
			}
			return []plan.Node{
				{Kind: plan.KindAgent, Key: "phase-node", Props: map[string]any{"kind": "claude"}},
			}, nil
		},
	}

	tree, _, err := Reconcile(root, fakeCtx{cells: map[string]string{"phase": `"running"`}}, 0)
	require.NoError(t, err)
	require.Len(t, tree.Root.Children, 1)
	require.Equal(t, "phase-node", tree.Root.Children[0].Key)
}

func TestReconcileCollectsEffectsInDocumentOrder(t *testing.T) {
	root := plan.Node{
		Kind: plan.KindSequence,
		Key:  "root",
		Children: []plan.Node{
			{Kind: plan.KindEffect, Key: "e1", Props: map[string]any{"effect": "commit"}},
			{Kind: plan.KindEffect, Key: "e2", Props: map[string]any{"effect": "snapshot"}},
		},
	}
	_, effects, err := Reconcile(root, fakeCtx{}, 0)
	require.NoError(t, err)
	require.Len(t, effects, 2)
	require.Equal(t, EffectKind("commit"), effects[0].Kind)
	require.Equal(t, EffectKind("snapshot"), effects[1].Kind)
}

func TestReconcileDetectsNonStabilizingTree(t *testing.T) {
	calls := 0
	root := plan.Node{
		Kind: plan.KindFunction,
		Key:  "root",
		Render: func(props map[string]any, ctx plan.ReconcileContext) ([]plan.Node, error) {
			calls++
			return []plan.Node{
				{Kind: plan.KindAgent, Key: "unstable", Props: map[string]any{"kind": "claude", "n": calls}},
			}, nil
		},
	}
	_, _, err := Reconcile(root, fakeCtx{}, 3)
	require.Error(t, err)
	var notStabilized *ErrNotStabilized
	require.ErrorAs(t, err, &notStabilized)
}
