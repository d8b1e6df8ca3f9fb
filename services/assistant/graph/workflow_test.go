// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopNode(_ context.Context, _ State) (Update, error) {
	return Update{}, nil
}

func TestCompile_RequiresEntryPoint(t *testing.T) {
	_, err := NewWorkflow().
		AddNode("a", noopNode).
		AddEdge("a", End).
		Compile()
	require.Error(t, err, "compiling without an entry point should fail")
	assert.Contains(t, err.Error(), "entry point")
}

func TestCompile_RejectsUnknownEdgeTarget(t *testing.T) {
	_, err := NewWorkflow().
		AddNode("a", noopNode).
		AddEdge("a", "missing").
		SetEntryPoint("a").
		Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node")
}

func TestCompile_RejectsNodeWithoutOutgoingEdge(t *testing.T) {
	_, err := NewWorkflow().
		AddNode("a", noopNode).
		SetEntryPoint("a").
		Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no outgoing edge")
}

func TestCompile_RejectsUnreachableNode(t *testing.T) {
	_, err := NewWorkflow().
		AddNode("a", noopNode).
		AddNode("orphan", noopNode).
		AddEdge("a", End).
		AddEdge("orphan", End).
		SetEntryPoint("a").
		Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestCompile_RejectsDuplicateNode(t *testing.T) {
	_, err := NewWorkflow().
		AddNode("a", noopNode).
		AddNode("a", noopNode).
		AddEdge("a", End).
		SetEntryPoint("a").
		Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node")
}

func TestInvoke_AppliesUpdatesInOrder(t *testing.T) {
	appendMark := func(mark string) NodeFunc {
		return func(_ context.Context, st State) (Update, error) {
			return Update{Generation: strPtr(st.Generation + mark)}, nil
		}
	}
	g, err := NewWorkflow().
		AddNode("first", appendMark("a")).
		AddNode("second", appendMark("b")).
		AddEdge("first", "second").
		AddEdge("second", End).
		SetEntryPoint("first").
		Compile()
	require.NoError(t, err)

	final, err := g.Invoke(context.Background(), State{})
	require.NoError(t, err)
	assert.Equal(t, "ab", final.Generation, "nodes should run in edge order")
}

func TestInvoke_ConditionalEntrySelectsNode(t *testing.T) {
	marker := func(mark string) NodeFunc {
		return func(_ context.Context, _ State) (Update, error) {
			return Update{Generation: strPtr(mark)}, nil
		}
	}
	g, err := NewWorkflow().
		AddNode("left", marker("left")).
		AddNode("right", marker("right")).
		AddEdge("left", End).
		AddEdge("right", End).
		SetConditionalEntryPoint(
			func(_ context.Context, st State) (Label, error) {
				if st.NeedsWebSearch {
					return "r", nil
				}
				return "l", nil
			},
			map[Label]NodeName{"l": "left", "r": "right"},
		).
		Compile()
	require.NoError(t, err)

	final, err := g.Invoke(context.Background(), State{NeedsWebSearch: true})
	require.NoError(t, err)
	assert.Equal(t, "right", final.Generation)

	final, err = g.Invoke(context.Background(), State{})
	require.NoError(t, err)
	assert.Equal(t, "left", final.Generation)
}

func TestInvoke_UnknownDecisionLabelFails(t *testing.T) {
	g, err := NewWorkflow().
		AddNode("a", noopNode).
		AddConditionalEdges("a",
			func(_ context.Context, _ State) (Label, error) { return "nope", nil },
			map[Label]NodeName{"yes": End},
		).
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err)

	_, err = g.Invoke(context.Background(), State{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown label")
}

func TestInvoke_StepLimitBreaksCycles(t *testing.T) {
	g, err := NewWorkflow().
		AddNode("a", noopNode).
		AddNode("b", noopNode).
		AddEdge("a", "b").
		AddEdge("b", "a").
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err, "cycles are legal wiring; the runtime bounds them")

	_, err = g.Invoke(context.Background(), State{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded")
}

func TestInvoke_CanceledContextStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g, err := NewWorkflow().
		AddNode("a", func(_ context.Context, _ State) (Update, error) {
			cancel()
			return Update{}, nil
		}).
		AddNode("b", noopNode).
		AddEdge("a", "b").
		AddEdge("b", End).
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err)

	_, err = g.Invoke(ctx, State{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvoke_ProgressReportsNodesAndDecisions(t *testing.T) {
	g, err := NewWorkflow().
		AddNode("a", noopNode).
		AddNode("b", noopNode).
		AddConditionalEdges("a",
			func(_ context.Context, _ State) (Label, error) { return "go", nil },
			map[Label]NodeName{"go": "b"},
		).
		AddEdge("b", End).
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err)

	type event struct {
		node  NodeName
		label Label
	}
	var events []event
	_, err = g.Invoke(context.Background(), State{}, WithProgress(func(node NodeName, decision Label) {
		events = append(events, event{node, decision})
	}))
	require.NoError(t, err)
	assert.Equal(t, []event{
		{"a", ""},
		{"a", "go"},
		{"b", ""},
	}, events)
}
