// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var workflowTracer = otel.Tracer("campusmind.assistant.graph")

// ===== Graph vocabulary =====

// NodeName identifies a node in the workflow.
type NodeName string

// End is the terminal pseudo-node. Edges may point to it; no node function
// is registered for it.
const End NodeName = "END"

const (
	NodeExpandQuestion NodeName = "expand_question"
	NodeRetrieve       NodeName = "retrieve"
	NodeGradeDocuments NodeName = "grade_documents"
	NodeWebSearch      NodeName = "web_search"
	NodeGenerate       NodeName = "generate"
	NodeGradeAnswer    NodeName = "grade_answer"
	NodeRetry          NodeName = "retry"
)

// Label is the value a decision function returns to select an outgoing edge.
type Label string

// Routing labels.
const (
	LabelVectorstore Label = "vectorstore"
	LabelWebSearch   Label = "websearch"
	LabelGenerate    Label = "generate"
)

// Verification labels.
const (
	LabelUseful       Label = "useful"
	LabelNotUseful    Label = "not useful"
	LabelNotSupported Label = "not supported"
	LabelFallback     Label = "fallback"
)

// ===== Node and decision signatures =====

// NodeFunc performs one step of work and returns the state fields it changed.
type NodeFunc func(ctx context.Context, st State) (Update, error)

// DecisionFunc inspects the state after a node ran and picks the label of
// the edge to follow.
type DecisionFunc func(ctx context.Context, st State) (Label, error)

// ProgressFunc observes graph execution. It is called with the node about to
// run, and again with the label chosen at each decision point (node is then
// the node the decision belongs to). Callbacks run synchronously on the turn
// goroutine; keep them cheap.
type ProgressFunc func(node NodeName, decision Label)

// ===== Builder =====

type conditionalEdge struct {
	decide  DecisionFunc
	targets map[Label]NodeName
}

// Workflow accumulates nodes and edges, then compiles into an executable
// graph. Wiring mistakes surface at Compile time, not mid-turn.
type Workflow struct {
	nodes        map[NodeName]NodeFunc
	edges        map[NodeName]NodeName
	conditional  map[NodeName]conditionalEdge
	entry        NodeName
	entryDecide  DecisionFunc
	entryTargets map[Label]NodeName
	err          error
}

// NewWorkflow returns an empty workflow builder.
func NewWorkflow() *Workflow {
	return &Workflow{
		nodes:       make(map[NodeName]NodeFunc),
		edges:       make(map[NodeName]NodeName),
		conditional: make(map[NodeName]conditionalEdge),
	}
}

func (w *Workflow) fail(format string, args ...any) {
	if w.err == nil {
		w.err = fmt.Errorf(format, args...)
	}
}

// AddNode registers a node. Names must be unique.
func (w *Workflow) AddNode(name NodeName, fn NodeFunc) *Workflow {
	if name == End {
		w.fail("graph: %q is reserved", End)
		return w
	}
	if fn == nil {
		w.fail("graph: node %q has a nil function", name)
		return w
	}
	if _, dup := w.nodes[name]; dup {
		w.fail("graph: duplicate node %q", name)
		return w
	}
	w.nodes[name] = fn
	return w
}

// AddEdge registers the single unconditional edge out of from.
func (w *Workflow) AddEdge(from, to NodeName) *Workflow {
	if _, dup := w.edges[from]; dup {
		w.fail("graph: node %q already has an edge", from)
		return w
	}
	if _, dup := w.conditional[from]; dup {
		w.fail("graph: node %q already has conditional edges", from)
		return w
	}
	w.edges[from] = to
	return w
}

// AddConditionalEdges registers a decision point after from. The decision
// function's label selects the next node from targets.
func (w *Workflow) AddConditionalEdges(from NodeName, decide DecisionFunc, targets map[Label]NodeName) *Workflow {
	if _, dup := w.edges[from]; dup {
		w.fail("graph: node %q already has an edge", from)
		return w
	}
	if _, dup := w.conditional[from]; dup {
		w.fail("graph: node %q already has conditional edges", from)
		return w
	}
	if decide == nil || len(targets) == 0 {
		w.fail("graph: conditional edges from %q need a decision and targets", from)
		return w
	}
	w.conditional[from] = conditionalEdge{decide: decide, targets: targets}
	return w
}

// SetEntryPoint makes name the first node of every run.
func (w *Workflow) SetEntryPoint(name NodeName) *Workflow {
	w.entry = name
	return w
}

// SetConditionalEntryPoint makes the first node depend on a decision taken
// against the initial state.
func (w *Workflow) SetConditionalEntryPoint(decide DecisionFunc, targets map[Label]NodeName) *Workflow {
	if decide == nil || len(targets) == 0 {
		w.fail("graph: conditional entry needs a decision and targets")
		return w
	}
	w.entryDecide = decide
	w.entryTargets = targets
	return w
}

// Compile validates the wiring and returns an executable graph.
//
// # Outputs
//
// An error when a node is unreachable from the entry, an edge targets an
// unregistered node, a node has no outgoing edge, or no entry was set.
func (w *Workflow) Compile() (*CompiledGraph, error) {
	if w.err != nil {
		return nil, w.err
	}
	if w.entry == "" && w.entryDecide == nil {
		return nil, fmt.Errorf("graph: no entry point set")
	}
	if w.entry != "" && w.entryDecide != nil {
		return nil, fmt.Errorf("graph: both fixed and conditional entry set")
	}

	checkTarget := func(from NodeName, to NodeName) error {
		if to == End {
			return nil
		}
		if _, ok := w.nodes[to]; !ok {
			return fmt.Errorf("graph: edge from %q targets unknown node %q", from, to)
		}
		return nil
	}

	entryTargets := w.entryTargets
	if w.entry != "" {
		entryTargets = map[Label]NodeName{"": w.entry}
	}
	for _, to := range entryTargets {
		if err := checkTarget("entry", to); err != nil {
			return nil, err
		}
	}
	for from, to := range w.edges {
		if _, ok := w.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: edge from unknown node %q", from)
		}
		if err := checkTarget(from, to); err != nil {
			return nil, err
		}
	}
	for from, ce := range w.conditional {
		if _, ok := w.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: conditional edges from unknown node %q", from)
		}
		for _, to := range ce.targets {
			if err := checkTarget(from, to); err != nil {
				return nil, err
			}
		}
	}

	for name := range w.nodes {
		_, hasEdge := w.edges[name]
		_, hasCond := w.conditional[name]
		if !hasEdge && !hasCond {
			return nil, fmt.Errorf("graph: node %q has no outgoing edge", name)
		}
	}

	reachable := map[NodeName]bool{}
	var frontier []NodeName
	for _, to := range entryTargets {
		if to != End {
			frontier = append(frontier, to)
		}
	}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		if reachable[cur] {
			continue
		}
		reachable[cur] = true
		if to, ok := w.edges[cur]; ok && to != End {
			frontier = append(frontier, to)
		}
		if ce, ok := w.conditional[cur]; ok {
			for _, to := range ce.targets {
				if to != End {
					frontier = append(frontier, to)
				}
			}
		}
	}
	for name := range w.nodes {
		if !reachable[name] {
			return nil, fmt.Errorf("graph: node %q is unreachable", name)
		}
	}

	return &CompiledGraph{
		nodes:        w.nodes,
		edges:        w.edges,
		conditional:  w.conditional,
		entry:        w.entry,
		entryDecide:  w.entryDecide,
		entryTargets: w.entryTargets,
	}, nil
}

// ===== Execution =====

// maxSteps guards a run against a miswired cycle. The assistant graph
// terminates well under this through its retry budget.
const maxSteps = 64

// CompiledGraph is an immutable, validated workflow. It is safe for
// concurrent Invoke calls.
type CompiledGraph struct {
	nodes        map[NodeName]NodeFunc
	edges        map[NodeName]NodeName
	conditional  map[NodeName]conditionalEdge
	entry        NodeName
	entryDecide  DecisionFunc
	entryTargets map[Label]NodeName
}

// RunOption configures a single Invoke.
type RunOption func(*runConfig)

type runConfig struct {
	progress ProgressFunc
}

// WithProgress registers a callback observing node starts and edge
// decisions for one run.
func WithProgress(fn ProgressFunc) RunOption {
	return func(rc *runConfig) { rc.progress = fn }
}

// ProgressFromOptions returns the progress callback configured by opts, or
// nil. Alternate TurnRunner implementations use it to honor WithProgress.
func ProgressFromOptions(opts ...RunOption) ProgressFunc {
	var rc runConfig
	for _, opt := range opts {
		opt(&rc)
	}
	return rc.progress
}

// Invoke runs the graph to completion from the initial state and returns the
// final state.
//
// # Outputs
//
// The state at the moment of failure is returned alongside any error, so
// callers can report partial progress.
func (g *CompiledGraph) Invoke(ctx context.Context, initial State, opts ...RunOption) (State, error) {
	ctx, span := workflowTracer.Start(ctx, "graph.Invoke")
	defer span.End()

	var rc runConfig
	for _, opt := range opts {
		opt(&rc)
	}

	st := initial
	cur, err := g.entryNode(ctx, st, &rc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "entry decision failed")
		return st, err
	}

	steps := 0
	for cur != End {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "context done")
			return st, fmt.Errorf("graph: run canceled at node %q: %w", cur, err)
		}
		steps++
		if steps > maxSteps {
			err := fmt.Errorf("graph: exceeded %d steps at node %q", maxSteps, cur)
			span.RecordError(err)
			span.SetStatus(codes.Error, "step limit")
			return st, err
		}

		if rc.progress != nil {
			rc.progress(cur, "")
		}
		start := time.Now()
		update, err := g.nodes[cur](ctx, st)
		recordNodeDuration(string(cur), time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "node failed")
			return st, fmt.Errorf("graph: node %q: %w", cur, err)
		}
		st = st.Apply(update)

		next, err := g.nextNode(ctx, cur, st, &rc)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "decision failed")
			return st, err
		}
		cur = next
	}

	span.SetAttributes(attribute.Int("graph.steps", steps))
	slog.Debug("Graph run complete", "steps", steps, "retries", st.RetryCount)
	return st, nil
}

func (g *CompiledGraph) entryNode(ctx context.Context, st State, rc *runConfig) (NodeName, error) {
	if g.entryDecide == nil {
		return g.entry, nil
	}
	label, err := g.entryDecide(ctx, st)
	if err != nil {
		return End, fmt.Errorf("graph: entry decision: %w", err)
	}
	if rc.progress != nil {
		rc.progress("entry", label)
	}
	next, ok := g.entryTargets[label]
	if !ok {
		return End, fmt.Errorf("graph: entry decision returned unknown label %q", label)
	}
	return next, nil
}

func (g *CompiledGraph) nextNode(ctx context.Context, cur NodeName, st State, rc *runConfig) (NodeName, error) {
	if to, ok := g.edges[cur]; ok {
		return to, nil
	}
	ce := g.conditional[cur]
	label, err := ce.decide(ctx, st)
	if err != nil {
		return End, fmt.Errorf("graph: decision after node %q: %w", cur, err)
	}
	if rc.progress != nil {
		rc.progress(cur, label)
	}
	next, ok := ce.targets[label]
	if !ok {
		return End, fmt.Errorf("graph: decision after node %q returned unknown label %q", cur, label)
	}
	return next, nil
}
