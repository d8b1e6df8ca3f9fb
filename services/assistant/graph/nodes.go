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

	"golang.org/x/sync/errgroup"

	"github.com/campusmind/campusmind/services/assistant/datatypes"
)

// ===== Collaborator interfaces =====

// QuestionExpander rewrites a question before routing, typically expanding
// program acronyms so retrieval matches glossary phrasing.
type QuestionExpander interface {
	Expand(question string) string
}

// Router picks the datasource for a question. It returns "websearch" or
// "vectorstore"; anything else is treated as vectorstore.
type Router interface {
	Route(ctx context.Context, question, model string) (string, error)
}

// Retriever fetches evidence from the vector store.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]datatypes.Document, error)
}

// WebSearcher fetches evidence from the public web. Implementations cap
// their own result count; an empty result is not an error.
type WebSearcher interface {
	Search(ctx context.Context, question string) ([]datatypes.Document, error)
}

// RelevanceGrader judges whether one document helps answer the question.
type RelevanceGrader interface {
	Relevant(ctx context.Context, question, document, model string) (bool, error)
}

// Generator produces an answer from the question and the surviving evidence.
type Generator interface {
	Answer(ctx context.Context, question string, docs []datatypes.Document, model string) (string, error)
}

// HallucinationGrader judges whether a generation is grounded in the
// evidence it was produced from.
type HallucinationGrader interface {
	Grounded(ctx context.Context, docs []datatypes.Document, generation, model string) (bool, error)
}

// AnswerGrader judges whether a generation actually addresses the question.
type AnswerGrader interface {
	Addresses(ctx context.Context, question, generation, model string) (bool, error)
}

// ===== Assembly =====

// DefaultRetryLimit bounds verification retries per turn. A turn therefore
// makes at most DefaultRetryLimit+1 generation attempts.
const DefaultRetryLimit = 2

// defaultGradeConcurrency caps parallel relevance-grader calls.
const defaultGradeConcurrency = 8

// FallbackAnswer is returned when the retry budget is spent and no usable
// generation survived.
const FallbackAnswer = "I could not find a reliable answer to that in the program materials. " +
	"Please rephrase the question or check the official program documentation."

// Dependencies holds the collaborators the assistant graph is built from.
// All fields except Expander are required.
type Dependencies struct {
	Expander            QuestionExpander
	Router              Router
	Retriever           Retriever
	Searcher            WebSearcher
	RelevanceGrader     RelevanceGrader
	Generator           Generator
	HallucinationGrader HallucinationGrader
	AnswerGrader        AnswerGrader

	// RetryLimit overrides DefaultRetryLimit when positive.
	RetryLimit int

	// GradeConcurrency overrides defaultGradeConcurrency when positive.
	GradeConcurrency int
}

func (d *Dependencies) validate() error {
	switch {
	case d.Router == nil:
		return fmt.Errorf("graph: Router is required")
	case d.Retriever == nil:
		return fmt.Errorf("graph: Retriever is required")
	case d.Searcher == nil:
		return fmt.Errorf("graph: Searcher is required")
	case d.RelevanceGrader == nil:
		return fmt.Errorf("graph: RelevanceGrader is required")
	case d.Generator == nil:
		return fmt.Errorf("graph: Generator is required")
	case d.HallucinationGrader == nil:
		return fmt.Errorf("graph: HallucinationGrader is required")
	case d.AnswerGrader == nil:
		return fmt.Errorf("graph: AnswerGrader is required")
	}
	return nil
}

// Graph is the compiled assistant workflow plus its collaborators. It is
// safe for concurrent use.
type Graph struct {
	compiled   *CompiledGraph
	retryLimit int
}

// Result is the outcome of one completed turn.
type Result struct {
	Answer  string
	Outcome Label
	Sources []datatypes.SourceInfo
	Retries int
}

// New wires the assistant graph:
//
//	expand_question --router--> retrieve | web_search
//	retrieve -> grade_documents --> web_search | generate
//	web_search -> generate -> grade_answer
//	grade_answer --> END (useful, fallback)
//	             --> retry --> web_search (not supported, not useful)
func New(deps Dependencies) (*Graph, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	retryLimit := deps.RetryLimit
	if retryLimit <= 0 {
		retryLimit = DefaultRetryLimit
	}
	gradeConcurrency := deps.GradeConcurrency
	if gradeConcurrency <= 0 {
		gradeConcurrency = defaultGradeConcurrency
	}

	n := &nodeSet{deps: deps, retryLimit: retryLimit, gradeConcurrency: gradeConcurrency}

	compiled, err := NewWorkflow().
		AddNode(NodeExpandQuestion, n.expandQuestion).
		AddNode(NodeRetrieve, n.retrieve).
		AddNode(NodeGradeDocuments, n.gradeDocuments).
		AddNode(NodeWebSearch, n.webSearch).
		AddNode(NodeGenerate, n.generate).
		AddNode(NodeGradeAnswer, n.gradeAnswer).
		AddNode(NodeRetry, n.retry).
		SetEntryPoint(NodeExpandQuestion).
		AddConditionalEdges(NodeExpandQuestion, n.routeQuestion, map[Label]NodeName{
			LabelVectorstore: NodeRetrieve,
			LabelWebSearch:   NodeWebSearch,
		}).
		AddEdge(NodeRetrieve, NodeGradeDocuments).
		AddConditionalEdges(NodeGradeDocuments, decideAfterGrading, map[Label]NodeName{
			LabelWebSearch: NodeWebSearch,
			LabelGenerate:  NodeGenerate,
		}).
		AddEdge(NodeWebSearch, NodeGenerate).
		AddEdge(NodeGenerate, NodeGradeAnswer).
		AddConditionalEdges(NodeGradeAnswer, decideAfterVerification, map[Label]NodeName{
			LabelUseful:       End,
			LabelFallback:     End,
			LabelNotSupported: NodeRetry,
			LabelNotUseful:    NodeRetry,
		}).
		AddEdge(NodeRetry, NodeWebSearch).
		Compile()
	if err != nil {
		return nil, err
	}
	return &Graph{compiled: compiled, retryLimit: retryLimit}, nil
}

// Ask runs one full turn.
//
// # Outputs
//
// A Result whose Outcome is LabelUseful or LabelFallback. Errors are
// infrastructure failures (retrieval or generation unavailable), never
// verification failures, those are absorbed by the retry budget.
func (g *Graph) Ask(ctx context.Context, question, model string, opts ...RunOption) (Result, error) {
	initial := State{Question: question, Model: model}
	final, err := g.compiled.Invoke(ctx, initial, opts...)
	if err != nil {
		return Result{}, err
	}

	answer := final.Generation
	if final.Outcome == LabelFallback && answer == "" {
		answer = FallbackAnswer
	}
	recordTurnOutcome(final.Outcome, final.RetryCount)
	return Result{
		Answer:  answer,
		Outcome: final.Outcome,
		Sources: datatypes.SourcesFromDocuments(final.Documents),
		Retries: final.RetryCount,
	}, nil
}

// ===== Nodes =====

type nodeSet struct {
	deps             Dependencies
	retryLimit       int
	gradeConcurrency int
}

func (n *nodeSet) expandQuestion(_ context.Context, st State) (Update, error) {
	if n.deps.Expander == nil {
		return Update{}, nil
	}
	expanded := n.deps.Expander.Expand(st.Question)
	if expanded != st.Question {
		slog.Debug("Expanded question", "original", st.Question, "expanded", expanded)
	}
	return Update{Question: strPtr(expanded)}, nil
}

// routeQuestion is the decision after expansion. An unknown or failed route
// defaults to the vector store, campus questions are the common case and
// the relevance filter catches a bad default.
func (n *nodeSet) routeQuestion(ctx context.Context, st State) (Label, error) {
	datasource, err := n.deps.Router.Route(ctx, st.Question, st.Model)
	if err != nil {
		slog.Warn("Router failed, defaulting to vectorstore", "error", err)
		return LabelVectorstore, nil
	}
	if datasource == string(LabelWebSearch) {
		return LabelWebSearch, nil
	}
	return LabelVectorstore, nil
}

func (n *nodeSet) retrieve(ctx context.Context, st State) (Update, error) {
	docs, err := n.deps.Retriever.Retrieve(ctx, st.Question)
	if err != nil {
		return Update{}, fmt.Errorf("retrieve: %w", err)
	}
	slog.Debug("Retrieved documents", "count", len(docs))
	return Update{Documents: docsPtr(docs)}, nil
}

// gradeDocuments filters the evidence set with the relevance grader. Grading
// runs concurrently, one goroutine per document, but the surviving slice
// preserves retrieval order. A grader failure excludes the document rather
// than failing the turn.
func (n *nodeSet) gradeDocuments(ctx context.Context, st State) (Update, error) {
	keep := make([]bool, len(st.Documents))

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(n.gradeConcurrency)
	for i, doc := range st.Documents {
		grp.Go(func() error {
			relevant, err := n.deps.RelevanceGrader.Relevant(grpCtx, st.Question, doc.Content, st.Model)
			if err != nil {
				slog.Warn("Relevance grading failed, excluding document",
					"index", i, "source", doc.Metadata.Source, "error", err)
				recordDocumentExcluded("grader_error")
				return nil
			}
			if !relevant {
				recordDocumentExcluded("irrelevant")
			}
			keep[i] = relevant
			return nil
		})
	}
	// Goroutines never return errors; Wait only observes context cancellation.
	if err := grp.Wait(); err != nil {
		return Update{}, fmt.Errorf("grade documents: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Update{}, fmt.Errorf("grade documents: %w", err)
	}

	kept := make([]datatypes.Document, 0, len(st.Documents))
	for i, doc := range st.Documents {
		if keep[i] {
			kept = append(kept, doc)
		}
	}
	// Web search is a last resort: only when grading left no usable
	// evidence at all. Partial exclusions proceed on the surviving set.
	needsWeb := len(kept) == 0
	slog.Debug("Graded documents", "retrieved", len(st.Documents), "kept", len(kept), "web_search", needsWeb)
	return Update{Documents: docsPtr(kept), NeedsWebSearch: boolPtr(needsWeb)}, nil
}

func decideAfterGrading(_ context.Context, st State) (Label, error) {
	if st.NeedsWebSearch {
		return LabelWebSearch, nil
	}
	return LabelGenerate, nil
}

// webSearch augments the current evidence with web results. Search failures
// are tolerated, the turn proceeds on whatever evidence it already has.
func (n *nodeSet) webSearch(ctx context.Context, st State) (Update, error) {
	results, err := n.deps.Searcher.Search(ctx, st.Question)
	if err != nil {
		slog.Warn("Web search failed, continuing without web evidence", "error", err)
		return Update{NeedsWebSearch: boolPtr(false)}, nil
	}
	merged := append(append([]datatypes.Document{}, st.Documents...), results...)
	slog.Debug("Web search complete", "results", len(results), "total", len(merged))
	return Update{Documents: docsPtr(merged), NeedsWebSearch: boolPtr(false)}, nil
}

func (n *nodeSet) generate(ctx context.Context, st State) (Update, error) {
	answer, err := n.deps.Generator.Answer(ctx, st.Question, st.Documents, st.Model)
	if err != nil {
		return Update{}, fmt.Errorf("generate: %w", err)
	}
	return Update{Generation: strPtr(answer)}, nil
}

// gradeAnswer runs the two-stage verification: grounding first, usefulness
// second. The failing stage's label is stored in the state; once the retry
// budget is spent a failure becomes LabelFallback instead. Grader errors
// count as failed checks so transient oracle trouble degrades to the
// bounded retry path rather than aborting the turn.
func (n *nodeSet) gradeAnswer(ctx context.Context, st State) (Update, error) {
	outcome := n.verify(ctx, st)
	if outcome != LabelUseful && st.RetryCount >= n.retryLimit {
		slog.Info("Retry budget exhausted, falling back",
			"retries", st.RetryCount, "failed_check", string(outcome))
		outcome = LabelFallback
	}
	return Update{Outcome: &outcome}, nil
}

func (n *nodeSet) verify(ctx context.Context, st State) Label {
	grounded, err := n.deps.HallucinationGrader.Grounded(ctx, st.Documents, st.Generation, st.Model)
	if err != nil {
		slog.Warn("Hallucination grading failed, treating answer as unsupported", "error", err)
		return LabelNotSupported
	}
	if !grounded {
		return LabelNotSupported
	}

	addresses, err := n.deps.AnswerGrader.Addresses(ctx, st.Question, st.Generation, st.Model)
	if err != nil {
		slog.Warn("Answer grading failed, treating answer as not useful", "error", err)
		return LabelNotUseful
	}
	if !addresses {
		return LabelNotUseful
	}
	return LabelUseful
}

func decideAfterVerification(_ context.Context, st State) (Label, error) {
	switch st.Outcome {
	case LabelUseful, LabelFallback, LabelNotSupported, LabelNotUseful:
		return st.Outcome, nil
	default:
		return "", fmt.Errorf("graph: verification produced unknown outcome %q", st.Outcome)
	}
}

// retry consumes one unit of the retry budget. Both failure classes
// re-enter through web search so the next generation attempt can draw on
// fresh evidence, not just a new sample over the old set.
func (n *nodeSet) retry(_ context.Context, st State) (Update, error) {
	next := st.RetryCount + 1
	slog.Info("Retrying turn", "attempt", next, "limit", n.retryLimit, "failed_check", string(st.Outcome))
	return Update{RetryCount: intPtr(next)}, nil
}
