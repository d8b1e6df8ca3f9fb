// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/campusmind/services/assistant/datatypes"
	"github.com/campusmind/campusmind/services/assistant/retrieval"
)

// ===== Mock collaborators =====

type mockRouter struct {
	datasource string
	err        error
}

func (m *mockRouter) Route(_ context.Context, _, _ string) (string, error) {
	return m.datasource, m.err
}

type mockRetriever struct {
	docs  []datatypes.Document
	err   error
	calls int
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string) ([]datatypes.Document, error) {
	m.calls++
	return m.docs, m.err
}

type mockSearcher struct {
	docs  []datatypes.Document
	err   error
	calls int
}

func (m *mockSearcher) Search(_ context.Context, _ string) ([]datatypes.Document, error) {
	m.calls++
	return m.docs, m.err
}

// mockRelevance grades by content prefix: documents starting with "ok" are
// relevant, those starting with "err" fail the grader call.
type mockRelevance struct{}

func (mockRelevance) Relevant(_ context.Context, _, document, _ string) (bool, error) {
	if strings.HasPrefix(document, "err") {
		return false, errors.New("grader unavailable")
	}
	return strings.HasPrefix(document, "ok"), nil
}

type mockGenerator struct {
	mu      sync.Mutex
	answers []string
	err     error
	calls   int
}

func (m *mockGenerator) Answer(_ context.Context, _ string, _ []datatypes.Document, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	answer := "an answer"
	if m.calls < len(m.answers) {
		answer = m.answers[m.calls]
	}
	m.calls++
	return answer, nil
}

// scriptedBoolGrader returns its verdicts in call order, repeating the last
// one once the script runs out.
type scriptedBoolGrader struct {
	mu       sync.Mutex
	verdicts []bool
	err      error
	calls    int
}

func (m *scriptedBoolGrader) next() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	idx := m.calls
	m.calls++
	if idx >= len(m.verdicts) {
		idx = len(m.verdicts) - 1
	}
	if idx < 0 {
		return true, nil
	}
	return m.verdicts[idx], nil
}

type mockHallucination struct{ scriptedBoolGrader }

func (m *mockHallucination) Grounded(_ context.Context, _ []datatypes.Document, _, _ string) (bool, error) {
	return m.next()
}

type mockAnswerGrader struct{ scriptedBoolGrader }

func (m *mockAnswerGrader) Addresses(_ context.Context, _, _, _ string) (bool, error) {
	return m.next()
}

type upperExpander struct{}

func (upperExpander) Expand(question string) string { return strings.ToUpper(question) }

func doc(content, source string) datatypes.Document {
	return datatypes.Document{Content: content, Metadata: datatypes.DocumentMetadata{Source: source}}
}

// happyDeps wires mocks for a turn that routes to the vector store, keeps
// all evidence, and passes verification first try.
func happyDeps() (Dependencies, *mockRetriever, *mockSearcher, *mockGenerator) {
	retriever := &mockRetriever{docs: []datatypes.Document{doc("ok one", "faq"), doc("ok two", "faq")}}
	searcher := &mockSearcher{docs: []datatypes.Document{doc("ok web", "web")}}
	generator := &mockGenerator{}
	deps := Dependencies{
		Router:              &mockRouter{datasource: "vectorstore"},
		Retriever:           retriever,
		Searcher:            searcher,
		RelevanceGrader:     mockRelevance{},
		Generator:           generator,
		HallucinationGrader: &mockHallucination{scriptedBoolGrader{verdicts: []bool{true}}},
		AnswerGrader:        &mockAnswerGrader{scriptedBoolGrader{verdicts: []bool{true}}},
	}
	return deps, retriever, searcher, generator
}

// ===== Turn behavior =====

func TestAsk_HappyPathIsUseful(t *testing.T) {
	deps, retriever, searcher, generator := happyDeps()
	g, err := New(deps)
	require.NoError(t, err)

	result, err := g.Ask(context.Background(), "what is the program?", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.Equal(t, LabelUseful, result.Outcome)
	assert.Equal(t, "an answer", result.Answer)
	assert.Zero(t, result.Retries)
	assert.Equal(t, 1, retriever.calls)
	assert.Zero(t, searcher.calls, "clean evidence should not trigger web search")
	assert.Equal(t, 1, generator.calls)
	require.Len(t, result.Sources, 1, "chunks from the same source should be deduplicated")
	assert.Equal(t, "faq", result.Sources[0].Source)
}

func TestAsk_RouterSendsQuestionToWeb(t *testing.T) {
	deps, retriever, searcher, _ := happyDeps()
	deps.Router = &mockRouter{datasource: "websearch"}
	g, err := New(deps)
	require.NoError(t, err)

	result, err := g.Ask(context.Background(), "latest campus news?", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.Equal(t, LabelUseful, result.Outcome)
	assert.Zero(t, retriever.calls, "web-routed turns skip the vector store")
	assert.Equal(t, 1, searcher.calls)
}

func TestAsk_UnknownRouteDefaultsToVectorstore(t *testing.T) {
	deps, retriever, _, _ := happyDeps()
	deps.Router = &mockRouter{datasource: "something else"}
	g, err := New(deps)
	require.NoError(t, err)

	_, err = g.Ask(context.Background(), "what is the program?", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.Equal(t, 1, retriever.calls)
}

func TestAsk_RouterErrorDefaultsToVectorstore(t *testing.T) {
	deps, retriever, _, _ := happyDeps()
	deps.Router = &mockRouter{err: errors.New("oracle down")}
	g, err := New(deps)
	require.NoError(t, err)

	_, err = g.Ask(context.Background(), "what is the program?", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.Equal(t, 1, retriever.calls)
}

func TestAsk_ExpanderRewritesBeforeRouting(t *testing.T) {
	deps, _, _, _ := happyDeps()
	deps.Expander = upperExpander{}
	var routed string
	deps.Router = routerFunc(func(_ context.Context, question, _ string) (string, error) {
		routed = question
		return "vectorstore", nil
	})
	g, err := New(deps)
	require.NoError(t, err)

	_, err = g.Ask(context.Background(), "what is mlt?", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.Equal(t, "WHAT IS MLT?", routed, "router should see the expanded question")
}

type routerFunc func(ctx context.Context, question, model string) (string, error)

func (f routerFunc) Route(ctx context.Context, question, model string) (string, error) {
	return f(ctx, question, model)
}

// ===== Relevance filtering =====

func TestGradeDocuments_PreservesOrderAndFailsSafe(t *testing.T) {
	deps, _, _, _ := happyDeps()
	n := &nodeSet{deps: deps, retryLimit: DefaultRetryLimit, gradeConcurrency: 2}

	st := State{
		Question: "q",
		Documents: []datatypes.Document{
			doc("ok first", "a"),
			doc("bad irrelevant", "b"),
			doc("err grader failure", "c"),
			doc("ok second", "d"),
		},
	}
	update, err := n.gradeDocuments(context.Background(), st)
	require.NoError(t, err)

	next := st.Apply(update)
	require.Len(t, next.Documents, 2)
	assert.Equal(t, "ok first", next.Documents[0].Content, "surviving documents keep retrieval order")
	assert.Equal(t, "ok second", next.Documents[1].Content)
	assert.False(t, next.NeedsWebSearch, "surviving evidence means no web augmentation")
}

func TestGradeDocuments_EmptyEvidenceRequestsWebSearch(t *testing.T) {
	deps, _, _, _ := happyDeps()
	n := &nodeSet{deps: deps, retryLimit: DefaultRetryLimit, gradeConcurrency: 2}

	update, err := n.gradeDocuments(context.Background(), State{Question: "q"})
	require.NoError(t, err)
	next := State{}.Apply(update)
	assert.Empty(t, next.Documents)
	assert.True(t, next.NeedsWebSearch)
}

func TestAsk_PartialExclusionProceedsWithoutWebSearch(t *testing.T) {
	deps, _, searcher, _ := happyDeps()
	deps.Retriever = &mockRetriever{docs: []datatypes.Document{
		doc("ok keep", "faq"),
		doc("bad drop", "dropped"),
	}}
	g, err := New(deps)
	require.NoError(t, err)

	result, err := g.Ask(context.Background(), "q", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.Zero(t, searcher.calls, "web search runs only when no evidence survives grading")
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "faq", result.Sources[0].Source)
}

func TestAsk_WebSearchFailureIsTolerated(t *testing.T) {
	deps, _, _, _ := happyDeps()
	deps.Router = &mockRouter{datasource: "websearch"}
	deps.Searcher = &mockSearcher{err: errors.New("network down")}
	g, err := New(deps)
	require.NoError(t, err)

	result, err := g.Ask(context.Background(), "q", datatypes.DefaultModel)
	require.NoError(t, err, "a failed web search degrades the turn, it does not abort it")
	assert.Equal(t, LabelUseful, result.Outcome)
	assert.Empty(t, result.Sources)
}

// ===== Verification and retries =====

func TestAsk_UngroundedAnswerRetriesThroughWebSearch(t *testing.T) {
	deps, _, searcher, generator := happyDeps()
	deps.HallucinationGrader = &mockHallucination{scriptedBoolGrader{verdicts: []bool{false, true}}}
	g, err := New(deps)
	require.NoError(t, err)

	result, err := g.Ask(context.Background(), "q", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.Equal(t, LabelUseful, result.Outcome)
	assert.Equal(t, 1, result.Retries)
	assert.Equal(t, 2, generator.calls, "an unsupported answer should regenerate")
	assert.Equal(t, 1, searcher.calls, "a retry pulls fresh web evidence before regenerating")
}

func TestAsk_NotUsefulAnswerAugmentsFromWeb(t *testing.T) {
	deps, retriever, searcher, generator := happyDeps()
	deps.AnswerGrader = &mockAnswerGrader{scriptedBoolGrader{verdicts: []bool{false, true}}}
	g, err := New(deps)
	require.NoError(t, err)

	result, err := g.Ask(context.Background(), "q", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.Equal(t, LabelUseful, result.Outcome)
	assert.Equal(t, 1, result.Retries)
	assert.Equal(t, 1, retriever.calls, "retries never re-run retrieval")
	assert.Equal(t, 1, searcher.calls, "a not-useful answer should pull in web evidence")
	assert.Equal(t, 2, generator.calls)
}

func TestAsk_RetryBudgetBoundsGenerations(t *testing.T) {
	deps, _, _, generator := happyDeps()
	deps.HallucinationGrader = &mockHallucination{scriptedBoolGrader{verdicts: []bool{false}}}
	g, err := New(deps)
	require.NoError(t, err)

	result, err := g.Ask(context.Background(), "q", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.Equal(t, LabelFallback, result.Outcome)
	assert.Equal(t, DefaultRetryLimit, result.Retries)
	assert.Equal(t, DefaultRetryLimit+1, generator.calls,
		"a turn makes at most retry limit + 1 generation attempts")
	assert.NotEmpty(t, result.Answer, "fallback still returns the best-effort generation")
}

func TestAsk_GraderErrorsDegradeToFallback(t *testing.T) {
	deps, _, _, generator := happyDeps()
	deps.HallucinationGrader = &mockHallucination{scriptedBoolGrader{err: errors.New("oracle down")}}
	g, err := New(deps)
	require.NoError(t, err)

	result, err := g.Ask(context.Background(), "q", datatypes.DefaultModel)
	require.NoError(t, err, "grader outages must not abort the turn")
	assert.Equal(t, LabelFallback, result.Outcome)
	assert.Equal(t, DefaultRetryLimit+1, generator.calls)
}

func TestAsk_CustomRetryLimit(t *testing.T) {
	deps, _, _, generator := happyDeps()
	deps.RetryLimit = 1
	deps.AnswerGrader = &mockAnswerGrader{scriptedBoolGrader{verdicts: []bool{false}}}
	g, err := New(deps)
	require.NoError(t, err)

	result, err := g.Ask(context.Background(), "q", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.Equal(t, LabelFallback, result.Outcome)
	assert.Equal(t, 1, result.Retries)
	assert.Equal(t, 2, generator.calls)
}

func TestAsk_GenerationFailureAbortsTurn(t *testing.T) {
	deps, _, _, _ := happyDeps()
	deps.Generator = &mockGenerator{err: errors.New("model unavailable")}
	g, err := New(deps)
	require.NoError(t, err)

	_, err = g.Ask(context.Background(), "q", datatypes.DefaultModel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate")
}

func TestAsk_ProgressObservesTurn(t *testing.T) {
	deps, _, _, _ := happyDeps()
	g, err := New(deps)
	require.NoError(t, err)

	var nodes []NodeName
	_, err = g.Ask(context.Background(), "q", datatypes.DefaultModel,
		WithProgress(func(node NodeName, decision Label) {
			if decision == "" {
				nodes = append(nodes, node)
			}
		}))
	require.NoError(t, err)
	assert.Equal(t, []NodeName{
		NodeExpandQuestion, NodeRetrieve, NodeGradeDocuments, NodeGenerate, NodeGradeAnswer,
	}, nodes)
}

func TestNew_RejectsMissingCollaborators(t *testing.T) {
	deps, _, _, _ := happyDeps()
	deps.Generator = nil
	_, err := New(deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Generator")
}

// ===== Acronym preprocessing through a full turn =====

// questionRecorder wraps a retriever and remembers the question it was
// asked, so tests can observe what preprocessing produced.
type questionRecorder struct {
	docs     []datatypes.Document
	question string
}

func (m *questionRecorder) Retrieve(_ context.Context, question string) ([]datatypes.Document, error) {
	m.question = question
	return m.docs, nil
}

func acronymDeps(retriever *questionRecorder) Dependencies {
	return Dependencies{
		Expander:            retrieval.NewAcronymExpander(nil),
		Router:              &mockRouter{datasource: "vectorstore"},
		Retriever:           retriever,
		Searcher:            &mockSearcher{},
		RelevanceGrader:     mockRelevance{},
		Generator:           &mockGenerator{answers: []string{"MLT is Machine Learning Techniques."}},
		HallucinationGrader: &mockHallucination{scriptedBoolGrader{verdicts: []bool{true}}},
		AnswerGrader:        &mockAnswerGrader{scriptedBoolGrader{verdicts: []bool{true}}},
	}
}

func TestAsk_ExpandsAcronymBeforeRetrieval(t *testing.T) {
	retriever := &questionRecorder{docs: []datatypes.Document{doc("ok one", "faq"), doc("ok two", "faq")}}
	g, err := New(acronymDeps(retriever))
	require.NoError(t, err)

	result, err := g.Ask(context.Background(), "What is MLT?", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.Equal(t, "What is MLT (Machine Learning Techniques)?", retriever.question)
	assert.Equal(t, LabelUseful, result.Outcome)
	assert.Equal(t, "MLT is Machine Learning Techniques.", result.Answer)
}

func TestAsk_DefinitionQuestionIsNotExpanded(t *testing.T) {
	retriever := &questionRecorder{docs: []datatypes.Document{doc("ok one", "faq"), doc("ok two", "faq")}}
	g, err := New(acronymDeps(retriever))
	require.NoError(t, err)

	result, err := g.Ask(context.Background(), "What does MLT stand for?", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.Equal(t, "What does MLT stand for?", retriever.question)
	assert.Equal(t, LabelUseful, result.Outcome)
}

func TestAsk_IrrelevantEvidenceReplacedByWebResults(t *testing.T) {
	deps, _, _, _ := happyDeps()
	deps.Retriever = &mockRetriever{docs: []datatypes.Document{doc("bad only", "faq")}}
	deps.Searcher = &mockSearcher{docs: []datatypes.Document{
		doc("ok web one", "web-1"),
		doc("ok web two", "web-2"),
		doc("ok web three", "web-3"),
	}}
	g, err := New(deps)
	require.NoError(t, err)

	result, err := g.Ask(context.Background(), "q", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.Equal(t, LabelUseful, result.Outcome)
	assert.Len(t, result.Sources, 3, "the filtered vector doc is gone; only web evidence remains")
}
