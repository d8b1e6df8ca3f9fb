// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracles

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/campusmind/services/assistant/datatypes"
	"github.com/campusmind/campusmind/services/llm"
)

type mockLLM struct {
	response   string
	err        error
	lastPrompt string
	lastParams llm.GenerationParams
}

func (m *mockLLM) Generate(_ context.Context, prompt string, params llm.GenerationParams) (string, error) {
	m.lastPrompt = prompt
	m.lastParams = params
	return m.response, m.err
}

func (m *mockLLM) Chat(_ context.Context, _ []llm.Message, params llm.GenerationParams) (string, error) {
	m.lastParams = params
	return m.response, m.err
}

// ===== Parsing =====

func TestParseBinaryScore(t *testing.T) {
	cases := []struct {
		name     string
		response string
		want     bool
		wantErr  bool
	}{
		{"plain json yes", `{"binary_score": "yes"}`, true, false},
		{"plain json no", `{"binary_score": "no"}`, false, false},
		{"uppercase", `{"binary_score": "YES"}`, true, false},
		{"fenced", "```json\n{\"binary_score\": \"no\"}\n```", false, false},
		{"prose wrapped", `Sure! Here is my grade: {"binary_score": "yes"} Hope that helps.`, true, false},
		{"bare yes", "yes", true, false},
		{"bare no with period", "No.", false, false},
		{"garbage", "I cannot grade this.", false, true},
		{"wrong key", `{"score": "yes"}`, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseBinaryScore(tc.response)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseDatasource(t *testing.T) {
	cases := []struct {
		name     string
		response string
		want     string
		wantErr  bool
	}{
		{"vectorstore", `{"datasource": "vectorstore"}`, "vectorstore", false},
		{"websearch", `{"datasource": "websearch"}`, "websearch", false},
		{"underscore variant", `{"datasource": "web_search"}`, "websearch", false},
		{"hyphen variant", `{"datasource": "web-search"}`, "websearch", false},
		{"prose wrapped", `The answer is {"datasource": "vectorstore"}.`, "vectorstore", false},
		{"no json", "vectorstore", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseDatasource(tc.response)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// ===== Oracles =====

func TestRouter_ParsesDatasource(t *testing.T) {
	client := &mockLLM{response: `{"datasource": "websearch"}`}
	router := NewRouter(client)

	datasource, err := router.Route(context.Background(), "who won the match yesterday?", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.Equal(t, "websearch", datasource)
	assert.Contains(t, client.lastPrompt, "who won the match yesterday?")
	require.NotNil(t, client.lastParams.Temperature, "judgments must pin temperature")
	assert.Zero(t, *client.lastParams.Temperature)
	assert.Equal(t, datatypes.DefaultModel, client.lastParams.Model)
}

func TestRouter_PropagatesModelError(t *testing.T) {
	client := &mockLLM{err: errors.New("connection refused")}
	router := NewRouter(client)

	_, err := router.Route(context.Background(), "q", datatypes.DefaultModel)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "route question")
}

func TestRelevanceGrader_IncludesDocumentAndQuestion(t *testing.T) {
	client := &mockLLM{response: `{"binary_score": "yes"}`}
	grader := NewRelevanceGrader(client)

	relevant, err := grader.Relevant(context.Background(), "what is MLT?", "MLT stands for Machine Learning Techniques", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.True(t, relevant)
	assert.Contains(t, client.lastPrompt, "Machine Learning Techniques")
	assert.Contains(t, client.lastPrompt, "what is MLT?")
}

func TestHallucinationGrader_EmptyEvidenceIsUngrounded(t *testing.T) {
	client := &mockLLM{response: `{"binary_score": "yes"}`}
	grader := NewHallucinationGrader(client)

	grounded, err := grader.Grounded(context.Background(), nil, "some claim", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.False(t, grounded)
	assert.Empty(t, client.lastPrompt, "no oracle call should be made without evidence")
}

func TestHallucinationGrader_GradesAgainstFacts(t *testing.T) {
	client := &mockLLM{response: `{"binary_score": "no"}`}
	grader := NewHallucinationGrader(client)

	docs := []datatypes.Document{
		{Content: "The program has four levels.", Metadata: datatypes.DocumentMetadata{Source: "faq"}},
	}
	grounded, err := grader.Grounded(context.Background(), docs, "The program has nine levels.", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.False(t, grounded)
	assert.Contains(t, client.lastPrompt, "four levels")
	assert.Contains(t, client.lastPrompt, "nine levels")
}

func TestAnswerGrader_GradesResolution(t *testing.T) {
	client := &mockLLM{response: `{"binary_score": "yes"}`}
	grader := NewAnswerGrader(client)

	addresses, err := grader.Addresses(context.Background(), "what is the fee?", "The fee is 1000 per term.", datatypes.DefaultModel)
	require.NoError(t, err)
	assert.True(t, addresses)
}

func TestGenerator_FormatsContextWithSources(t *testing.T) {
	client := &mockLLM{response: "  The program has four levels.  "}
	gen := NewAnswerGenerator(client)

	docs := []datatypes.Document{
		{Content: "Level details.", Metadata: datatypes.DocumentMetadata{Source: "handbook"}},
		{Content: "More details.", Metadata: datatypes.DocumentMetadata{Source: "web"}},
	}
	answer, err := gen.Answer(context.Background(), "how many levels?", docs, datatypes.DefaultModel)
	require.NoError(t, err)
	assert.Equal(t, "The program has four levels.", answer, "answers should be trimmed")
	assert.Contains(t, client.lastPrompt, "Source: handbook")
	assert.Contains(t, client.lastPrompt, "Source: web")
	assert.Nil(t, client.lastParams.Temperature, "generation keeps default sampling")
}

func TestGenerator_EmptyEvidenceUsesPlaceholder(t *testing.T) {
	client := &mockLLM{response: "I don't know."}
	gen := NewAnswerGenerator(client)

	_, err := gen.Answer(context.Background(), "q", nil, datatypes.DefaultModel)
	require.NoError(t, err)
	assert.Contains(t, client.lastPrompt, noContextPlaceholder)
}
