// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracles

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/campusmind/campusmind/services/assistant/datatypes"
	"github.com/campusmind/campusmind/services/llm"
)

// binaryJudgment runs one yes/no oracle call and parses the verdict.
func binaryJudgment(ctx context.Context, client llm.LLMClient, oracle, prompt, model string) (bool, error) {
	ctx, span := oracleTracer.Start(ctx, "oracles."+oracle,
		trace.WithAttributes(attribute.String("oracle.name", oracle)))
	defer span.End()

	response, err := client.Generate(ctx, prompt, judgmentParams(model))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "oracle call failed")
		recordOracleCall(oracle, "error")
		return false, fmt.Errorf("%s: %w", oracle, err)
	}
	verdict, err := parseBinaryScore(response)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "oracle reply unparseable")
		recordOracleCall(oracle, "parse_error")
		return false, fmt.Errorf("%s: %w", oracle, err)
	}
	span.SetAttributes(attribute.Bool("oracle.verdict", verdict))
	recordOracleCall(oracle, "ok")
	return verdict, nil
}

// RelevanceOracle judges whether a retrieved document bears on a question.
type RelevanceOracle struct {
	client llm.LLMClient
}

// NewRelevanceGrader returns a RelevanceOracle backed by the given client.
func NewRelevanceGrader(client llm.LLMClient) *RelevanceOracle {
	return &RelevanceOracle{client: client}
}

// Relevant reports whether the document helps answer the question.
func (g *RelevanceOracle) Relevant(ctx context.Context, question, document, model string) (bool, error) {
	prompt := fmt.Sprintf(relevancePromptTemplate, document, question)
	return binaryJudgment(ctx, g.client, "relevance", prompt, model)
}

// HallucinationOracle judges whether a generation sticks to its evidence.
type HallucinationOracle struct {
	client llm.LLMClient
}

// NewHallucinationGrader returns a HallucinationOracle backed by the given
// client.
func NewHallucinationGrader(client llm.LLMClient) *HallucinationOracle {
	return &HallucinationOracle{client: client}
}

// Grounded reports whether the generation is supported by the documents.
// With no evidence at all nothing can be supported, so the verdict is no
// without an oracle call.
func (g *HallucinationOracle) Grounded(ctx context.Context, docs []datatypes.Document, generation, model string) (bool, error) {
	if len(docs) == 0 {
		return false, nil
	}
	prompt := fmt.Sprintf(hallucinationPromptTemplate, formatFacts(docs), generation)
	return binaryJudgment(ctx, g.client, "hallucination", prompt, model)
}

// AnswerOracle judges whether a generation resolves the question asked.
type AnswerOracle struct {
	client llm.LLMClient
}

// NewAnswerGrader returns an AnswerOracle backed by the given client.
func NewAnswerGrader(client llm.LLMClient) *AnswerOracle {
	return &AnswerOracle{client: client}
}

// Addresses reports whether the generation resolves the question.
func (g *AnswerOracle) Addresses(ctx context.Context, question, generation, model string) (bool, error) {
	prompt := fmt.Sprintf(answerPromptTemplate, question, generation)
	return binaryJudgment(ctx, g.client, "answer", prompt, model)
}

// formatFacts renders evidence documents as the facts block of a grading
// prompt.
func formatFacts(docs []datatypes.Document) string {
	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString(doc.Content)
	}
	return b.String()
}
