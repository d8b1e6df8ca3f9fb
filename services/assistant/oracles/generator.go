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

	"github.com/campusmind/campusmind/services/assistant/datatypes"
	"github.com/campusmind/campusmind/services/llm"
)

// AnswerGenerator produces answers grounded in retrieved evidence.
type AnswerGenerator struct {
	client llm.LLMClient
}

// NewAnswerGenerator returns an AnswerGenerator backed by the given client.
func NewAnswerGenerator(client llm.LLMClient) *AnswerGenerator {
	return &AnswerGenerator{client: client}
}

// Answer generates a concise answer to the question from the documents.
// Generation uses the model's default sampling rather than the pinned
// zero temperature the judgment oracles use.
func (g *AnswerGenerator) Answer(ctx context.Context, question string, docs []datatypes.Document, model string) (string, error) {
	ctx, span := oracleTracer.Start(ctx, "oracles.Answer")
	defer span.End()
	span.SetAttributes(attribute.Int("generate.documents", len(docs)))

	prompt := fmt.Sprintf(generatePromptTemplate, question, formatContext(docs))
	answer, err := g.client.Generate(ctx, prompt, llm.GenerationParams{Model: model})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		recordOracleCall("generate", "error")
		return "", fmt.Errorf("generate answer: %w", err)
	}
	recordOracleCall("generate", "ok")
	return strings.TrimSpace(answer), nil
}

// formatContext renders evidence for the generation prompt, labeling each
// document with its source so the model can attribute claims.
func formatContext(docs []datatypes.Document) string {
	if len(docs) == 0 {
		return noContextPlaceholder
	}
	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString("Source: ")
		b.WriteString(doc.Metadata.Source)
		b.WriteString("\n")
		b.WriteString(doc.Content)
	}
	return b.String()
}
