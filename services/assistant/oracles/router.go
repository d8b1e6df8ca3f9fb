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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/campusmind/campusmind/services/llm"
)

var oracleTracer = otel.Tracer("campusmind.assistant.oracles")

// judgmentParams are the sampling settings shared by every oracle call.
// Judgments must be deterministic, so temperature is pinned to zero.
func judgmentParams(model string) llm.GenerationParams {
	temperature := float32(0)
	return llm.GenerationParams{Model: model, Temperature: &temperature}
}

// RouterOracle decides whether a question is answerable from the program
// vector store or needs a live web search.
type RouterOracle struct {
	client llm.LLMClient
}

// NewRouter returns a RouterOracle backed by the given client.
func NewRouter(client llm.LLMClient) *RouterOracle {
	return &RouterOracle{client: client}
}

// Route returns "vectorstore" or "websearch" for the question.
//
// # Outputs
//
// An error when the model call or the reply parse fails. Callers decide the
// default route; this oracle reports only what the model said.
func (r *RouterOracle) Route(ctx context.Context, question, model string) (string, error) {
	ctx, span := oracleTracer.Start(ctx, "oracles.Route")
	defer span.End()

	response, err := r.client.Generate(ctx, fmt.Sprintf(routerPromptTemplate, question), judgmentParams(model))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "router call failed")
		recordOracleCall("router", "error")
		return "", fmt.Errorf("route question: %w", err)
	}
	datasource, err := parseDatasource(response)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "router reply unparseable")
		recordOracleCall("router", "parse_error")
		return "", fmt.Errorf("route question: %w", err)
	}
	span.SetAttributes(attribute.String("route.datasource", datasource))
	recordOracleCall("router", "ok")
	return datasource, nil
}
