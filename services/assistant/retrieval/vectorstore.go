// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval provides the evidence sources the answer graph draws
// from: the Weaviate vector store, live web search, and the acronym
// expander that rewrites questions before retrieval.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/campusmind/campusmind/services/assistant/datatypes"
)

var retrievalTracer = otel.Tracer("campusmind.assistant.retrieval")

// DefaultClassName is the Weaviate class holding program documents.
const DefaultClassName = "ProgramDocument"

// defaultTopK is how many chunks a semantic query returns.
const defaultTopK = 4

// VectorStore retrieves program evidence from Weaviate via nearText search.
type VectorStore struct {
	client    *weaviate.Client
	className string
	topK      int
}

// VectorStoreOption configures a VectorStore.
type VectorStoreOption func(*VectorStore)

// WithClassName overrides the Weaviate class queried.
func WithClassName(name string) VectorStoreOption {
	return func(v *VectorStore) {
		if name != "" {
			v.className = name
		}
	}
}

// WithTopK overrides how many chunks a query returns.
func WithTopK(k int) VectorStoreOption {
	return func(v *VectorStore) {
		if k > 0 {
			v.topK = k
		}
	}
}

// NewVectorStore returns a VectorStore over the given Weaviate client.
func NewVectorStore(client *weaviate.Client, opts ...VectorStoreOption) *VectorStore {
	v := &VectorStore{client: client, className: DefaultClassName, topK: defaultTopK}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Retrieve runs a nearText query for the question and returns the matching
// chunks in relevance order.
//
// # Outputs
//
// An empty slice when nothing matches; an error only when Weaviate itself
// fails.
func (v *VectorStore) Retrieve(ctx context.Context, question string) ([]datatypes.Document, error) {
	ctx, span := retrievalTracer.Start(ctx, "retrieval.VectorStore.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("retrieval.class", v.className))

	nearText := v.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{question})

	resp, err := v.client.GraphQL().Get().
		WithClassName(v.className).
		WithFields(
			graphql.Field{Name: "content"},
			graphql.Field{Name: "source"},
			graphql.Field{Name: "url"},
			graphql.Field{Name: "title"},
		).
		WithNearText(nearText).
		WithLimit(v.topK).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "weaviate query failed")
		return nil, fmt.Errorf("vector store query: %w", err)
	}
	if len(resp.Errors) > 0 {
		err := fmt.Errorf("vector store query: %s", resp.Errors[0].Message)
		span.RecordError(err)
		span.SetStatus(codes.Error, "weaviate returned errors")
		return nil, err
	}

	docs := v.parseResults(resp.Data)
	span.SetAttributes(attribute.Int("retrieval.results", len(docs)))
	slog.Debug("Vector store query complete", "class", v.className, "results", len(docs))
	return docs, nil
}

func (v *VectorStore) parseResults(data map[string]models.JSONObject) []datatypes.Document {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil
	}
	items, ok := get[v.className].([]any)
	if !ok {
		return nil
	}

	docs := make([]datatypes.Document, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		content, _ := fields["content"].(string)
		if content == "" {
			continue
		}
		source, _ := fields["source"].(string)
		url, _ := fields["url"].(string)
		title, _ := fields["title"].(string)
		docs = append(docs, datatypes.Document{
			Content: content,
			Metadata: datatypes.DocumentMetadata{
				Source: source,
				URL:    url,
				Title:  title,
			},
		})
	}
	return docs
}
