// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ingest builds and maintains the program document index: Weaviate
// schema management, chunked batch imports, the acronym glossary corpus,
// and the site crawler that feeds it.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// DefaultVectorizer is the Weaviate module used to embed document chunks.
const DefaultVectorizer = "text2vec-transformers"

// ProgramDocumentSchema returns the Weaviate class definition for program
// evidence chunks.
//
// # Properties
//
//   - content: the chunk text, vectorized for nearText search.
//   - source: logical document name (e.g. "program_faq" or a page URL).
//   - url: origin page for crawled content, empty for manual uploads.
//   - title: page or document title, empty when unknown.
func ProgramDocumentSchema(className, vectorizer string) *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       className,
		Description: "Chunked program documentation used as QA evidence.",
		Vectorizer:  vectorizer,
		Properties: []*models.Property{
			{
				Name:        "content",
				DataType:    []string{"text"},
				Description: "The chunk text.",
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "Logical name of the originating document.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "url",
				DataType:        []string{"text"},
				Description:     "Origin URL for crawled content.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:        "title",
				DataType:    []string{"text"},
				Description: "Page or document title.",
			},
		},
	}
}

// EnsureSchema creates the program document class if it does not exist.
// Existing classes are left untouched, Weaviate does not support in-place
// property changes.
func EnsureSchema(ctx context.Context, client *weaviate.Client, className, vectorizer string) error {
	if vectorizer == "" {
		vectorizer = DefaultVectorizer
	}
	class := ProgramDocumentSchema(className, vectorizer)

	_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx)
	if err == nil {
		slog.Info("Schema already exists", "class", class.Class)
		return nil
	}

	slog.Info("Schema not found, creating it", "class", class.Class)
	if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create schema for class %s: %w", class.Class, err)
	}
	slog.Info("Successfully created schema", "class", class.Class)
	return nil
}
