// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides shared data structures for the assistant service.
//
// This file contains the evidence document shape exchanged between the
// vector store, the web search provider, and the answer graph. For HTTP
// request and response types, see ask.go.
package datatypes

// DocumentMetadata describes where a piece of evidence came from.
//
// Source is always present. URL and Title are populated for web search
// results and for crawled pages whose origin is known.
type DocumentMetadata struct {
	Source string `json:"source"`
	URL    string `json:"url,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Document is one retrieved unit of evidence.
//
// Documents are immutable once produced by their source; the graph replaces
// the whole document slice on every retrieval, filter, and merge step rather
// than mutating entries in place.
type Document struct {
	Content  string           `json:"content"`
	Metadata DocumentMetadata `json:"metadata"`
}

// SourceInfo is the citation entry returned to callers alongside an answer.
type SourceInfo struct {
	Source string `json:"source"`
	URL    string `json:"url,omitempty"`
	Title  string `json:"title,omitempty"`
}

// SourcesFromDocuments converts evidence documents into citation entries,
// deduplicating by URL so a page retrieved through multiple chunks is listed
// once. Documents without a URL are kept as plain source names.
func SourcesFromDocuments(docs []Document) []SourceInfo {
	seen := make(map[string]bool, len(docs))
	sources := make([]SourceInfo, 0, len(docs))
	for _, doc := range docs {
		key := doc.Metadata.URL
		if key == "" {
			key = doc.Metadata.Source
		}
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		sources = append(sources, SourceInfo{
			Source: doc.Metadata.Source,
			URL:    doc.Metadata.URL,
			Title:  doc.Metadata.Title,
		})
	}
	return sources
}
