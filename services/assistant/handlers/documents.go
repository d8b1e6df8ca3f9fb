// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusmind/campusmind/services/assistant/ingest"
)

// DocumentIndexer is the ingestion surface the admin endpoints need.
// *ingest.Indexer is the production implementation.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, doc ingest.SourceDocument) (int, error)
	IndexAll(ctx context.Context, docs []ingest.SourceDocument) (int, error)
	DeleteBySource(ctx context.Context, source string) error
}

// IngestDocumentRequest is the payload for POST /v1/documents.
type IngestDocumentRequest struct {
	Content string `json:"content" binding:"required"`
	Source  string `json:"source" binding:"required"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
}

// CreateDocument ingests one document: the content is chunked and written
// into the program index.
func CreateDocument(indexer DocumentIndexer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req IngestDocumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		written, err := indexer.IndexDocument(c.Request.Context(), ingest.SourceDocument{
			Content: req.Content,
			Source:  req.Source,
			URL:     req.URL,
			Title:   req.Title,
		})
		if err != nil {
			slog.Error("Ingestion failed", "source", req.Source, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"status":         "success",
			"source":         req.Source,
			"chunks_written": written,
		})
	}
}

// DeleteBySource removes every chunk of the document named by the "source"
// query parameter.
func DeleteBySource(indexer DocumentIndexer) gin.HandlerFunc {
	return func(c *gin.Context) {
		source := c.Query("source")
		if source == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "source query parameter is required"})
			return
		}

		if err := indexer.DeleteBySource(c.Request.Context(), source); err != nil {
			slog.Error("Delete failed", "source", source, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_source": source})
	}
}

// CrawlRequest is the payload for POST /v1/documents/crawl.
type CrawlRequest struct {
	URL      string `json:"url" binding:"required"`
	Depth    int    `json:"depth,omitempty"`
	MaxPages int    `json:"max_pages,omitempty"`
}

// CrawlSite crawls a documentation site and ingests every page found.
// Crawling runs synchronously on the request; program sites are small
// enough that this stays within ordinary request timeouts.
func CrawlSite(indexer DocumentIndexer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CrawlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		var opts []ingest.CrawlerOption
		if req.Depth > 0 {
			opts = append(opts, ingest.WithCrawlDepth(req.Depth))
		}
		if req.MaxPages > 0 {
			opts = append(opts, ingest.WithCrawlPageLimit(req.MaxPages))
		}
		crawler := ingest.NewCrawler(opts...)

		docs, err := crawler.Crawl(c.Request.Context(), req.URL)
		if err != nil {
			slog.Error("Crawl failed", "url", req.URL, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		written, err := indexer.IndexAll(c.Request.Context(), docs)
		if err != nil {
			slog.Error("Crawl ingestion failed", "url", req.URL, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"status":         "success",
			"pages_crawled":  len(docs),
			"chunks_written": written,
		})
	}
}
