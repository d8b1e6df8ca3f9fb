// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campusmind/campusmind/services/assistant/handlers"
)

// SetupRoutes registers all assistant endpoints. The indexer may be nil
// when Weaviate is not configured; ingestion routes are then omitted and
// questions are answered from web search alone.
func SetupRoutes(router *gin.Engine, runner handlers.TurnRunner, indexer handlers.DocumentIndexer) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/ask", handlers.HandleAsk(runner))
		v1.GET("/ask/ws", handlers.HandleAskWebSocket(runner))
		v1.GET("/models", handlers.ListModels)

		if indexer != nil {
			documents := v1.Group("/documents")
			{
				documents.POST("", handlers.CreateDocument(indexer))
				documents.DELETE("", handlers.DeleteBySource(indexer))
				documents.POST("/crawl", handlers.CrawlSite(indexer))
			}
		}
	}
}
