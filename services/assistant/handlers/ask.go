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
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusmind/campusmind/services/assistant/datatypes"
	"github.com/campusmind/campusmind/services/assistant/graph"
	"github.com/campusmind/campusmind/services/assistant/observability"
)

// TurnRunner runs one question-answer turn. *graph.Graph is the production
// implementation.
type TurnRunner interface {
	Ask(ctx context.Context, question, model string, opts ...graph.RunOption) (graph.Result, error)
}

// HandleAsk answers POST /v1/ask.
//
// # Description
//
// Runs the full answer-assurance loop for one question and returns the
// answer with its citations and outcome. Verification failures never reach
// the client as errors; the loop degrades to a fallback answer instead.
func HandleAsk(runner TurnRunner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		start := time.Now()
		result, err := runner.Ask(c.Request.Context(), req.Question, req.Model)
		if err != nil {
			slog.Error("Turn failed", "error", err)
			observability.DefaultMetrics.RecordTurn("ask", false, time.Since(start))
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to answer the question"})
			return
		}

		observability.DefaultMetrics.RecordTurn("ask", true, time.Since(start))
		slog.Info("Turn complete",
			"outcome", string(result.Outcome),
			"retries", result.Retries,
			"duration_ms", time.Since(start).Milliseconds())
		c.JSON(http.StatusOK, datatypes.AskResponse{
			Answer:  result.Answer,
			Outcome: string(result.Outcome),
			Sources: result.Sources,
			Retries: result.Retries,
		})
	}
}
