// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/campusmind/campusmind/services/assistant/datatypes"
	"github.com/campusmind/campusmind/services/assistant/graph"
	"github.com/campusmind/campusmind/services/assistant/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

func sendFrame(ws *websocket.Conn, frame datatypes.ProgressFrame) error {
	if err := ws.WriteJSON(frame); err != nil {
		slog.Warn("Failed to write websocket frame", "error", err)
		return err
	}
	return nil
}

// HandleAskWebSocket answers GET /v1/ask/ws.
//
// # Description
//
// Upgrades the connection and serves turns over it. For each AskRequest the
// client sends, the handler streams one "node" frame per graph step (so UIs
// can show retrieval, grading, and retry progress live) followed by a final
// "answer" frame, or an "error" frame if the turn aborts. Turns on one
// connection run sequentially.
func HandleAskWebSocket(runner TurnRunner) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("Failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		connID := uuid.New().String()
		slog.Info("Websocket client connected", "connection_id", connID)

		for {
			var req datatypes.AskRequest
			if err := ws.ReadJSON(&req); err != nil {
				slog.Info("Websocket client disconnected", "connection_id", connID, "error", err.Error())
				return
			}

			req.EnsureDefaults()
			if err := req.Validate(); err != nil {
				if sendFrame(ws, datatypes.ProgressFrame{Type: "error", Error: err.Error()}) != nil {
					return
				}
				continue
			}

			start := time.Now()
			progress := func(node graph.NodeName, decision graph.Label) {
				frame := datatypes.ProgressFrame{Type: "node", Node: string(node)}
				if decision != "" {
					frame.Type = "decision"
					frame.Decision = string(decision)
				}
				// Progress frames are best-effort; a failed write surfaces
				// on the next ReadJSON.
				_ = ws.WriteJSON(frame)
			}

			result, err := runner.Ask(c.Request.Context(), req.Question, req.Model, graph.WithProgress(progress))
			if err != nil {
				slog.Error("Turn failed", "connection_id", connID, "error", err)
				observability.DefaultMetrics.RecordTurn("ask_ws", false, time.Since(start))
				if sendFrame(ws, datatypes.ProgressFrame{Type: "error", Error: "Failed to answer the question"}) != nil {
					return
				}
				continue
			}

			observability.DefaultMetrics.RecordTurn("ask_ws", true, time.Since(start))
			response := datatypes.AskResponse{
				Answer:  result.Answer,
				Outcome: string(result.Outcome),
				Sources: result.Sources,
				Retries: result.Retries,
			}
			if sendFrame(ws, datatypes.ProgressFrame{Type: "answer", Response: &response}) != nil {
				return
			}
		}
	}
}
