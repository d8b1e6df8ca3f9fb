// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides clients for hosted and local language model backends.
//
// All backends implement the LLMClient interface so the assistant can swap
// between a hosted OpenAI-compatible endpoint (Groq, OpenAI) and a local
// Ollama instance via configuration alone.
package llm

import "context"

// Message is a single chat turn sent to a model backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams tunes a single generation call.
//
// Model overrides the client's default model for this call only; the
// assistant uses this to honor a per-turn model selection without
// constructing a new client per request.
type GenerationParams struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	// Generate produces a completion for a single prompt.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Chat produces a completion for a multi-message conversation.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)
}
