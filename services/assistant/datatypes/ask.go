// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ===== Validation =====

var validate = validator.New()

// DefaultModel is used when a request does not name a model.
const DefaultModel = "llama-3.1-8b-instant"

// SupportedModels lists the model identifiers a request may select.
// The first entry is the default.
var SupportedModels = []string{
	"llama-3.1-8b-instant",
	"llama-3.3-70b-versatile",
	"openai/gpt-oss-20b",
	"qwen/qwen3-32b",
}

func isSupportedModel(model string) bool {
	for _, m := range SupportedModels {
		if m == model {
			return true
		}
	}
	return false
}

// ===== Request and Response =====

// AskRequest is the payload for POST /v1/ask and for the websocket variant.
//
// # Description
//
// A single question-answer turn. The question is required; the model is
// optional and falls back to DefaultModel. Every turn is independent, the
// service keeps no conversation state between requests.
type AskRequest struct {
	Question string `json:"question" validate:"required,min=3,max=2000"`
	Model    string `json:"model,omitempty"`
}

// EnsureDefaults fills in the default model when the caller left it empty.
func (r *AskRequest) EnsureDefaults() {
	if r.Model == "" {
		r.Model = DefaultModel
	}
}

// Validate checks structural constraints and the model allowlist.
// Call EnsureDefaults first.
func (r *AskRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid ask request: %w", err)
	}
	if !isSupportedModel(r.Model) {
		return fmt.Errorf("invalid ask request: unsupported model %q", r.Model)
	}
	return nil
}

// AskResponse is the answer for a completed turn.
//
// Outcome reports how the turn terminated: "useful" for a grounded answer
// that addresses the question, "fallback" when the retry budget was
// exhausted and a best-effort answer was produced instead.
type AskResponse struct {
	Answer  string       `json:"answer"`
	Outcome string       `json:"outcome"`
	Sources []SourceInfo `json:"sources"`
	Retries int          `json:"retries"`
}

// ===== Websocket progress frames =====

// ProgressFrame is one message on the websocket ask stream. Frames with
// Type "node" report graph progress; the final frame has Type "answer"
// and carries the response, or Type "error" with a message.
type ProgressFrame struct {
	Type     string       `json:"type"`
	Node     string       `json:"node,omitempty"`
	Decision string       `json:"decision,omitempty"`
	Error    string       `json:"error,omitempty"`
	Response *AskResponse `json:"response,omitempty"`
}
