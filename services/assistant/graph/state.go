// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graph implements the answer-assurance control loop.
//
// A turn flows through a directed graph of nodes: the question is routed to
// a datasource, evidence is retrieved and filtered for relevance, an answer
// is generated, and the answer is checked for grounding and usefulness. A
// failed check either re-enters the loop through the retry node or, once the
// retry budget is spent, terminates with a best-effort fallback answer.
//
// The engine in workflow.go is generic over nodes and edges; the campus
// assistant's concrete graph is assembled in nodes.go.
package graph

import (
	"github.com/campusmind/campusmind/services/assistant/datatypes"
)

// ===== Turn state =====

// State is the full per-turn state threaded through the graph.
//
// # Description
//
// Nodes never mutate the state they receive. Each node returns an Update
// describing the fields it changed, and the engine applies it to produce the
// next state. This keeps progress callbacks and tests free of aliasing
// surprises.
type State struct {
	// Question is the current question text. The expansion node may rewrite
	// it once, before routing; no later node touches it.
	Question string

	// Documents is the working evidence set. Retrieval replaces it, the
	// relevance filter shrinks it, web search appends to it.
	Documents []datatypes.Document

	// Generation is the most recent answer attempt, empty until the first
	// generate step.
	Generation string

	// NeedsWebSearch records a relevance-filter decision that the remaining
	// evidence is too thin and the turn should augment from the web.
	NeedsWebSearch bool

	// RetryCount is the number of failed verification attempts so far.
	RetryCount int

	// Model is the model identifier used for every oracle call this turn.
	Model string

	// Outcome is the latest verification label. It is set by the
	// answer-grading node and read by the decisions that follow it.
	Outcome Label
}

// Update is a partial state. Nil fields leave the corresponding State field
// unchanged; Apply merges the rest.
type Update struct {
	Question       *string
	Documents      *[]datatypes.Document
	Generation     *string
	NeedsWebSearch *bool
	RetryCount     *int
	Outcome        *Label
}

// Apply merges an update into a copy of the state and returns the copy.
func (s State) Apply(u Update) State {
	next := s
	if u.Question != nil {
		next.Question = *u.Question
	}
	if u.Documents != nil {
		next.Documents = *u.Documents
	}
	if u.Generation != nil {
		next.Generation = *u.Generation
	}
	if u.NeedsWebSearch != nil {
		next.NeedsWebSearch = *u.NeedsWebSearch
	}
	if u.RetryCount != nil {
		next.RetryCount = *u.RetryCount
	}
	if u.Outcome != nil {
		next.Outcome = *u.Outcome
	}
	return next
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }

func docsPtr(docs []datatypes.Document) *[]datatypes.Document { return &docs }
