// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package oracles implements the LLM-backed judgments the answer graph
// depends on: datasource routing, evidence relevance, answer grounding,
// answer usefulness, and answer generation itself.
//
// Every oracle asks its model for a single small JSON object and parses it
// leniently, models wrap JSON in prose often enough that strict decoding
// would fail turns for no good reason.
package oracles

const routerPromptTemplate = `You are an expert at routing a user question to a vectorstore or web search.
The vectorstore contains documents about a university degree program: its courses, admissions, fees, exams, certificates, and policies.
Use the vectorstore for questions on these topics. For current events or anything outside the program, use web search.

Return a JSON object with a single key "datasource" whose value is either "vectorstore" or "websearch". Return only the JSON object.

Question: %s`

const relevancePromptTemplate = `You are a grader assessing the relevance of a retrieved document to a user question.
If the document contains keywords or semantic meaning related to the question, grade it as relevant.
The goal is to filter out erroneous retrievals; the test does not need to be stringent.

Return a JSON object with a single key "binary_score" whose value is "yes" or "no". Return only the JSON object.

Retrieved document:

%s

User question: %s`

const hallucinationPromptTemplate = `You are a grader assessing whether an answer is grounded in a set of facts.
Grade "yes" if the answer is supported by the facts, "no" if it introduces claims the facts do not support.

Return a JSON object with a single key "binary_score" whose value is "yes" or "no". Return only the JSON object.

Facts:

%s

Answer: %s`

const answerPromptTemplate = `You are a grader assessing whether an answer addresses and resolves a question.
Grade "yes" if the answer resolves the question, "no" if it is evasive, incomplete, or off-topic.

Return a JSON object with a single key "binary_score" whose value is "yes" or "no". Return only the JSON object.

Question: %s

Answer: %s`

const generatePromptTemplate = `You are an assistant for question-answering about a university degree program.
Use the following pieces of retrieved context to answer the question.
If you don't know the answer, say that you don't know. Use three sentences maximum and keep the answer concise.

Question: %s

Context:

%s

Answer:`

// noContextPlaceholder stands in for the evidence block when a turn reaches
// generation with nothing retrieved.
const noContextPlaceholder = "(no supporting documents were retrieved)"
