// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var openaiTracer = otel.Tracer("campusmind.llm.openai")

// OpenAIClient talks to any OpenAI-compatible chat-completions endpoint.
//
// The assistant's default deployment points this at Groq
// (https://api.groq.com/openai/v1), which hosts the Llama and Gemma models
// the question-answering oracles run against. Setting LLM_BASE_URL to the
// OpenAI API (or leaving it empty) works the same way.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a client from environment configuration.
//
// # Environment Variables
//
//   - LLM_API_KEY: API key for the endpoint. Required (also read from
//     /run/secrets/llm_api_key for containerized deployments).
//   - LLM_BASE_URL: endpoint base URL. Default: Groq's OpenAI-compatible API.
//   - LLM_MODEL: default model when a request carries no override.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/llm_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the LLM API key from container secrets")
		} else {
			slog.Error("LLM_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("LLM_API_KEY environment variable not set")
		}
	}

	baseURL := os.Getenv("LLM_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}

	model := os.Getenv("LLM_MODEL")
	if model == "" {
		model = "llama-3.1-8b-instant"
		slog.Warn("LLM_MODEL not set, defaulting to llama-3.1-8b-instant")
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")

	slog.Info("Initializing OpenAI-compatible client", "base_url", cfg.BaseURL, "default_model", model)
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Generate implements the LLMClient interface.
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	return o.Chat(ctx, []Message{{Role: openai.ChatMessageRoleUser, Content: prompt}}, params)
}

// Chat implements the LLMClient interface.
func (o *OpenAIClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	ctx, span := openaiTracer.Start(ctx, "OpenAIClient.Chat")
	defer span.End()

	model := params.Model
	if model == "" {
		model = o.model
	}
	span.SetAttributes(
		attribute.String("llm.model", model),
		attribute.Int("llm.num_messages", len(messages)),
	)
	slog.Debug("Generating text via OpenAI-compatible endpoint", "model", model)

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Chat completion call failed", "model", model, "error", err)
		return "", fmt.Errorf("chat completion call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("Endpoint returned no choices", "model", model)
		return "", fmt.Errorf("endpoint returned no choices")
	}

	slog.Debug("Received chat completion", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
