// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command assistant starts the Campusmind assistant HTTP server.
//
// This is the main entry point for the containerized assistant service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - ASSISTANT_PORT: HTTP server port (default: 12310)
//   - LLM_BACKEND_TYPE: LLM provider - groq, openai, ollama (default: groq)
//   - WEAVIATE_SERVICE_URL: Weaviate vector DB URL (optional; web-search only when unset)
//   - VECTOR_CLASS_NAME: Weaviate class for program documents (default: ProgramDocument)
//   - ACRONYMS_PATH: YAML acronym glossary overriding the built-in map (optional)
//   - GRAPH_RETRY_LIMIT: verification retries per turn (default: 2)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: campusmind-otel-collector:4317)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_DIR: directory for daily JSON log files (stderr only when unset)
//
// # Usage
//
//	# Build
//	go build -o assistant ./cmd/assistant
//
//	# Run
//	./assistant
//
//	# Or via container
//	podman-compose up assistant
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/campusmind/campusmind/pkg/logging"
	"github.com/campusmind/campusmind/services/assistant"
)

func main() {
	// Setup structured logging
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(getEnvString("LOG_LEVEL", "info")),
		LogDir:  os.Getenv("LOG_DIR"),
		Service: "assistant",
		JSON:    true,
	})
	defer logger.Close()
	logger.SetAsDefault()

	// Build configuration from environment variables
	cfg := assistant.Config{
		Port:            getEnvInt("ASSISTANT_PORT", 12310),
		LLMBackend:      getEnvString("LLM_BACKEND_TYPE", "groq"),
		WeaviateURL:     os.Getenv("WEAVIATE_SERVICE_URL"),
		VectorClassName: os.Getenv("VECTOR_CLASS_NAME"),
		AcronymsPath:    os.Getenv("ACRONYMS_PATH"),
		RetryLimit:      getEnvInt("GRAPH_RETRY_LIMIT", 0),
		OTelEndpoint:    getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "campusmind-otel-collector:4317"),
		EnableMetrics:   true,
	}

	slog.Info("Starting assistant",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"weaviate_url", cfg.WeaviateURL,
	)

	svc, err := assistant.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create assistant: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Assistant error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
