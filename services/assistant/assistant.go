// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package assistant provides the Campusmind QA service.
//
// It wires together the answer graph, its oracles, the Weaviate-backed
// retriever, web search, HTTP routing, and the observability stack. The
// cmd/assistant binary is a thin wrapper around this package.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/campusmind/campusmind/services/assistant/datatypes"
	"github.com/campusmind/campusmind/services/assistant/graph"
	"github.com/campusmind/campusmind/services/assistant/ingest"
	"github.com/campusmind/campusmind/services/assistant/observability"
	"github.com/campusmind/campusmind/services/assistant/oracles"
	"github.com/campusmind/campusmind/services/assistant/retrieval"
	"github.com/campusmind/campusmind/services/assistant/routes"
	"github.com/campusmind/campusmind/services/llm"
)

// Service defines the assistant service lifecycle.
//
// # Thread Safety
//
// Implementations must be safe for concurrent request handling. Run blocks
// and should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for integration testing.
	Router() *gin.Engine
}

// Config holds the assistant service configuration. Zero values get
// defaults from applyConfigDefaults.
type Config struct {
	// Port is the HTTP listen port. Default: 12310.
	Port int

	// LLMBackend selects the oracle backend: "groq" (OpenAI-compatible API)
	// or "ollama". Default: "groq".
	LLMBackend string

	// WeaviateURL points at the vector store. Empty disables retrieval;
	// every question is then answered from web search.
	WeaviateURL string

	// VectorClassName is the Weaviate class holding program documents.
	// Default: retrieval.DefaultClassName.
	VectorClassName string

	// Vectorizer names the Weaviate embedding module used when the schema
	// is created. Default: ingest.DefaultVectorizer.
	Vectorizer string

	// AcronymsPath optionally points at a YAML acronym glossary. Empty uses
	// the built-in map.
	AcronymsPath string

	// RetryLimit bounds verification retries per turn.
	// Default: graph.DefaultRetryLimit.
	RetryLimit int

	// OTelEndpoint is the OTLP gRPC collector address.
	// Default: "campusmind-otel-collector:4317".
	OTelEndpoint string

	// EnableMetrics controls Prometheus metric registration.
	EnableMetrics bool
}

type service struct {
	config         Config
	router         *gin.Engine
	weaviateClient *weaviate.Client
	llmClient      llm.LLMClient
	turnGraph      *graph.Graph
	indexer        *ingest.Indexer
	tracerCleanup  func(context.Context)
}

var _ Service = (*service)(nil)

// New builds a fully wired assistant service.
//
// # Outputs
//
// An error when a required collaborator cannot be constructed (LLM client,
// graph). A missing Weaviate is downgraded to a warning: the service runs
// in web-search-only mode.
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics")
	}

	if err := s.initWeaviate(); err != nil {
		slog.Warn("Weaviate initialization failed, answering from web search only", "error", err)
	}

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("initialize LLM client: %w", err)
	}

	if err := s.initGraph(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("initialize answer graph: %w", err)
	}

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting assistant server", "port", s.config.Port)
	return s.router.Run(addr)
}

// Router returns the configured Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "groq"
	}
	if cfg.VectorClassName == "" {
		cfg.VectorClassName = retrieval.DefaultClassName
	}
	if cfg.Vectorizer == "" {
		cfg.Vectorizer = ingest.DefaultVectorizer
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = graph.DefaultRetryLimit
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "campusmind-otel-collector:4317"
	}
	return cfg
}

// initTracer sets up the OTLP trace exporter.
//
// # Limitations
//
//   - Uses an insecure gRPC connection, appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("assistant-service")))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}
	return cleanup, nil
}

// initWeaviate creates the vector store client and ensures the schema.
// Returns nil without a client when no URL is configured.
func (s *service) initWeaviate() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")
	if weaviateURL == "" {
		slog.Info("Weaviate URL not configured, running without the vector store")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	s.weaviateClient, err = weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return fmt.Errorf("create Weaviate client: %w", err)
	}

	if err := ingest.EnsureSchema(context.Background(), s.weaviateClient,
		s.config.VectorClassName, s.config.Vectorizer); err != nil {
		s.weaviateClient = nil
		return err
	}

	s.indexer = ingest.NewIndexer(s.weaviateClient,
		ingest.WithIndexClassName(s.config.VectorClassName))
	slog.Info("Weaviate client initialized", "url", weaviateURL, "class", s.config.VectorClassName)
	return nil
}

func (s *service) initLLMClient() error {
	var err error
	switch s.config.LLMBackend {
	case "groq", "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI-compatible LLM backend")
	case "ollama":
		s.llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to groq", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewOpenAIClient()
	}
	return err
}

// initGraph assembles the answer graph from the oracles, the retriever,
// and the acronym expander.
func (s *service) initGraph() error {
	acronyms := retrieval.DefaultAcronyms
	if s.config.AcronymsPath != "" {
		loaded, err := retrieval.LoadAcronyms(s.config.AcronymsPath)
		if err != nil {
			slog.Warn("Failed to load acronym glossary, using built-in map",
				"path", s.config.AcronymsPath, "error", err)
		} else {
			acronyms = loaded
		}
	}

	deps := graph.Dependencies{
		Expander:            retrieval.NewAcronymExpander(acronyms),
		Router:              oracles.NewRouter(s.llmClient),
		Searcher:            retrieval.NewWebSearch(),
		RelevanceGrader:     oracles.NewRelevanceGrader(s.llmClient),
		Generator:           oracles.NewAnswerGenerator(s.llmClient),
		HallucinationGrader: oracles.NewHallucinationGrader(s.llmClient),
		AnswerGrader:        oracles.NewAnswerGrader(s.llmClient),
		RetryLimit:          s.config.RetryLimit,
	}
	if s.weaviateClient != nil {
		deps.Retriever = retrieval.NewVectorStore(s.weaviateClient,
			retrieval.WithClassName(s.config.VectorClassName))
	} else {
		deps.Retriever = emptyRetriever{}
	}

	turnGraph, err := graph.New(deps)
	if err != nil {
		return err
	}
	s.turnGraph = turnGraph
	return nil
}

func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("assistant-service"))

	// A typed nil *ingest.Indexer must not reach the interface parameter,
	// routes checks it against nil.
	if s.indexer != nil {
		routes.SetupRoutes(s.router, s.turnGraph, s.indexer)
	} else {
		routes.SetupRoutes(s.router, s.turnGraph, nil)
	}
}

func (s *service) cleanup() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// emptyRetriever stands in when no vector store is configured. Returning no
// documents makes the relevance filter route every turn to web search.
type emptyRetriever struct{}

func (emptyRetriever) Retrieve(_ context.Context, _ string) ([]datatypes.Document, error) {
	return nil, nil
}
