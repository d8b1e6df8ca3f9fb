// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/campusmind/campusmind/services/assistant"
	"github.com/campusmind/campusmind/services/assistant/datatypes"
	"github.com/campusmind/campusmind/services/assistant/handlers"
	"github.com/campusmind/campusmind/services/assistant/ingest"
	"github.com/campusmind/campusmind/services/assistant/retrieval"
)

// defaultConfigFile is looked up in the working directory; a missing file
// just means defaults apply.
const defaultConfigFile = "campusmind.yaml"

// CLIConfig holds the connection settings for a running assistant service.
type CLIConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Model string `yaml:"model"`
}

var (
	cliConfig  CLIConfig
	serverFlag string
	modelFlag  string

	crawlDepth    int
	crawlMaxPages int
	glossaryFile  string

	rootCmd = &cobra.Command{
		Use:   "campusmind",
		Short: "A CLI for the Campusmind program assistant",
		Long: `Campusmind is a retrieval-augmented assistant for university degree
programs. This CLI asks questions, runs interactive chat sessions, and
manages the documents the assistant answers from.`,
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the assistant a single question",
		Long:  `Sends one question to the assistant service and prints the verified answer together with the sources it was grounded on.`,
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant service in the foreground",
		Long:  `Starts the assistant HTTP server in-process. Configuration comes from the same environment variables as the standalone cmd/assistant binary.`,
		Run:   runServeCommand,
	}

	modelsCmd = &cobra.Command{
		Use:   "models",
		Short: "List the models the assistant accepts",
		Run:   runModelsCommand,
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check whether the assistant service is reachable",
		Run:   runHealthCommand,
	}

	documentsCmd = &cobra.Command{
		Use:   "documents",
		Short: "Manage the documents the assistant answers from",
	}
	ingestDocumentsCmd = &cobra.Command{
		Use:   "ingest [file or directory path]",
		Short: "Index local text files into the vector store",
		Long:  `Reads one or more files or directories and sends their contents to the assistant for chunking and indexing. Each file becomes one logical source named after its path.`,
		Args:  cobra.MinimumNArgs(1),
		Run:   runIngestCommand,
	}
	crawlDocumentsCmd = &cobra.Command{
		Use:   "crawl [url]",
		Short: "Crawl a program website and index its pages",
		Args:  cobra.ExactArgs(1),
		Run:   runCrawlCommand,
	}
	deleteDocumentsCmd = &cobra.Command{
		Use:   "delete [source]",
		Short: "Delete all chunks belonging to a logical source",
		Args:  cobra.ExactArgs(1),
		Run:   runDeleteCommand,
	}
	glossaryCmd = &cobra.Command{
		Use:   "glossary",
		Short: "Index the acronym glossary into the vector store",
		Long:  `Builds one small document per acronym so that questions like "what does MLT stand for" retrieve an authoritative definition. Uses the built-in glossary unless --file points at a YAML map.`,
		Run:   runGlossaryCommand,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "",
		"assistant address as host:port (overrides campusmind.yaml)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cfg, err := loadCLIConfig(defaultConfigFile)
		if err != nil {
			log.Fatalf("Error loading %s: %v", defaultConfigFile, err)
		}
		cliConfig = cfg
	}

	askCmd.Flags().StringVar(&modelFlag, "model", "",
		"model to answer with (default from the service)")
	chatCmd.Flags().StringVar(&modelFlag, "model", "",
		"model to answer with (default from the service)")

	crawlDocumentsCmd.Flags().IntVar(&crawlDepth, "depth", 0,
		"link depth to follow from the start page (service default when 0)")
	crawlDocumentsCmd.Flags().IntVar(&crawlMaxPages, "max-pages", 0,
		"page budget for the crawl (service default when 0)")
	glossaryCmd.Flags().StringVar(&glossaryFile, "file", "",
		"YAML file mapping acronyms to full names")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(documentsCmd)
	documentsCmd.AddCommand(ingestDocumentsCmd)
	documentsCmd.AddCommand(crawlDocumentsCmd)
	documentsCmd.AddCommand(deleteDocumentsCmd)
	documentsCmd.AddCommand(glossaryCmd)
}

// loadCLIConfig reads the YAML config file when it exists. A missing file
// is not an error; defaults apply.
func loadCLIConfig(path string) (CLIConfig, error) {
	cfg := CLIConfig{Host: "localhost", Port: 12310}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	return cfg, nil
}

// serverBaseURL resolves the service address from the --server flag or the
// loaded config file.
func serverBaseURL() string {
	if serverFlag != "" {
		return "http://" + serverFlag
	}
	return fmt.Sprintf("http://%s:%d", cliConfig.Host, cliConfig.Port)
}

// requestModel resolves the model for a turn: the --model flag wins, then
// the config file; empty defers to the service default.
func requestModel() string {
	if modelFlag != "" {
		return modelFlag
	}
	return cliConfig.Model
}

// ===== HTTP helpers =====

func sendAskRequest(baseURL, question, model string) (datatypes.AskResponse, error) {
	var askResp datatypes.AskResponse
	postBody, err := json.Marshal(datatypes.AskRequest{Question: question, Model: model})
	if err != nil {
		return askResp, fmt.Errorf("failed to encode the ask request: %w", err)
	}

	client := &http.Client{Timeout: 3 * time.Minute}
	resp, err := client.Post(baseURL+"/v1/ask", "application/json", bytes.NewBuffer(postBody))
	if err != nil {
		return askResp, fmt.Errorf("failed to reach the assistant: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return askResp, fmt.Errorf("assistant returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	if err := json.Unmarshal(bodyBytes, &askResp); err != nil {
		return askResp, fmt.Errorf("failed to parse the assistant response: %w", err)
	}
	return askResp, nil
}

func postJSON(baseURL, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode request: %w", err)
	}
	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Post(baseURL+path, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to reach the assistant: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, nil
}

// ===== Command runners =====

func runServeCommand(cmd *cobra.Command, args []string) {
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
	svc, err := assistant.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create assistant: %v", err)
	}
	if err := svc.Run(); err != nil {
		log.Fatalf("Assistant error: %v", err)
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func runAskCommand(cmd *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	fmt.Println(styles.Muted.Render("Asking: " + question))

	started := time.Now()
	askResp, err := sendAskRequest(serverBaseURL(), question, requestModel())
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	printAnswer(askResp)
	fmt.Println(styles.Muted.Render(
		fmt.Sprintf("answered in %.1fs", time.Since(started).Seconds())))
}

// printAnswer renders a completed turn: the answer, how it terminated, and
// the sources it drew on.
func printAnswer(resp datatypes.AskResponse) {
	fmt.Println(styles.Answer.Render(resp.Answer))
	if resp.Outcome == "fallback" {
		fmt.Println(styles.Warning.Render(
			"Note: the assistant could not fully verify this answer."))
	}
	if len(resp.Sources) > 0 {
		fmt.Println(styles.Muted.Render("Sources:"))
		for i, source := range resp.Sources {
			label := source.Source
			if source.URL != "" {
				label = fmt.Sprintf("%s (%s)", source.Source, source.URL)
			}
			fmt.Printf("  %d. %s\n", i+1, styles.Source.Render(label))
		}
	}
}

func runModelsCommand(cmd *cobra.Command, args []string) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(serverBaseURL() + "/v1/models")
	if err != nil {
		log.Fatalf("Failed to reach the assistant: %v", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Models  []string `json:"models"`
		Default string   `json:"default"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Fatalf("Failed to parse the models response: %v", err)
	}
	for _, m := range payload.Models {
		if m == payload.Default {
			fmt.Printf("%s %s\n", styles.Success.Render("*"), m)
		} else {
			fmt.Printf("  %s\n", m)
		}
	}
}

func runHealthCommand(cmd *cobra.Command, args []string) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(serverBaseURL() + "/health")
	if err != nil {
		log.Fatalf("Assistant is unreachable at %s: %v", serverBaseURL(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Assistant returned status %d", resp.StatusCode)
	}
	fmt.Println(styles.Success.Render("Assistant is healthy at " + serverBaseURL()))
}

func runIngestCommand(cmd *cobra.Command, args []string) {
	var files []string
	for _, path := range args {
		err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			log.Fatalf("Failed to collect files under %s: %v", path, err)
		}
	}
	if len(files) == 0 {
		log.Fatalf("No files found under the given paths")
	}

	indexed := 0
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			fmt.Println(styles.Error.Render(
				fmt.Sprintf("skipping %s: %v", file, err)))
			continue
		}
		req := handlers.IngestDocumentRequest{
			Content: string(content),
			Source:  file,
			Title:   filepath.Base(file),
		}
		status, body, err := postJSON(serverBaseURL(), "/v1/documents", req)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		if status != http.StatusCreated {
			fmt.Println(styles.Error.Render(fmt.Sprintf(
				"failed to index %s: status %d: %s", file, status,
				strings.TrimSpace(string(body)))))
			continue
		}
		indexed++
		fmt.Printf("%s %s\n", styles.Success.Render("indexed"), file)
	}
	fmt.Println(styles.Muted.Render(
		fmt.Sprintf("Indexed %d of %d files", indexed, len(files))))
}

func runCrawlCommand(cmd *cobra.Command, args []string) {
	if _, err := url.ParseRequestURI(args[0]); err != nil {
		log.Fatalf("Invalid URL %q: %v", args[0], err)
	}
	req := handlers.CrawlRequest{
		URL:      args[0],
		Depth:    crawlDepth,
		MaxPages: crawlMaxPages,
	}
	fmt.Println(styles.Muted.Render("Crawling " + args[0] + " (this can take a while)"))
	status, body, err := postJSON(serverBaseURL(), "/v1/documents/crawl", req)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if status != http.StatusCreated {
		log.Fatalf("Crawl failed with status %d: %s", status,
			strings.TrimSpace(string(body)))
	}
	fmt.Println(styles.Success.Render("Crawl complete"))
	fmt.Println(string(body))
}

func runDeleteCommand(cmd *cobra.Command, args []string) {
	endpoint := fmt.Sprintf("%s/v1/documents?source=%s",
		serverBaseURL(), url.QueryEscape(args[0]))
	req, err := http.NewRequest(http.MethodDelete, endpoint, nil)
	if err != nil {
		log.Fatalf("Failed to build the delete request: %v", err)
	}
	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Failed to reach the assistant: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Fatalf("Delete failed with status %d: %s", resp.StatusCode,
			strings.TrimSpace(string(body)))
	}
	fmt.Println(styles.Success.Render("Deleted source " + args[0]))
}

func runGlossaryCommand(cmd *cobra.Command, args []string) {
	acronyms := retrieval.DefaultAcronyms
	if glossaryFile != "" {
		loaded, err := retrieval.LoadAcronyms(glossaryFile)
		if err != nil {
			log.Fatalf("Failed to load glossary from %s: %v", glossaryFile, err)
		}
		acronyms = loaded
	}

	indexed := 0
	for _, doc := range ingest.GlossaryDocuments(acronyms) {
		req := handlers.IngestDocumentRequest{
			Content: doc.Content,
			Source:  doc.Source,
			Title:   doc.Title,
		}
		status, body, err := postJSON(serverBaseURL(), "/v1/documents", req)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		if status != http.StatusCreated {
			log.Fatalf("Failed to index glossary entry %q: status %d: %s",
				doc.Title, status, strings.TrimSpace(string(body)))
		}
		indexed++
	}
	fmt.Println(styles.Success.Render(
		fmt.Sprintf("Indexed %d glossary entries", indexed)))
}
