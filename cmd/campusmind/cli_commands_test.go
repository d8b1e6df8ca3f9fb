// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/campusmind/services/assistant/datatypes"
)

func TestLoadCLIConfig(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := loadCLIConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 12310, cfg.Port)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "campusmind.yaml")
		require.NoError(t, os.WriteFile(path,
			[]byte("host: assistant.internal\nport: 9000\nmodel: llama-3.3-70b-versatile\n"), 0o644))

		cfg, err := loadCLIConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "assistant.internal", cfg.Host)
		assert.Equal(t, 9000, cfg.Port)
		assert.Equal(t, "llama-3.3-70b-versatile", cfg.Model)
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "campusmind.yaml")
		require.NoError(t, os.WriteFile(path, []byte("model: qwen/qwen3-32b\n"), 0o644))

		cfg, err := loadCLIConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 12310, cfg.Port)
		assert.Equal(t, "qwen/qwen3-32b", cfg.Model)
	})

	t.Run("malformed yaml fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "campusmind.yaml")
		require.NoError(t, os.WriteFile(path, []byte("host: [unclosed\n"), 0o644))

		_, err := loadCLIConfig(path)
		assert.Error(t, err)
	})
}

func TestSendAskRequest(t *testing.T) {
	t.Run("parses a successful turn", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/v1/ask", r.URL.Path)

			var req datatypes.AskRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "When does the program start?", req.Question)
			assert.Equal(t, "llama-3.1-8b-instant", req.Model)

			json.NewEncoder(w).Encode(datatypes.AskResponse{
				Answer:  "The program starts in September.",
				Outcome: "useful",
				Sources: []datatypes.SourceInfo{{Source: "faq", URL: "https://example.edu/faq"}},
			})
		}))
		defer srv.Close()

		resp, err := sendAskRequest(srv.URL, "When does the program start?", "llama-3.1-8b-instant")
		require.NoError(t, err)
		assert.Equal(t, "The program starts in September.", resp.Answer)
		assert.Equal(t, "useful", resp.Outcome)
		require.Len(t, resp.Sources, 1)
		assert.Equal(t, "https://example.edu/faq", resp.Sources[0].URL)
	})

	t.Run("surfaces non-200 status with body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"the assistant could not complete this request"}`,
				http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := sendAskRequest(srv.URL, "anything", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
		assert.Contains(t, err.Error(), "could not complete")
	})

	t.Run("unreachable server fails", func(t *testing.T) {
		_, err := sendAskRequest("http://127.0.0.1:1", "anything", "")
		assert.Error(t, err)
	})
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/documents", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"chunks_written":3}`))
	}))
	defer srv.Close()

	status, body, err := postJSON(srv.URL, "/v1/documents", map[string]string{
		"content": "hello", "source": "test.txt",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Contains(t, string(body), "chunks_written")
}
