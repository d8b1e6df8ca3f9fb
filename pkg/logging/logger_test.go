// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"), "unknown levels default to info")
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestNew_FileLoggingWritesJSON(t *testing.T) {
	logDir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  logDir,
		Service: "test",
		Quiet:   true,
	})

	logger.Info("turn complete", "outcome", "useful", "retries", 1)
	require.NoError(t, logger.Close())

	expected := filepath.Join(logDir, "test_"+time.Now().Format("2006-01-02")+".log")
	raw, err := os.ReadFile(expected)
	require.NoError(t, err, "log file should be created with the service and date in its name")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &entry))
	assert.Equal(t, "turn complete", entry["msg"])
	assert.Equal(t, "useful", entry["outcome"])
	assert.Equal(t, "test", entry["service"])
}

func TestNew_LevelFiltersFileOutput(t *testing.T) {
	logDir := t.TempDir()
	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  logDir,
		Service: "test",
		Quiet:   true,
	})

	logger.Info("should be filtered")
	logger.Warn("should be kept")
	require.NoError(t, logger.Close())

	raw, err := os.ReadFile(filepath.Join(logDir, "test_"+time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "should be filtered")
	assert.Contains(t, string(raw), "should be kept")
}

func TestWith_AddsAttributesWithoutMutatingParent(t *testing.T) {
	logDir := t.TempDir()
	logger := New(Config{LogDir: logDir, Service: "test", Quiet: true})
	child := logger.With("request_id", "abc123")

	logger.Info("parent entry")
	child.Info("child entry")
	require.NoError(t, logger.Close())

	raw, err := os.ReadFile(filepath.Join(logDir, "test_"+time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "abc123")
	assert.Contains(t, lines[1], "abc123")
}

func TestClose_IsIdempotent(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Service: "test", Quiet: true})
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close(), "closing twice should not fail")
}

func TestDefault_DoesNotPanicWithoutFile(t *testing.T) {
	logger := Default()
	logger.Info("stderr only")
	require.NoError(t, logger.Close())
}
