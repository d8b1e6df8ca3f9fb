// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracles

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSONObject pulls the outermost JSON object out of a model reply,
// tolerating surrounding prose and markdown fences.
func extractJSONObject(response string) (string, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return response[start : end+1], nil
}

// parseBinaryScore decodes a {"binary_score": "yes"|"no"} reply. When no
// JSON object is present it falls back to scanning the raw text for a bare
// yes or no, some models answer in prose despite the instructions.
func parseBinaryScore(response string) (bool, error) {
	raw, err := extractJSONObject(response)
	if err == nil {
		var verdict struct {
			BinaryScore string `json:"binary_score"`
		}
		if jsonErr := json.Unmarshal([]byte(raw), &verdict); jsonErr == nil {
			switch strings.ToLower(strings.TrimSpace(verdict.BinaryScore)) {
			case "yes":
				return true, nil
			case "no":
				return false, nil
			}
		}
	}

	lowered := strings.ToLower(strings.TrimSpace(response))
	if lowered == "yes" || strings.HasPrefix(lowered, "yes") {
		return true, nil
	}
	if lowered == "no" || strings.HasPrefix(lowered, "no") {
		return false, nil
	}
	return false, fmt.Errorf("unparseable binary score: %q", truncateForLog(response))
}

// parseDatasource decodes a {"datasource": ...} reply, normalizing the
// spellings models commonly produce for the web search route.
func parseDatasource(response string) (string, error) {
	raw, err := extractJSONObject(response)
	if err != nil {
		return "", fmt.Errorf("unparseable datasource: %w", err)
	}
	var route struct {
		Datasource string `json:"datasource"`
	}
	if err := json.Unmarshal([]byte(raw), &route); err != nil {
		return "", fmt.Errorf("unparseable datasource: %w", err)
	}
	normalized := strings.ToLower(strings.TrimSpace(route.Datasource))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	switch normalized {
	case "websearch", "web_search", "web":
		return "websearch", nil
	default:
		return normalized, nil
	}
}

func truncateForLog(s string) string {
	const limit = 200
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
