// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"

	"github.com/campusmind/campusmind/services/assistant/datatypes"
)

// defaultSearchEndpoint is DuckDuckGo's HTML (non-JS) results page.
const defaultSearchEndpoint = "https://html.duckduckgo.com/html/"

// maxSearchResults caps how many results one search contributes.
const maxSearchResults = 3

const searchUserAgent = "campusmind-assistant/1.0"

// SearchError reports a failed web search.
type SearchError struct {
	Query      string
	StatusCode int
	Err        error
}

func (e *SearchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("web search for %q: status %d", e.Query, e.StatusCode)
	}
	return fmt.Sprintf("web search for %q: %v", e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// IsSearchError reports whether err is a SearchError.
func IsSearchError(err error) bool {
	var se *SearchError
	return errors.As(err, &se)
}

// WebSearch queries DuckDuckGo's HTML endpoint and scrapes the result list.
// No API key is needed, which keeps the web route usable in classroom and
// self-hosted deployments.
type WebSearch struct {
	httpClient *http.Client
	endpoint   string
	maxResults int
}

// WebSearchOption configures a WebSearch.
type WebSearchOption func(*WebSearch)

// WithSearchEndpoint overrides the results endpoint, used by tests.
func WithSearchEndpoint(endpoint string) WebSearchOption {
	return func(w *WebSearch) {
		if endpoint != "" {
			w.endpoint = endpoint
		}
	}
}

// WithSearchHTTPClient overrides the HTTP client.
func WithSearchHTTPClient(client *http.Client) WebSearchOption {
	return func(w *WebSearch) {
		if client != nil {
			w.httpClient = client
		}
	}
}

// WithMaxResults overrides how many results a search contributes.
func WithMaxResults(n int) WebSearchOption {
	return func(w *WebSearch) {
		if n > 0 {
			w.maxResults = n
		}
	}
}

// NewWebSearch returns a WebSearch with sane timeouts.
func NewWebSearch(opts ...WebSearchOption) *WebSearch {
	w := &WebSearch{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		endpoint:   defaultSearchEndpoint,
		maxResults: maxSearchResults,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Search returns up to the configured number of results for the question.
// Zero results is a valid outcome, not an error.
func (w *WebSearch) Search(ctx context.Context, question string) ([]datatypes.Document, error) {
	ctx, span := retrievalTracer.Start(ctx, "retrieval.WebSearch.Search")
	defer span.End()

	endpoint := w.endpoint + "?q=" + url.QueryEscape(question)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &SearchError{Query: question, Err: err}
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search request failed")
		return nil, &SearchError{Query: question, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		err := &SearchError{Query: question, StatusCode: resp.StatusCode}
		span.RecordError(err)
		span.SetStatus(codes.Error, "search returned non-200")
		return nil, err
	}

	results, err := parseSearchResults(resp.Body, w.maxResults)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search parse failed")
		return nil, &SearchError{Query: question, Err: err}
	}
	span.SetAttributes(attribute.Int("search.results", len(results)))
	slog.Debug("Web search complete", "question", question, "results", len(results))
	return results, nil
}

// parseSearchResults walks the result page. Each hit is an anchor with class
// result__a (title and destination) optionally followed by a result__snippet
// element with the preview text.
func parseSearchResults(body io.Reader, maxResults int) ([]datatypes.Document, error) {
	root, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	var results []datatypes.Document
	var current *datatypes.Document

	flush := func() {
		if current == nil {
			return
		}
		if current.Content == "" {
			current.Content = current.Metadata.Title
		}
		if current.Content != "" {
			results = append(results, *current)
		}
		current = nil
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults && current == nil {
			return
		}
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				flush()
				if len(results) >= maxResults {
					return
				}
				title := strings.TrimSpace(textContent(n))
				current = &datatypes.Document{
					Metadata: datatypes.DocumentMetadata{
						Source: title,
						Title:  title,
						URL:    resolveResultURL(attrValue(n, "href")),
					},
				}
				return
			case hasClass(n, "result__snippet"):
				if current != nil && current.Content == "" {
					current.Content = strings.TrimSpace(textContent(n))
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	flush()

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// resolveResultURL unwraps DuckDuckGo's redirect links, which carry the real
// destination in the uddg query parameter.
func resolveResultURL(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return raw
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
