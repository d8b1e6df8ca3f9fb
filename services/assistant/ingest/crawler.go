// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// Crawler collects program documentation from a site, breadth-first within
// a single host.
//
// # Limitations
//
//   - Only HTML pages are fetched; binary formats (PDFs, images) are
//     skipped by extension and content type.
//   - Fragments and query strings are stripped before deduplication, pages
//     that vary only by query are fetched once.
type Crawler struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	maxDepth   int
	maxPages   int
	userAgent  string
}

// CrawlerOption configures a Crawler.
type CrawlerOption func(*Crawler)

// WithCrawlDepth bounds how many link hops from the start page are
// followed. Depth 0 fetches only the start page.
func WithCrawlDepth(depth int) CrawlerOption {
	return func(c *Crawler) {
		if depth >= 0 {
			c.maxDepth = depth
		}
	}
}

// WithCrawlPageLimit bounds the total pages fetched.
func WithCrawlPageLimit(limit int) CrawlerOption {
	return func(c *Crawler) {
		if limit > 0 {
			c.maxPages = limit
		}
	}
}

// WithCrawlRate sets the request rate limit in requests per second.
func WithCrawlRate(perSecond float64) CrawlerOption {
	return func(c *Crawler) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithCrawlHTTPClient overrides the HTTP client, used by tests.
func WithCrawlHTTPClient(client *http.Client) CrawlerOption {
	return func(c *Crawler) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewCrawler returns a Crawler with conservative defaults: depth 2, 50
// pages, 2 requests per second.
func NewCrawler(opts ...CrawlerOption) *Crawler {
	c := &Crawler{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 1),
		maxDepth:   2,
		maxPages:   50,
		userAgent:  "campusmind-crawler/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// skippedExtensions are fetched by link but never useful as QA evidence.
var skippedExtensions = []string{
	".pdf", ".zip", ".png", ".jpg", ".jpeg", ".gif", ".svg",
	".mp4", ".mp3", ".ico", ".css", ".js",
}

type crawlItem struct {
	url   *url.URL
	depth int
}

// Crawl walks the site starting at startURL and returns one SourceDocument
// per page with extractable text. Individual page failures are logged and
// skipped; Crawl fails only when the start URL is unusable.
func (c *Crawler) Crawl(ctx context.Context, startURL string) ([]SourceDocument, error) {
	start, err := url.Parse(startURL)
	if err != nil || start.Host == "" {
		return nil, fmt.Errorf("invalid start URL %q", startURL)
	}

	seen := map[string]bool{}
	queue := []crawlItem{{url: start, depth: 0}}
	var docs []SourceDocument

	for len(queue) > 0 && len(docs) < c.maxPages {
		item := queue[0]
		queue = queue[1:]

		key := normalizeURL(item.url)
		if seen[key] {
			continue
		}
		seen[key] = true

		if err := c.limiter.Wait(ctx); err != nil {
			return docs, fmt.Errorf("crawl canceled: %w", err)
		}

		page, links, err := c.fetchPage(ctx, item.url)
		if err != nil {
			if len(docs) == 0 && item.depth == 0 {
				return nil, fmt.Errorf("fetch start page: %w", err)
			}
			slog.Warn("Skipping page", "url", item.url.String(), "error", err)
			continue
		}
		if page != nil {
			docs = append(docs, *page)
		}

		if item.depth >= c.maxDepth {
			continue
		}
		for _, link := range links {
			if link.Host != start.Host || seen[normalizeURL(link)] || skippable(link.Path) {
				continue
			}
			queue = append(queue, crawlItem{url: link, depth: item.depth + 1})
		}
	}

	slog.Info("Crawl complete", "start", startURL, "pages", len(docs))
	return docs, nil
}

// fetchPage downloads one page and returns its document plus outgoing
// links. A nil document with nil error means the page had no usable text.
func (c *Crawler) fetchPage(ctx context.Context, pageURL *url.URL) (*SourceDocument, []*url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "text/html") {
		io.Copy(io.Discard, resp.Body)
		return nil, nil, nil
	}

	root, err := html.Parse(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}

	title, text := extractPage(root)
	links := extractLinks(root, pageURL)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, links, nil
	}
	return &SourceDocument{
		Content: text,
		Source:  normalizeURL(pageURL),
		URL:     pageURL.String(),
		Title:   title,
	}, links, nil
}

// extractPage returns the page title and visible text, skipping script,
// style, and navigation noise.
func extractPage(root *html.Node) (string, string) {
	var title string
	var b strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "nav", "footer", "header":
				return
			case "title":
				if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				if b.Len() > 0 {
					b.WriteString("\n")
				}
				b.WriteString(trimmed)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return title, b.String()
}

func extractLinks(root *html.Node, base *url.URL) []*url.URL {
	var links []*url.URL
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href, err := url.Parse(strings.TrimSpace(attr.Val))
				if err != nil {
					continue
				}
				resolved := base.ResolveReference(href)
				if resolved.Scheme == "http" || resolved.Scheme == "https" {
					links = append(links, resolved)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return links
}

func normalizeURL(u *url.URL) string {
	clean := *u
	clean.Fragment = ""
	clean.RawQuery = ""
	return strings.TrimSuffix(clean.String(), "/")
}

func skippable(path string) bool {
	lowered := strings.ToLower(path)
	for _, ext := range skippedExtensions {
		if strings.HasSuffix(lowered, ext) {
			return true
		}
	}
	return false
}
