// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jeranaias/docchat/internal/util"
)

// DefaultSearchURL is the DuckDuckGo HTML endpoint.
const DefaultSearchURL = "https://html.duckduckgo.com/html/"

// SearchResult represents a single search result.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher queries DuckDuckGo's HTML interface, which needs no API key.
type Searcher struct {
	// BaseURL is the search endpoint; empty means DefaultSearchURL
	BaseURL string

	Client    *http.Client
	UserAgent string
}

// Search returns up to limit results for query.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	base := s.BaseURL
	if base == "" {
		base = DefaultSearchURL
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}
	return parseResults(doc, limit), nil
}

// parseResults reads the result blocks:
//
//	<div class="result">
//	  <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=URL">Title</a></h2>
//	  <a class="result__snippet">Snippet</a>
//	</div>
func parseResults(doc *goquery.Document, limit int) []SearchResult {
	var results []SearchResult
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find("a.result__a").First()
		href, _ := link.Attr("href")
		target := extractActualURL(href)
		title := collapse(link.Text())
		if target == "" || title == "" {
			return true
		}
		results = append(results, SearchResult{
			Title:   title,
			URL:     target,
			Snippet: collapse(sel.Find(".result__snippet").First().Text()),
		})
		return len(results) < limit
	})
	return results
}

// extractActualURL unwraps DuckDuckGo's redirect links.
func extractActualURL(href string) string {
	if strings.Contains(href, "uddg=") {
		if strings.HasPrefix(href, "//") {
			href = "https:" + href
		}
		parsed, err := url.Parse(href)
		if err != nil {
			return ""
		}
		if target := parsed.Query().Get("uddg"); target != "" {
			return target
		}
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FormatResults renders results as numbered text.
func FormatResults(query string, results []SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for: %s\n\n", query)
	if len(results) == 0 {
		b.WriteString("No results found.\n")
		return b.String()
	}
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n    %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "    %s\n", util.TruncateWidth(r.Snippet, 300))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// =============================================================================
// TOOL DEFINITION
// =============================================================================

// NewWebSearchTool creates the web_search tool.
func NewWebSearchTool(s *Searcher) *Tool {
	return &Tool{
		Name: "web_search",
		Description: `Search the web with DuckDuckGo and return titles, URLs and snippets.
Use it for current events or facts that may be newer than your training data.
Follow up with fetch_url to read a result.`,
		Schema: Schema{
			Parameters: []Parameter{
				{Name: "query", Type: "string", Required: true, Description: "The search query"},
				{Name: "max_results", Type: "integer", Description: "Number of results, 1-10 (default 5)"},
			},
		},
		Executor: ExecutorFunc(func(ctx context.Context, params map[string]interface{}) (Result, error) {
			query := strings.TrimSpace(getStringParam(params, "query", ""))
			if query == "" {
				return Result{Error: "query parameter is required"}, nil
			}
			limit := clamp(getIntParam(params, "max_results", 5), 1, 10)

			results, err := s.Search(ctx, query, limit)
			if err != nil {
				return Result{Error: "search failed: " + err.Error()}, nil
			}
			return Result{Success: true, Output: FormatResults(query, results)}, nil
		}),
	}
}
