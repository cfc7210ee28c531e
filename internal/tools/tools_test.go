// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat/internal/fetch"
	"github.com/jeranaias/docchat/internal/ollama"
	"github.com/jeranaias/docchat/internal/retrieval"
)

const ddgPage = `<html><body>
<div class="result results_links web-result">
  <h2 class="result__title">
    <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=abc">The Go   <b>Programming</b> Language</a>
  </h2>
  <a class="result__snippet" href="#">Documentation for   Go.</a>
</div>
<div class="result">
  <h2 class="result__title"><a class="result__a" href="https://pkg.go.dev/">pkg.go.dev</a></h2>
</div>
<div class="result">
  <h2 class="result__title"><a class="result__a" href="/relative">skipped</a></h2>
</div>
</body></html>`

func newEchoTool(name string, exec ExecutorFunc) *Tool {
	return &Tool{
		Name:        name,
		Description: "echo\nlonger help",
		Schema: Schema{Parameters: []Parameter{
			{Name: "text", Type: "string", Required: true},
			{Name: "mode", Type: "string", Enum: []string{"loud", "quiet"}},
			{Name: "count", Type: "integer"},
		}},
		Executor: exec,
	}
}

func echo(_ context.Context, params map[string]interface{}) (Result, error) {
	return Result{Success: true, Output: params["text"].(string)}, nil
}

func TestExecutor_Execute(t *testing.T) {
	exec := NewExecutor(NewRegistry(newEchoTool("echo", echo)), nil)

	res := exec.Execute(context.Background(), Call{ID: "1", Name: "echo", Params: map[string]interface{}{"text": "hi"}})
	assert.True(t, res.Success)
	assert.Equal(t, "hi", res.Text())

	res = exec.Execute(context.Background(), Call{Name: "nope"})
	assert.False(t, res.Success)
	assert.Equal(t, "error: unknown tool: nope", res.Text())

	require.Len(t, exec.History(), 2)
	assert.Equal(t, "echo", exec.History()[0].ToolName)
}

func TestExecutor_Validation(t *testing.T) {
	exec := NewExecutor(NewRegistry(newEchoTool("echo", echo)), nil)

	tests := []struct {
		name   string
		params map[string]interface{}
		want   string
	}{
		{"missing", map[string]interface{}{}, "text: missing required argument"},
		{"wrong type", map[string]interface{}{"text": 3.0}, "text: expected string type"},
		{"enum", map[string]interface{}{"text": "x", "mode": "shout"}, "mode: must be one of"},
		{"fraction", map[string]interface{}{"text": "x", "count": 1.5}, "count: expected integer type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := exec.Execute(context.Background(), Call{Name: "echo", Params: tt.params})
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.want)
		})
	}

	res := exec.Execute(context.Background(), Call{Name: "echo", Params: map[string]interface{}{"text": "x", "count": 2.0}})
	assert.True(t, res.Success)
}

func TestExecutor_ErrorsAndPanics(t *testing.T) {
	reg := NewRegistry(
		newEchoTool("fails", func(context.Context, map[string]interface{}) (Result, error) {
			return Result{}, errors.New("backend down")
		}),
		newEchoTool("panics", func(context.Context, map[string]interface{}) (Result, error) {
			panic("boom")
		}),
	)
	exec := NewExecutor(reg, nil)
	params := map[string]interface{}{"text": "x"}

	assert.Equal(t, "backend down", exec.Execute(context.Background(), Call{Name: "fails", Params: params}).Error)
	assert.Contains(t, exec.Execute(context.Background(), Call{Name: "panics", Params: params}).Error, "boom")
}

func TestExecutor_Timeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	slow := newEchoTool("slow", func(ctx context.Context, _ map[string]interface{}) (Result, error) {
		select {
		case <-ctx.Done():
		case <-block:
		}
		return Result{}, ctx.Err()
	})
	exec := NewExecutor(NewRegistry(slow), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := exec.Execute(ctx, Call{Name: "slow", Params: map[string]interface{}{"text": "x"}})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "deadline")
}

func TestExecutor_TruncatesOnRuneBoundary(t *testing.T) {
	exec := NewExecutor(NewRegistry(newEchoTool("echo", echo)), nil)
	exec.SetMaxOutput(4)

	res := exec.Execute(context.Background(), Call{Name: "echo", Params: map[string]interface{}{"text": "aaéé"}})
	assert.True(t, res.Truncated)
	assert.Equal(t, "aaé", res.Output)
	assert.True(t, strings.HasSuffix(res.Text(), "[output truncated]"))
}

func TestFromOllamaAndParseCall(t *testing.T) {
	var oc ollama.ToolCall
	oc.Function.Name = "current_time"
	calls := FromOllama([]ollama.ToolCall{oc})
	require.Len(t, calls, 1)
	assert.Equal(t, "current_time", calls[0].Name)
	assert.NotNil(t, calls[0].Params)
	assert.NotEmpty(t, calls[0].ID)

	call, err := ParseCall("web_search", `{"query":"go"}`)
	require.NoError(t, err)
	assert.Equal(t, "go", call.Params["query"])

	_, err = ParseCall("web_search", `not json`)
	assert.Error(t, err)
}

func TestOllamaTools(t *testing.T) {
	reg := NewRegistry(newEchoTool("b", echo), newEchoTool("a", echo))
	tools := reg.OllamaTools()
	require.Len(t, tools, 2)

	assert.Equal(t, "a", tools[0].Function.Name)
	assert.Equal(t, "function", tools[0].Type)
	assert.Equal(t, "echo", tools[0].Function.Description)
	assert.Equal(t, []string{"text"}, tools[0].Function.Parameters.Required)
	assert.Equal(t, []string{"loud", "quiet"}, tools[0].Function.Parameters.Properties["mode"].Enum)
}

func TestWebSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(ddgPage))
	}))
	defer srv.Close()

	s := &Searcher{BaseURL: srv.URL + "/html/", Client: srv.Client()}
	results, err := s.Search(context.Background(), "go lang", 5)
	require.NoError(t, err)

	assert.Equal(t, "go lang", gotQuery)
	require.Len(t, results, 2)
	assert.Equal(t, SearchResult{
		Title:   "The Go Programming Language",
		URL:     "https://go.dev/doc/",
		Snippet: "Documentation for Go.",
	}, results[0])
	assert.Equal(t, "https://pkg.go.dev/", results[1].URL)

	limited, err := s.Search(context.Background(), "go", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	exec := NewExecutor(NewRegistry(NewWebSearchTool(s)), nil)
	res := exec.Execute(context.Background(), Call{Name: "web_search", Params: map[string]interface{}{"query": "go"}})
	require.True(t, res.Success, res.Error)
	assert.Contains(t, res.Output, "[1] The Go Programming Language")
}

func TestWebSearch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := (&Searcher{BaseURL: srv.URL, Client: srv.Client()}).Search(context.Background(), "x", 3)
	assert.ErrorContains(t, err, "429")
}

type stubFetcher struct {
	content *fetch.Content
	err     error
}

func (s stubFetcher) Fetch(context.Context, string) (*fetch.Content, error) {
	return s.content, s.err
}

func TestFetchURL(t *testing.T) {
	page := &fetch.Content{
		Data:        []byte("<html><body><h1>Hello</h1><p>World</p></body></html>"),
		ContentType: "text/html; charset=utf-8",
		Source:      "https://example.com/",
	}
	exec := NewExecutor(NewRegistry(NewFetchURLTool(stubFetcher{content: page})), nil)

	res := exec.Execute(context.Background(), Call{Name: "fetch_url", Params: map[string]interface{}{"url": "https://example.com/"}})
	require.True(t, res.Success, res.Error)
	assert.Contains(t, res.Output, "# Hello")
	assert.Contains(t, res.Output, "World")

	res = exec.Execute(context.Background(), Call{Name: "fetch_url", Params: map[string]interface{}{"url": "/etc/passwd"}})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not an http(s) URL")
}

type stubStore struct {
	retrieval.Store
	records []retrieval.Record
	tags    []string
}

func (s *stubStore) FindWhere(_ context.Context, _ string, tags []string, limit int) ([]retrieval.Record, error) {
	s.tags = tags
	if len(s.records) > limit {
		return s.records[:limit], nil
	}
	return s.records, nil
}

type provider struct{ store retrieval.Store }

func (p provider) Store() retrieval.Store { return p.store }

func TestRetrieve(t *testing.T) {
	store := &stubStore{records: []retrieval.Record{
		{Text: "Cats sleep a lot.", Source: "/notes/cats.md", Tags: []string{"pets"}, Score: 0.91},
	}}
	exec := NewExecutor(NewRegistry(NewRetrieveTool(provider{store}, 3)), nil)

	res := exec.Execute(context.Background(), Call{Name: "retrieve", Params: map[string]interface{}{
		"query": "sleep", "tags": "#Pets",
	}})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"pets"}, store.tags)
	assert.Contains(t, res.Output, "[1] /notes/cats.md (score 0.91) #pets")
	assert.Contains(t, res.Output, "Cats sleep a lot.")

	none := NewExecutor(NewRegistry(NewRetrieveTool(provider{}, 3)), nil)
	res = none.Execute(context.Background(), Call{Name: "retrieve", Params: map[string]interface{}{"query": "x"}})
	assert.Contains(t, res.Error, "no document store")
}

func TestCurrentTime(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	exec := NewExecutor(NewRegistry(NewCurrentTimeTool(func() time.Time { return fixed })), nil)

	res := exec.Execute(context.Background(), Call{Name: "current_time", Params: map[string]interface{}{"timezone": "UTC"}})
	require.True(t, res.Success)
	assert.Equal(t, "Sunday, 1 June 2025 12:00:00 UTC (+00:00)", res.Output)

	res = exec.Execute(context.Background(), Call{Name: "current_time", Params: map[string]interface{}{"timezone": "Nowhere/Land"}})
	assert.False(t, res.Success)
}
