// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, DefaultModel: "test-model", Timeout: 5 * time.Second})
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewToolResultMessage(t *testing.T) {
	msg := NewToolResultMessage("web_search", "results")

	if msg.Role != "tool" {
		t.Errorf("Role = %q, want 'tool'", msg.Role)
	}
	if msg.ToolName != "web_search" {
		t.Errorf("ToolName = %q, want 'web_search'", msg.ToolName)
	}
}

func TestChatRequest_ThinkEncoding(t *testing.T) {
	tests := []struct {
		name  string
		think any
		want  string
	}{
		{"unset", nil, ""},
		{"bool", true, `"think":true`},
		{"level", "high", `"think":"high"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(ChatRequest{Model: "m", Think: tc.think})
			require.NoError(t, err)
			if tc.want == "" {
				assert.NotContains(t, string(data), "think")
				return
			}
			assert.Contains(t, string(data), tc.want)
		})
	}
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestChatStream_DeliversChunksInOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "test-model", req.Model)

		lines := []string{
			`{"model":"test-model","message":{"role":"assistant","content":"","thinking":"hmm"},"done":false}`,
			`{"model":"test-model","message":{"role":"assistant","content":"He"},"done":false}`,
			`not json`,
			`{"model":"test-model","message":{"role":"assistant","content":"llo"},"done":false}`,
			`{"model":"test-model","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop",` +
				`"total_duration":2000000000,"load_duration":100000000,"prompt_eval_count":10,` +
				`"prompt_eval_duration":500000000,"eval_count":20,"eval_duration":1000000000}`,
		}
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	})

	var chunks []StreamChunk
	err := client.ChatStream(context.Background(), ChatRequest{Messages: []Message{NewUserMessage("hi")}}, func(c StreamChunk) {
		chunks = append(chunks, c)
	})
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	assert.Equal(t, "hmm", chunks[0].Thinking)
	assert.Equal(t, "He", chunks[1].Content)
	assert.Equal(t, "llo", chunks[2].Content)
	assert.Equal(t, "assistant", chunks[2].Role)

	final := chunks[3]
	assert.True(t, final.Done)
	assert.Equal(t, 10, final.PromptTokens)
	assert.Equal(t, 20, final.CompletionTokens)
	assert.Equal(t, 2*time.Second, final.TotalDuration)

	stats := NewStreamStats()
	stats.Finalize(final)
	assert.InDelta(t, 20.0, stats.TokensPerSecond, 0.001)
	assert.InDelta(t, 20.0, stats.PromptPerSecond, 0.001)
	assert.Equal(t, "prompt 10 tok @ 20.0 tok/s | generated 20 tok @ 20.0 tok/s | load 100ms | total 2.0s", stats.Format())
}

func TestChatStream_TruncatedStreamIsRetryable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"partial"},"done":false}`)
	})

	var got strings.Builder
	err := client.ChatStream(context.Background(), ChatRequest{}, func(c StreamChunk) {
		got.WriteString(c.Content)
	})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "partial", got.String())
}

func TestChatStream_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model \"nope\" not found"}`)
	})

	err := client.ChatStream(context.Background(), ChatRequest{Model: "nope"}, func(StreamChunk) {})
	require.Error(t, err)
	assert.True(t, IsModelNotFound(err))
	assert.Contains(t, err.Error(), "nope")
}

func TestChatStream_NotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: url})
	err := client.ChatStream(context.Background(), ChatRequest{}, func(StreamChunk) {})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

// =============================================================================
// NON-STREAMING / MODEL / EMBEDDING TESTS
// =============================================================================

func TestChat_NonStreaming(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		fmt.Fprint(w, `{"model":"test-model","message":{"role":"assistant","content":"Hello"},"done":true,"eval_count":4,"eval_duration":2000000000}`)
	})

	resp, err := client.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Message.Content)
	assert.InDelta(t, 2.0, resp.TokensPerSecond(), 0.001)

	chunk := resp.AsChunk()
	assert.True(t, chunk.Done)
	assert.Equal(t, "Hello", chunk.Content)
}

func TestEmbed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req EmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := EmbedResponse{Model: req.Model}
		for i := range req.Input {
			out.Embeddings = append(out.Embeddings, []float32{float32(i), 1})
		}
		json.NewEncoder(w).Encode(out)
	})

	vecs, err := client.Embed(context.Background(), "embed-model", []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 1}, vecs[1])

	vecs, err = client.Embed(context.Background(), "embed-model", nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestPull(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"status":"downloading","total":100,"completed":50}`)
		fmt.Fprintln(w, `{"status":"success"}`)
	})

	var statuses []string
	err := client.Pull(context.Background(), "m", func(p PullProgress) {
		statuses = append(statuses, p.Status)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"pulling manifest", "downloading", "success"}, statuses)
}

func TestPull_Error(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"pull model manifest: file does not exist"}`)
	})

	err := client.Pull(context.Background(), "m", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file does not exist")
}

func TestListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"llama3.2:latest","size":2019393189}]}`)
	})

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "llama3.2:latest", models[0].Name)
	assert.Equal(t, "1.9 GB", models[0].FormatSize())
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

func TestErrorHelpers(t *testing.T) {
	wrapped := fmt.Errorf("turn failed: %w", ErrTimeout)

	if !IsTimeout(wrapped) {
		t.Error("IsTimeout should see through wrapping")
	}
	if !IsRetryable(wrapped) {
		t.Error("timeouts are retryable")
	}
	if IsRetryable(ErrModelNotFound) {
		t.Error("missing model is not retryable")
	}
	if IsNotRunning(fmt.Errorf("plain")) {
		t.Error("plain errors are not client errors")
	}
}
