// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for an Ollama-compatible
// inference server.
//
// It covers the endpoints the chat session depends on: /api/chat (streaming
// and non-streaming, with thinking, images and tool calls), /api/tags,
// /api/show, /api/pull and /api/embed.
//
// # Key Types
//
//   - Client: HTTP client for the inference server
//   - Message: chat message as sent on the wire
//   - ChatRequest: request body for chat completions
//   - StreamChunk: one decoded event of a streamed response
//   - StreamStats: performance counters reported with the final event
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: host})
//	err := client.ChatStream(ctx, ollama.ChatRequest{
//	    Model:    "llama3.2",
//	    Messages: []ollama.Message{ollama.NewUserMessage("Hello")},
//	}, func(chunk ollama.StreamChunk) {
//	    fmt.Print(chunk.Content)
//	})
package ollama
