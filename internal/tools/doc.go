// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools provides the functions a model may call during a chat turn.
//
// # Key Types
//
//   - Tool: name, description, parameter schema and executor
//   - Registry: the tools offered to the model
//   - Executor: validates arguments, runs a tool with a timeout and keeps
//     a bounded history
//   - Result: tool output or error text, sent back as a tool message
//
// # Built-in Tools
//
//   - web_search: DuckDuckGo HTML search, no API key
//   - fetch_url: fetch a page or file and return it as text
//   - retrieve: search the active retrieval collection
//   - current_time: the current date and time in a timezone
package tools
