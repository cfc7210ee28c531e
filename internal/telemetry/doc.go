// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry tracks token usage for a chat session.
//
// A Tracker records the counters the inference server reports with each
// completed reply and sums them per model:
//
//	tracker := telemetry.NewTracker()
//	tracker.Record("llama3.2", result.Stats)
//	for _, t := range tracker.Totals() {
//	    fmt.Println(t.Model, t.PromptTokens, t.CompletionTokens)
//	}
//
// Nothing is persisted; usage covers the life of the session.
package telemetry
