// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream renders a streamed chat reply while recording it in the
// conversation.
//
// A Handler moves through three states:
//
//	AwaitingFirstToken -> Streaming -> Done
//
// The first assistant event appends an empty assistant message to the
// MessageList; every later fragment is concatenated onto it, so a reply that
// fails halfway stays in the history as far as it got.
//
// Reasoning text arrives either in the server's separate thinking field or
// between <think> and </think> tags in the content. Both end up in
// Message.Thinking and are displayed according to the thinking switch
// (hide, show or inline).
//
// With markdown on, the accumulated reply is re-rendered with glamour after
// every fragment and the previous output is cleared with termenv. Only the
// last RedrawLines lines are ever redrawn; lines that scroll above that
// window are left as they were printed.
package stream
