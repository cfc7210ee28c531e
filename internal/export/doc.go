// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a conversation as Markdown, HTML or JSON.
//
// The format follows the file extension:
//
//	exp, err := export.ForPath("chat.html", export.DefaultOptions())
//	data, err := exp.Export(export.Conversation{Model: "llama3.2", Messages: msgs})
//
// HTML output renders message content as Markdown and sanitizes the
// result, so replies that contain markup cannot inject script.
package export
