// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package parser turns fetched documents into plain text or markdown that
// can be placed in a prompt or split into retrieval chunks.
//
// Parse dispatches on the media type:
//
//	text/html, application/xhtml+xml      markdown via golang.org/x/net/html
//	application/rss+xml, atom+xml, xml    feed markdown via gofeed (xml is sniffed)
//	text/csv                              "label: value" blocks per row
//	application/pdf                       page text via ledongthuc/pdf
//	application/postscript                ps2pdf, then as PDF
//	text/*, json, yaml, toml, scripts     passed through (charset decoded)
//
// Anything else yields ErrUnsupported.
package parser
