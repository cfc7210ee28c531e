// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// ErrUnsupported is returned for binary or unknown content types.
var ErrUnsupported = errors.New("unsupported content type")

// passthroughTypes are non-text media types whose bytes are already text.
var passthroughTypes = map[string]bool{
	"application/json":          true,
	"application/ld+json":       true,
	"application/x-ndjson":      true,
	"application/x-yaml":        true,
	"application/yaml":          true,
	"application/toml":          true,
	"application/javascript":    true,
	"application/x-javascript":  true,
	"application/typescript":    true,
	"application/x-sh":          true,
	"application/x-shellscript": true,
	"application/sql":           true,
	"application/x-python":      true,
	"application/x-ruby":        true,
	"application/x-perl":        true,
	"application/x-php":         true,
	"application/x-tex":         true,
	"application/x-latex":       true,
}

// Parse converts data of the given content type to text. ctx bounds any
// external converter the type needs.
func Parse(ctx context.Context, data []byte, contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
		params = nil
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return HTMLToMarkdown(data, contentType)
	case "application/rss+xml", "application/atom+xml", "application/feed+json":
		return ParseFeed(data)
	case "text/xml", "application/xml":
		if IsFeed(data) {
			return ParseFeed(data)
		}
		return decodeText(data, params["charset"])
	case "text/csv":
		return ParseCSV(data)
	case "application/pdf":
		return ParsePDF(data)
	case "application/postscript":
		return ParsePostscript(ctx, data)
	}

	if strings.HasPrefix(mediaType, "text/") || passthroughTypes[mediaType] {
		return decodeText(data, params["charset"])
	}
	if (mediaType == "" || mediaType == "application/octet-stream") && looksLikeText(data) {
		return string(data), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupported, mediaType)
}

// decodeText converts data to UTF-8 using the declared charset label.
func decodeText(data []byte, label string) (string, error) {
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "us-ascii") {
		return string(data), nil
	}
	r, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return string(data), nil
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s text: %w", label, err)
	}
	return string(out), nil
}

func looksLikeText(data []byte) bool {
	return utf8.Valid(data) && bytes.IndexByte(data, 0) < 0
}
