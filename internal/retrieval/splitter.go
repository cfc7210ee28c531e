// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package retrieval

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Splitter kinds accepted by NewSplitter.
const (
	SplitCharacter = "character"
	SplitRecursive = "recursive"
	SplitMarkdown  = "markdown"
	SplitToken     = "token"
)

// NewSplitter returns a text splitter of the given kind. Sizes are in
// characters, except for the token splitter where they count cl100k_base
// tokens.
func NewSplitter(kind string, size, overlap int) (textsplitter.TextSplitter, error) {
	opts := []textsplitter.Option{
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	}

	switch kind {
	case SplitCharacter:
		opts = append(opts, textsplitter.WithSeparators([]string{"\n\n"}))
		return textsplitter.NewRecursiveCharacter(opts...), nil
	case SplitRecursive, "":
		return textsplitter.NewRecursiveCharacter(opts...), nil
	case SplitMarkdown:
		return textsplitter.NewMarkdownTextSplitter(opts...), nil
	case SplitToken:
		opts = append(opts, textsplitter.WithEncodingName("cl100k_base"))
		return textsplitter.NewTokenSplitter(opts...), nil
	}
	return nil, fmt.Errorf("unknown splitter %q", kind)
}

// Split splits text and drops blank chunks.
func Split(s textsplitter.TextSplitter, text string) ([]string, error) {
	chunks, err := s.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}
	out := chunks[:0]
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out, nil
}
