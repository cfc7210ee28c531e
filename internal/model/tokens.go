// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// perMessageOverhead approximates the role and framing tokens each chat
// message costs on top of its text.
const perMessageOverhead = 4

// Tokenizer estimates token counts. Local models use their own vocabularies,
// so cl100k_base is an approximation; when its BPE table cannot be loaded
// (offline) a characters/4 heuristic is used instead.
type Tokenizer struct {
	once     sync.Once
	encoding string
	encoder  *tiktoken.Tiktoken
}

// NewTokenizer creates a tokenizer for the given tiktoken encoding. The
// encoding is loaded on first use.
func NewTokenizer(encoding string) *Tokenizer {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &Tokenizer{encoding: encoding}
}

// CountText returns the estimated token count of text.
func (t *Tokenizer) CountText(text string) int {
	if text == "" {
		return 0
	}
	t.once.Do(func() {
		if enc, err := tiktoken.GetEncoding(t.encoding); err == nil {
			t.encoder = enc
		}
	})
	if t.encoder == nil {
		return (len(text) + 3) / 4
	}
	return len(t.encoder.Encode(text, nil, nil))
}

// Count returns the estimated token count of a message sequence.
func (t *Tokenizer) Count(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += perMessageOverhead + t.CountText(m.Content) + t.CountText(m.Thinking)
	}
	return total
}
