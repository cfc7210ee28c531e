// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package switches

import "errors"

// Switch names used by the chat session.
const (
	DocumentPolicy = "document_policy"
	ThinkMode      = "think_mode"
	Thinking       = "thinking"
	Markdown       = "markdown"
	Stream         = "stream"
	Voice          = "voice"
	Location       = "location"
	Embedding      = "embedding"
	Retrieval      = "retrieval"
	Tools          = "tools"
	RAG            = "rag"
)

// Document policy values.
const (
	PolicyImporting   = "importing"
	PolicyEmbedding   = "embedding"
	PolicySummarizing = "summarizing"
	PolicyIgnoring    = "ignoring"
)

// Thinking display values.
const (
	ThinkingHide   = "hide"
	ThinkingShow   = "show"
	ThinkingInline = "inline"
)

// ThinkModes are the accepted think_mode values.
var ThinkModes = []string{"off", "on", "low", "medium", "high"}

// Defaults carries the initial selections, normally taken from config.
type Defaults struct {
	DocumentPolicy string
	ThinkMode      string
	Thinking       string
	Markdown       bool
	Stream         bool
	Voice          bool
	Location       bool
	Embedding      bool
	Retrieval      bool
	Tools          bool
}

// DefaultSelections returns the built-in initial selections.
func DefaultSelections() Defaults {
	return Defaults{
		DocumentPolicy: PolicyImporting,
		ThinkMode:      "off",
		Thinking:       ThinkingShow,
		Markdown:       true,
		Stream:         true,
		Embedding:      true,
		Retrieval:      true,
		Tools:          true,
	}
}

// NewSessionSet builds the switch set used by a chat session.
func NewSessionSet(d Defaults) (*Set, error) {
	set := NewSet()

	policy, err := NewSelector(DocumentPolicy,
		[]string{PolicyImporting, PolicyEmbedding, PolicySummarizing, PolicyIgnoring},
		[]string{PolicyIgnoring}, d.DocumentPolicy,
		WithHelp("what to do with referenced files and URLs"))
	think, err2 := NewSelector(ThinkMode, ThinkModes, []string{"off"}, d.ThinkMode,
		WithHelp("request reasoning from thinking models"))
	display, err3 := NewSelector(Thinking,
		[]string{ThinkingHide, ThinkingShow, ThinkingInline},
		[]string{ThinkingHide}, d.Thinking,
		WithHelp("how reasoning is displayed"))
	if err := errors.Join(err, err2, err3); err != nil {
		return nil, err
	}
	set.Add(policy)
	set.Add(think)
	set.Add(display)

	set.Add(NewFlag(Markdown, d.Markdown, WithHelp("render replies as markdown")))
	set.Add(NewFlag(Stream, d.Stream, WithHelp("stream replies token by token")))
	set.Add(NewFlag(Voice, d.Voice, WithHelp("speak replies")))
	set.Add(NewFlag(Location, d.Location, WithHelp("add location and time to the system prompt")))
	set.Add(NewFlag(Tools, d.Tools, WithHelp("offer tools to the model")))

	embedding := NewFlag(Embedding, d.Embedding, WithHelp("store embedded documents"))
	retrieval := NewFlag(Retrieval, d.Retrieval, WithHelp("add retrieved chunks to prompts"))
	set.Add(embedding)
	set.Add(retrieval)
	set.Add(NewCombined(RAG, "embedding and retrieval together", embedding, retrieval))

	return set, nil
}
