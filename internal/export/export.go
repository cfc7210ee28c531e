// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/util"
)

// ErrUnknownFormat is returned for file extensions no exporter handles.
var ErrUnknownFormat = errors.New("unknown export format")

// =============================================================================
// EXPORTER INTERFACE
// =============================================================================

// Exporter renders a conversation in one format.
type Exporter interface {
	// Export renders the conversation.
	Export(conv Conversation) ([]byte, error)

	// FileExtension returns the extension including the dot.
	FileExtension() string
}

// Conversation is what gets exported.
type Conversation struct {
	Title    string
	Model    string
	Exported time.Time
	Messages []model.Message
}

// Options control what an export includes.
type Options struct {
	// IncludeSystem keeps the system prompt
	IncludeSystem bool

	// IncludeThinking keeps the model's reasoning
	IncludeThinking bool

	// IncludeTools keeps tool calls and tool results
	IncludeTools bool
}

// DefaultOptions returns options that keep everything but the reasoning.
func DefaultOptions() *Options {
	return &Options{
		IncludeSystem: true,
		IncludeTools:  true,
	}
}

// ForPath returns the exporter for path's extension.
func ForPath(path string, opts *Options) (Exporter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return NewMarkdownExporter(opts), nil
	case ".html", ".htm":
		return NewHTMLExporter(opts), nil
	case ".json":
		return NewJSONExporter(opts), nil
	}
	return nil, fmt.Errorf("%w: %q (use .md, .html or .json)", ErrUnknownFormat, filepath.Ext(path))
}

// WriteFile exports conv to path in the format its extension names.
func WriteFile(path string, conv Conversation, opts *Options) error {
	exp, err := ForPath(path, opts)
	if err != nil {
		return err
	}
	data, err := exp.Export(conv)
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(path, data, 0o644)
}

// filter returns the messages opts keeps.
func filter(messages []model.Message, opts *Options) []model.Message {
	out := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		switch {
		case m.Role == model.RoleSystem && !opts.IncludeSystem:
			continue
		case m.Role == model.RoleTool && !opts.IncludeTools:
			continue
		}
		if !opts.IncludeThinking {
			m.Thinking = ""
		}
		if !opts.IncludeTools {
			m.ToolCalls = nil
		}
		out = append(out, m)
	}
	return out
}

func prepare(conv Conversation, opts *Options) (Conversation, error) {
	conv.Messages = filter(conv.Messages, opts)
	if len(conv.Messages) == 0 {
		return conv, errors.New("conversation has no messages")
	}
	if conv.Exported.IsZero() {
		conv.Exported = time.Now()
	}
	if conv.Title == "" {
		conv.Title = title(conv.Messages)
	}
	return conv, nil
}

// title is the first line of the first user message, shortened.
func title(messages []model.Message) string {
	for _, m := range messages {
		if m.Role == model.RoleUser {
			return util.TruncateWidth(util.FirstLine(m.Content), 60)
		}
	}
	return "Conversation"
}

func formatTimestamp(t time.Time) string {
	return t.Format("January 2, 2006 at 3:04 PM")
}
