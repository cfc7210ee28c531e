// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/docchat/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown with YAML front matter.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

type frontMatter struct {
	Title     string `yaml:"title"`
	Model     string `yaml:"model,omitempty"`
	Exported  string `yaml:"exported"`
	Messages  int    `yaml:"messages"`
	Generator string `yaml:"generator"`
}

// Export converts a conversation to Markdown.
func (e *MarkdownExporter) Export(conv Conversation) ([]byte, error) {
	conv, err := prepare(conv, e.options)
	if err != nil {
		return nil, err
	}

	meta, err := yaml.Marshal(frontMatter{
		Title:     conv.Title,
		Model:     conv.Model,
		Exported:  conv.Exported.Format(time.RFC3339),
		Messages:  len(conv.Messages),
		Generator: "docchat",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode front matter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(meta)
	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(conv.Title))

	for i, msg := range conv.Messages {
		if i > 0 {
			sb.WriteString("---\n\n")
		}
		fmt.Fprintf(&sb, "### %s\n\n", roleLabel(msg))

		if msg.Thinking != "" {
			sb.WriteString("<details><summary>Thinking</summary>\n\n")
			sb.WriteString(strings.TrimSpace(msg.Thinking))
			sb.WriteString("\n\n</details>\n\n")
		}

		switch {
		case msg.Role == model.RoleTool:
			sb.WriteString(fence(msg.Content))
		case strings.TrimSpace(msg.Content) != "":
			sb.WriteString(strings.TrimSpace(msg.Content))
			sb.WriteString("\n")
		}
		for _, call := range msg.ToolCalls {
			fmt.Fprintf(&sb, "\n**Tool call**: `%s`\n\n", call.Function.Name)
			sb.WriteString(fence(argumentsJSON(call.Function.Arguments)))
		}
		for _, img := range msg.Images {
			fmt.Fprintf(&sb, "\n![image](%s)\n", img)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "---\n\n*Exported from docchat on %s*\n", formatTimestamp(conv.Exported))
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func roleLabel(msg model.Message) string {
	if msg.Role == model.RoleTool && msg.ToolName != "" {
		return "Tool: " + msg.ToolName
	}
	return msg.Role.DisplayName()
}

// fence wraps s in a code fence longer than any backtick run inside it.
func fence(s string) string {
	ticks := "```"
	for strings.Contains(s, ticks) {
		ticks += "`"
	}
	return ticks + "\n" + strings.TrimRight(s, "\n") + "\n" + ticks + "\n"
}

func argumentsJSON(args map[string]any) string {
	data, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return fmt.Sprint(args)
	}
	return string(data)
}

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer("#", "\\#", "*", "\\*", "_", "\\_", "[", "\\[", "]", "\\]")
	return r.Replace(s)
}
