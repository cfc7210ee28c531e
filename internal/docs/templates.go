// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docs

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/jeranaias/docchat/internal/retrieval"
)

// =============================================================================
// PROMPT TEMPLATES
// =============================================================================

const importTemplate = `--- begin {{.source}} ---
{{.text}}
--- end {{.source}} ---`

const summarizeTemplate = `Summarize the following content from {{.source}} in about {{.words}} words.
Focus on the main points and leave out navigation, boilerplate and advertising.

--- begin {{.source}} ---
{{.text}}
--- end {{.source}} ---`

func format(tmpl string, values map[string]any) (string, error) {
	pt := prompts.PromptTemplate{
		Template:       tmpl,
		InputVariables: keys(values),
		TemplateFormat: prompts.TemplateFormatGoTemplate,
	}
	out, err := pt.Format(values)
	if err != nil {
		return "", fmt.Errorf("failed to format prompt: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// FormatImport wraps imported text in begin/end markers naming its source.
func FormatImport(source, text string) (string, error) {
	return format(importTemplate, map[string]any{
		"source": source,
		"text":   strings.TrimSpace(text),
	})
}

// FormatSummary wraps text in a summarization request for about words words.
func FormatSummary(source, text string, words int) (string, error) {
	if words <= 0 {
		words = 100
	}
	return format(summarizeTemplate, map[string]any{
		"source": source,
		"text":   strings.TrimSpace(text),
		"words":  words,
	})
}

const contextHeader = "Use the following excerpts from the user's documents when they are relevant " +
	"to the question. Cite the source when you rely on one.\n"

// FormatContext renders retrieved records as a system message. It returns
// "" when there are no records.
func FormatContext(records []retrieval.Record) string {
	if len(records) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(contextHeader)
	for _, r := range records {
		b.WriteString("\n[")
		b.WriteString(r.Source)
		for _, t := range r.Tags {
			b.WriteString(" #")
			b.WriteString(t)
		}
		b.WriteString("]\n")
		b.WriteString(strings.TrimSpace(r.Text))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
