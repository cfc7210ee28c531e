// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/jeranaias/docchat/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a standalone HTML page. Message
// content is rendered as GitHub flavored Markdown and sanitized.
type HTMLExporter struct {
	options  *Options
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options:  opts,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:   bluemonday.UGCPolicy(),
	}
}

type htmlMessage struct {
	Class    string
	Label    string
	Thinking template.HTML
	Content  template.HTML
	Calls    []htmlCall
	Images   []string
}

type htmlCall struct {
	Name      string
	Arguments string
}

type htmlPage struct {
	Title    string
	Model    string
	Exported string
	Count    int
	Messages []htmlMessage
}

// Export converts a conversation to HTML.
func (e *HTMLExporter) Export(conv Conversation) ([]byte, error) {
	conv, err := prepare(conv, e.options)
	if err != nil {
		return nil, err
	}

	page := htmlPage{
		Title:    conv.Title,
		Model:    conv.Model,
		Exported: formatTimestamp(conv.Exported),
		Count:    len(conv.Messages),
	}
	for _, msg := range conv.Messages {
		m := htmlMessage{
			Class:  string(msg.Role),
			Label:  roleLabel(msg),
			Images: msg.Images,
		}
		if msg.Role == model.RoleTool {
			m.Content, err = e.render(fence(msg.Content))
		} else {
			m.Content, err = e.render(msg.Content)
		}
		if err != nil {
			return nil, err
		}
		if msg.Thinking != "" {
			if m.Thinking, err = e.render(msg.Thinking); err != nil {
				return nil, err
			}
		}
		for _, call := range msg.ToolCalls {
			m.Calls = append(m.Calls, htmlCall{Name: call.Function.Name, Arguments: argumentsJSON(call.Function.Arguments)})
		}
		page.Messages = append(page.Messages, m)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	return buf.Bytes(), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// render converts Markdown to sanitized HTML.
func (e *HTMLExporter) render(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := e.markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return template.HTML(e.policy.SanitizeBytes(buf.Bytes())), nil
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<meta name="generator" content="docchat">
<title>{{.Title}}</title>
<style>
:root {
  --bg: #ffffff; --panel: #f7f8fa; --text: #24292e; --muted: #6a737d;
  --border: #e1e4e8; --user: #0366d6; --assistant: #22863a; --tool: #6f42c1; --code: #f6f8fa;
}
@media (prefers-color-scheme: dark) {
  :root {
    --bg: #1a1b26; --panel: #24283b; --text: #c0caf5; --muted: #565f89;
    --border: #414868; --user: #7aa2f7; --assistant: #9ece6a; --tool: #bb9af7; --code: #1f2335;
  }
}
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; line-height: 1.6;
  color: var(--text); background: var(--bg); margin: 0; padding: 20px; }
.container { max-width: 900px; margin: 0 auto; }
header h1 { margin-bottom: 4px; }
.metadata, footer { color: var(--muted); font-size: 14px; }
.message { background: var(--panel); border: 1px solid var(--border); border-left-width: 4px;
  border-radius: 8px; padding: 12px 20px; margin: 16px 0; }
.message.user { border-left-color: var(--user); }
.message.assistant { border-left-color: var(--assistant); }
.message.tool, .message.system { border-left-color: var(--tool); }
.role { font-weight: 700; font-size: 14px; color: var(--muted); }
pre { background: var(--code); padding: 12px; border-radius: 6px; overflow-x: auto; }
code { font-family: "SF Mono", Monaco, "Fira Code", monospace; font-size: 14px; }
details { color: var(--muted); }
img { max-width: 100%; }
</style>
</head>
<body>
<div class="container">
<header>
<h1>{{.Title}}</h1>
<div class="metadata">{{if .Model}}Model: {{.Model}} &middot; {{end}}{{.Count}} messages</div>
</header>
<main>
{{- range .Messages}}
<section class="message {{.Class}}">
<div class="role">{{.Label}}</div>
{{- if .Thinking}}
<details><summary>Thinking</summary>{{.Thinking}}</details>
{{- end}}
{{.Content}}
{{- range .Calls}}
<p><strong>Tool call</strong>: <code>{{.Name}}</code></p>
<pre><code>{{.Arguments}}</code></pre>
{{- end}}
{{- range .Images}}
<img src="{{.}}" alt="image">
{{- end}}
</section>
{{- end}}
</main>
<footer>Exported from docchat on {{.Exported}}</footer>
</div>
</body>
</html>
`))
