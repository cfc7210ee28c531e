// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// =============================================================================
// HTML TO MARKDOWN
// =============================================================================

var (
	spaceRun     = regexp.MustCompile(`[ \t\r\n\f]+`)
	blankLineRun = regexp.MustCompile(`\n{3,}`)
)

// HTMLToMarkdown converts an HTML document to markdown. The character set is
// taken from contentType, a BOM or a <meta> declaration, in that order.
func HTMLToMarkdown(data []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return "", fmt.Errorf("failed to detect charset: %w", err)
	}
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	return tidy(renderChildren(doc)), nil
}

// htmlFragmentToMarkdown converts an HTML snippet, such as a feed item body.
func htmlFragmentToMarkdown(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return tidy(renderChildren(doc))
}

// tidy trims trailing spaces from every line and collapses blank line runs.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")
	s = blankLineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func skipped(tag string) bool {
	switch tag {
	case "script", "style", "nav", "noscript", "head", "iframe", "svg", "template", "object", "embed":
		return true
	}
	return false
}

func render(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return spaceRun.ReplaceAllString(n.Data, " ")
	case html.DocumentNode:
		return renderChildren(n)
	case html.ElementNode:
	default:
		return ""
	}

	tag := n.Data
	if skipped(tag) {
		return ""
	}

	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level, _ := strconv.Atoi(tag[1:])
		text := strings.TrimSpace(renderChildren(n))
		if text == "" {
			return ""
		}
		return block(strings.Repeat("#", level) + " " + text)
	case "p", "div", "section", "article", "main", "header", "footer", "aside",
		"figure", "figcaption", "dl", "dt", "dd", "address", "details", "summary":
		return block(strings.TrimSpace(renderChildren(n)))
	case "br":
		return "\n"
	case "hr":
		return block("---")
	case "strong", "b":
		return wrapInline(renderChildren(n), "**")
	case "em", "i":
		return wrapInline(renderChildren(n), "*")
	case "del", "s", "strike":
		return wrapInline(renderChildren(n), "~~")
	case "code":
		text := strings.TrimSpace(textContent(n))
		if text == "" {
			return ""
		}
		return "`" + text + "`"
	case "pre":
		return block("```\n" + strings.Trim(textContent(n), "\n") + "\n```")
	case "a":
		return renderLink(n)
	case "img":
		src := attr(n, "src")
		if src == "" {
			return ""
		}
		return fmt.Sprintf("![%s](%s)", attr(n, "alt"), src)
	case "ul", "ol":
		return block(renderList(n, tag == "ol"))
	case "li":
		return block(strings.TrimSpace(renderChildren(n)))
	case "blockquote":
		return block(quote(tidy(renderChildren(n))))
	case "table":
		return block(renderTable(n))
	}
	return renderChildren(n)
}

func renderChildren(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(render(c))
	}
	return b.String()
}

func block(s string) string {
	if s == "" {
		return ""
	}
	return "\n\n" + s + "\n\n"
}

func wrapInline(s, marker string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	lead := ""
	if strings.HasPrefix(s, " ") {
		lead = " "
	}
	trail := ""
	if strings.HasSuffix(s, " ") {
		trail = " "
	}
	return lead + marker + trimmed + marker + trail
}

func renderLink(n *html.Node) string {
	text := strings.TrimSpace(renderChildren(n))
	href := attr(n, "href")
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return text
	}
	if text == "" {
		text = href
	}
	return fmt.Sprintf("[%s](%s)", text, href)
}

func renderList(n *html.Node, ordered bool) string {
	var items []string
	index := 1
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "li" {
			continue
		}
		marker := "- "
		if ordered {
			marker = strconv.Itoa(index) + ". "
			index++
		}
		body := strings.ReplaceAll(tidy(renderChildren(c)), "\n\n", "\n")
		indent := strings.Repeat(" ", len(marker))
		lines := strings.Split(body, "\n")
		for i := 1; i < len(lines); i++ {
			if lines[i] != "" {
				lines[i] = indent + lines[i]
			}
		}
		items = append(items, marker+strings.Join(lines, "\n"))
	}
	return strings.Join(items, "\n")
}

func quote(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = ">"
		} else {
			lines[i] = "> " + line
		}
	}
	return strings.Join(lines, "\n")
}

func renderTable(n *html.Node) string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "tr":
				var cells []string
				for td := c.FirstChild; td != nil; td = td.NextSibling {
					if td.Type == html.ElementNode && (td.Data == "td" || td.Data == "th") {
						cell := strings.Join(strings.Fields(tidy(renderChildren(td))), " ")
						cells = append(cells, strings.ReplaceAll(cell, "|", `\|`))
					}
				}
				rows = append(rows, cells)
			case "table":
				// nested tables are skipped
			default:
				walk(c)
			}
		}
	}
	walk(n)

	cols := 0
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return ""
	}

	var b strings.Builder
	for i, row := range rows {
		for len(row) < cols {
			row = append(row, "")
		}
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		if i == 0 {
			b.WriteString("|" + strings.Repeat(" --- |", cols) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "br" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(textContent(c))
	}
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
