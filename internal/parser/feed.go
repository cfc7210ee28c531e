// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// IsFeed reports whether data is an RSS or Atom document.
func IsFeed(data []byte) bool {
	switch gofeed.DetectFeedType(bytes.NewReader(data)) {
	case gofeed.FeedTypeRSS, gofeed.FeedTypeAtom:
		return true
	}
	return false
}

// ParseFeed renders an RSS, Atom or JSON feed as markdown: the feed title
// and description, then one section per item with its link, date and body.
func ParseFeed(data []byte) (string, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse feed: %w", err)
	}

	var b strings.Builder
	if title := strings.TrimSpace(feed.Title); title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	if desc := feedText(feed.Description); desc != "" {
		b.WriteString(desc + "\n\n")
	}

	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&b, "## %s\n\n", title)
		if item.Link != "" {
			fmt.Fprintf(&b, "Link: %s\n", item.Link)
		}
		if date := itemDate(item); date != "" {
			fmt.Fprintf(&b, "Date: %s\n", date)
		}
		b.WriteString("\n")

		body := item.Content
		if strings.TrimSpace(body) == "" {
			body = item.Description
		}
		if text := feedText(body); text != "" {
			b.WriteString(text + "\n\n")
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func itemDate(item *gofeed.Item) string {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.Format(time.RFC1123Z)
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.Format(time.RFC1123Z)
	case item.Published != "":
		return item.Published
	}
	return item.Updated
}

// feedText converts an HTML body to markdown and leaves plain text alone.
func feedText(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "<") && strings.Contains(s, ">") {
		return htmlFragmentToMarkdown(s)
	}
	return s
}
