// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docs

import (
	"os"
	"regexp"
	"strings"

	"github.com/jeranaias/docchat/internal/fetch"
	"github.com/jeranaias/docchat/internal/util"
)

// =============================================================================
// REFERENCE TYPES
// =============================================================================

// Kind indicates the type of a document reference.
type Kind int

const (
	KindURL  Kind = iota // http(s)://...
	KindFile             // /path, ~/path, ./path, ../path, file://...
	KindTag              // #tag
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindURL:
		return "url"
	case KindFile:
		return "file"
	case KindTag:
		return "tag"
	default:
		return "unknown"
	}
}

// Reference is a document reference found in user input.
type Reference struct {
	Kind Kind

	// Source is the reference as written, trailing punctuation removed
	Source string

	// Tags are the tags of the whole input
	Tags []string
}

// Extraction is the result of scanning one input.
type Extraction struct {
	Refs []Reference
	Tags []string
}

// =============================================================================
// EXTRACTION
// =============================================================================

const trailingPunct = `.,;:!?)]}'"`

var (
	tagPattern = regexp.MustCompile(`(?:^|[\s(\[])#([A-Za-z][A-Za-z0-9_\-./]*)`)
	urlPattern = regexp.MustCompile("https?://[^\\s<>\"'`]+")
)

// Extract scans text for tags, URLs and existing file paths. URL and file
// references keep first-seen order without duplicates; tags are lower-cased
// and deduplicated.
func Extract(text string) Extraction {
	var ex Extraction

	seenTag := make(map[string]bool)
	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		tag := strings.ToLower(strings.TrimRight(m[1], trailingPunct+"/"))
		if tag == "" || seenTag[tag] {
			continue
		}
		seenTag[tag] = true
		ex.Tags = append(ex.Tags, tag)
	}

	seen := make(map[string]bool)
	add := func(kind Kind, source string) {
		key := fetch.Normalize(source)
		if seen[key] {
			return
		}
		seen[key] = true
		ex.Refs = append(ex.Refs, Reference{Kind: kind, Source: source})
	}

	for _, field := range strings.Fields(text) {
		token := strings.TrimLeft(field, `([{<"'`)
		switch {
		case strings.HasPrefix(token, "http://"), strings.HasPrefix(token, "https://"):
			if u := urlPattern.FindString(token); u != "" {
				if u = strings.TrimRight(u, trailingPunct); len(u) > len("https://") {
					add(KindURL, u)
				}
			}
		case strings.HasPrefix(token, "file://"):
			path := strings.TrimRight(token, trailingPunct)
			if isFile(strings.TrimPrefix(path, "file://")) {
				add(KindFile, path)
			}
		case isPathToken(token):
			path := strings.TrimRight(token, trailingPunct)
			if isFile(path) {
				add(KindFile, path)
			}
		}
	}

	for i := range ex.Refs {
		ex.Refs[i].Tags = ex.Tags
	}
	return ex
}

// FindURLs returns the http(s) URLs in text in first-seen order.
func FindURLs(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, u := range urlPattern.FindAllString(text, -1) {
		u = strings.TrimRight(u, trailingPunct)
		if len(u) <= len("https://") || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func isPathToken(token string) bool {
	return strings.HasPrefix(token, "/") ||
		strings.HasPrefix(token, "~/") ||
		strings.HasPrefix(token, "./") ||
		strings.HasPrefix(token, "../")
}

func isFile(path string) bool {
	if path == "" || path == "/" {
		return false
	}
	info, err := os.Stat(util.ExpandHome(path))
	return err == nil && !info.IsDir()
}
