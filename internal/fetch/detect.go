// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fetch

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// extensionTypes covers the document formats the parser understands, so
// detection does not depend on the host's mime database.
var extensionTypes = map[string]string{
	".html":  "text/html",
	".htm":   "text/html",
	".xhtml": "application/xhtml+xml",
	".xml":   "application/xml",
	".rss":   "application/rss+xml",
	".atom":  "application/atom+xml",
	".csv":   "text/csv",
	".txt":   "text/plain",
	".md":    "text/markdown",
	".pdf":   "application/pdf",
	".ps":    "application/postscript",
	".eps":   "application/postscript",
	".json":  "application/json",
	".yaml":  "application/x-yaml",
	".yml":   "application/x-yaml",
	".toml":  "application/toml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
}

// DetectType guesses the content type of data named name. The extension
// table is consulted first, then chroma's lexers (source code becomes
// text/x-<language>), the system mime table, and finally content sniffing.
func DetectType(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}

	if base := filepath.Base(name); base != "." && base != "/" {
		if lexer := lexers.Match(base); lexer != nil {
			cfg := lexer.Config()
			if len(cfg.MimeTypes) > 0 {
				return cfg.MimeTypes[0]
			}
			return "text/x-" + strings.ToLower(strings.ReplaceAll(cfg.Name, " ", "-"))
		}
	}

	if ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}

	if len(data) == 0 {
		return "text/plain"
	}
	return http.DetectContentType(data)
}
