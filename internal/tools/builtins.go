// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"net/http"
	"time"

	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/fetch"
)

// Deps are the collaborators of the built-in tools.
type Deps struct {
	Config  *config.Config
	Fetcher fetch.Fetcher
	Stores  StoreProvider

	// SearchURL overrides the DuckDuckGo endpoint
	SearchURL string
}

// Builtins returns the built-in tools.
func Builtins(d Deps) []*Tool {
	searcher := &Searcher{
		BaseURL:   d.SearchURL,
		Client:    &http.Client{Timeout: d.Config.Fetch.Timeout.Duration},
		UserAgent: d.Config.Fetch.UserAgent,
	}
	return []*Tool{
		NewWebSearchTool(searcher),
		NewFetchURLTool(d.Fetcher),
		NewRetrieveTool(d.Stores, d.Config.Retrieval.Results),
		NewCurrentTimeTool(time.Now),
	}
}
