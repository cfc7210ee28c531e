// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/docchat/internal/retrieval"
)

// StoreProvider returns the current retrieval store, or nil when none is
// configured. The store can change during a session.
type StoreProvider interface {
	Store() retrieval.Store
}

// NewRetrieveTool creates the retrieve tool.
func NewRetrieveTool(p StoreProvider, defaultLimit int) *Tool {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	return &Tool{
		Name: "retrieve",
		Description: `Search the user's embedded documents for passages relevant to a query.
Tags narrow the search to documents carrying every listed tag.`,
		Schema: Schema{
			Parameters: []Parameter{
				{Name: "query", Type: "string", Required: true, Description: "What to look for"},
				{Name: "tags", Type: "string", Description: "Space separated tags, without #"},
				{Name: "limit", Type: "integer", Description: fmt.Sprintf("Maximum passages (default %d)", defaultLimit)},
			},
		},
		Executor: ExecutorFunc(func(ctx context.Context, params map[string]interface{}) (Result, error) {
			store := p.Store()
			if store == nil {
				return Result{Error: "no document store is configured"}, nil
			}
			query := strings.TrimSpace(getStringParam(params, "query", ""))
			if query == "" {
				return Result{Error: "query parameter is required"}, nil
			}
			var tags []string
			for _, t := range strings.Fields(getStringParam(params, "tags", "")) {
				tags = append(tags, strings.ToLower(strings.TrimPrefix(t, "#")))
			}
			limit := clamp(getIntParam(params, "limit", defaultLimit), 1, 20)

			records, err := store.FindWhere(ctx, query, tags, limit)
			if err != nil {
				return Result{}, err
			}
			return Result{Success: true, Output: FormatRecords(records)}, nil
		}),
	}
}

// FormatRecords renders retrieved passages for the model.
func FormatRecords(records []retrieval.Record) string {
	if len(records) == 0 {
		return "No matching passages."
	}
	var b strings.Builder
	for i, r := range records {
		fmt.Fprintf(&b, "[%d] %s (score %.2f)", i+1, r.Source, r.Score)
		for _, t := range r.Tags {
			b.WriteString(" #" + t)
		}
		b.WriteString("\n" + strings.TrimSpace(r.Text) + "\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
