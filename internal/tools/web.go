// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/docchat/internal/fetch"
	"github.com/jeranaias/docchat/internal/parser"
)

// NewFetchURLTool creates the fetch_url tool. Content goes through the same
// fetcher and parser as references typed by the user, so HTML, feeds, PDF
// and CSV all come back as text.
func NewFetchURLTool(f fetch.Fetcher) *Tool {
	return &Tool{
		Name: "fetch_url",
		Description: `Fetch a web page or document by URL and return its text as markdown.
HTML is converted to markdown; RSS and Atom feeds, PDF and CSV are converted to text.`,
		Schema: Schema{
			Parameters: []Parameter{
				{Name: "url", Type: "string", Required: true, Description: "The http or https URL to fetch"},
			},
		},
		Executor: ExecutorFunc(func(ctx context.Context, params map[string]interface{}) (Result, error) {
			raw := strings.TrimSpace(getStringParam(params, "url", ""))
			if fetch.KindOf(raw) != fetch.KindURL {
				return Result{Error: fmt.Sprintf("not an http(s) URL: %q", raw)}, nil
			}

			content, err := f.Fetch(ctx, raw)
			if err != nil {
				return Result{Error: err.Error()}, nil
			}
			text, err := parser.Parse(ctx, content.Data, content.ContentType)
			if err != nil {
				if errors.Is(err, parser.ErrUnsupported) {
					return Result{Error: "unsupported content type " + content.MediaType()}, nil
				}
				return Result{Error: err.Error()}, nil
			}
			return Result{Success: true, Output: fmt.Sprintf("Content of %s:\n\n%s", content.Source, text)}, nil
		}),
	}
}
